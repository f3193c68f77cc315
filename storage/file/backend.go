// Package file implements the page-oriented, unbuffered I/O layer that
// turns a relation's FileNode into durable reads and writes.
package file

import (
	"os"

	"github.com/dsnet/golib/memfile"
	"github.com/ncw/directio"
	"github.com/pkg/errors"
)

// blockDevice is the seam between FileManager and the underlying transport.
// Production code opens real files with O_DIRECT semantics; tests open
// in-memory buffers. Both satisfy this contract identically.
type blockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Close() error
}

// backendFactory opens or creates the block device backing path.
type backendFactory func(path string) (blockDevice, error)

// directDevice wraps an *os.File opened through github.com/ncw/directio,
// which requires reads and writes to be aligned to its block size.
type directDevice struct {
	f *os.File
}

func openDirectDevice(path string) (blockDevice, error) {
	f, err := directio.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil && os.IsNotExist(err) {
		if cerr := createEmptyFile(path); cerr != nil {
			return nil, errors.Wrap(cerr, "file: create backing file")
		}
		f, err = directio.OpenFile(path, os.O_RDWR, 0o644)
	}
	if err != nil {
		return nil, errors.Wrap(err, "file: open direct device")
	}
	return &directDevice{f: f}, nil
}

func createEmptyFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (d *directDevice) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }
func (d *directDevice) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *directDevice) Close() error                             { return d.f.Close() }

func (d *directDevice) Size() (int64, error) {
	info, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// memDevice wraps github.com/dsnet/golib/memfile, giving a file an
// in-memory backing buffer that grows on WriteAt past its current length.
// Used by the WithMemBackend option so the whole storage stack can be
// exercised in tests without writing file contents to disk. Manager still
// creates each file's parent directories under dataDir on the real
// filesystem.
type memDevice struct {
	mf *memfile.File
}

func (d *memDevice) ReadAt(p []byte, off int64) (int, error)  { return d.mf.ReadAt(p, off) }
func (d *memDevice) WriteAt(p []byte, off int64) (int, error) { return d.mf.WriteAt(p, off) }
func (d *memDevice) Close() error                             { return d.mf.Close() }

func (d *memDevice) Size() (int64, error) {
	info, err := d.mf.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// MemStore is a shared pool of in-memory files keyed by path. Tests that
// need to simulate "flush, drop the manager, reopen" (spec scenario 4)
// construct one MemStore and pass it to every FileManager that should
// observe the same bytes; a fresh MemStore gives a fresh, empty filesystem.
type MemStore struct {
	files map[string]*memfile.File
}

// NewMemStore creates an empty in-memory file pool.
func NewMemStore() *MemStore {
	return &MemStore{files: make(map[string]*memfile.File)}
}

func (s *MemStore) factory() backendFactory {
	return func(path string) (blockDevice, error) {
		mf, ok := s.files[path]
		if !ok {
			mf = memfile.New(nil)
			s.files[path] = mf
		}
		return &memDevice{mf: mf}, nil
	}
}
