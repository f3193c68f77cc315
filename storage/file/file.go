package file

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Manager turns a relation-relative path plus a byte offset into durable
// I/O. Open devices are cached by path; the cache lives for the Manager's
// lifetime and is closed explicitly via Close.
//
// Correctness does not depend on which backend is active, nor on whether
// I/O is buffered; by default the production backend opens files with
// O_DIRECT semantics via github.com/ncw/directio.
type Manager struct {
	dataDir string
	open    backendFactory
	devices map[string]blockDevice
	log     *logrus.Entry
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithMemBackend makes every file in the manager an in-memory buffer backed
// by store, instead of a real file under dataDir. Useful for tests: pass
// the same store to a second Manager to simulate reopening the data
// directory after a process restart.
func WithMemBackend(store *MemStore) Option {
	return func(m *Manager) { m.open = store.factory() }
}

// New constructs a Manager rooted at dataDir. By default it uses the direct
// (unbuffered) file backend.
func New(dataDir string, opts ...Option) *Manager {
	m := &Manager{
		dataDir: dataDir,
		devices: make(map[string]blockDevice),
		log:     logrus.WithField("component", "file.Manager"),
	}
	m.open = openDirectDevice
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close releases every cached device. Safe to call more than once.
func (m *Manager) Close() error {
	var firstErr error
	for path, dev := range m.devices {
		if err := dev.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "file: close %s", path)
		}
		delete(m.devices, path)
	}
	return firstErr
}

func (m *Manager) fullPath(relPath string) string {
	return filepath.Join(m.dataDir, relPath)
}

func (m *Manager) device(relPath string, createParents bool) (blockDevice, error) {
	if dev, ok := m.devices[relPath]; ok {
		return dev, nil
	}
	full := m.fullPath(relPath)
	if createParents {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, errors.Wrapf(err, "file: create parent directories for %s", relPath)
		}
	}
	dev, err := m.open(full)
	if err != nil {
		return nil, errors.Wrapf(err, "file: open %s", relPath)
	}
	m.devices[relPath] = dev
	return dev, nil
}

// Read fills buf from offset in the file at relPath. Fails only on I/O
// error or short read.
func (m *Manager) Read(relPath string, offset int64, buf []byte) error {
	dev, err := m.device(relPath, false)
	if err != nil {
		return err
	}
	n, err := dev.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "file: read %s at %d", relPath, offset)
	}
	if n != len(buf) {
		return errors.Errorf("file: short read of %s at %d: got %d want %d", relPath, offset, n, len(buf))
	}
	return nil
}

// Write writes buf at offset in the file at relPath, auto-creating parent
// directories and the file itself on first write.
func (m *Manager) Write(relPath string, offset int64, buf []byte) error {
	dev, err := m.device(relPath, true)
	if err != nil {
		return err
	}
	n, err := dev.WriteAt(buf, offset)
	if err != nil {
		return errors.Wrapf(err, "file: write %s at %d", relPath, offset)
	}
	if n != len(buf) {
		return errors.Errorf("file: short write of %s at %d: wrote %d want %d", relPath, offset, n, len(buf))
	}
	m.log.WithField("path", relPath).Debug("wrote page bytes")
	return nil
}

// PageCount returns file_size / pageSize for relPath, creating the file
// (empty) if it does not yet exist.
func (m *Manager) PageCount(relPath string, pageSize int64) (int64, error) {
	dev, err := m.device(relPath, true)
	if err != nil {
		return 0, err
	}
	size, err := dev.Size()
	if err != nil {
		return 0, errors.Wrapf(err, "file: stat %s", relPath)
	}
	return size / pageSize, nil
}
