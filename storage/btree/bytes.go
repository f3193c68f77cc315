package btree

import "encoding/binary"

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func putLEUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
