package nlenc

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// NativeEndian returns the native byte order of this system.
func NativeEndian() binary.ByteOrder {
	// Determine endianness by storing a uint16 and checking which byte
	// appears first in memory.
	i := uint16(1)
	if (*(*[2]byte)(unsafe.Pointer(&i)))[0] == 1 {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// Uint8Bytes encodes a uint8 into a newly-allocated byte slice.
func Uint8Bytes(v uint8) []byte {
	return []byte{v}
}

// Uint16Bytes encodes a uint16 into a newly-allocated byte slice using the
// host machine's native endianness.
func Uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	PutUint16(b, v)
	return b
}

// Uint32Bytes encodes a uint32 into a newly-allocated byte slice using the
// host machine's native endianness.
func Uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	PutUint32(b, v)
	return b
}

// Uint64Bytes encodes a uint64 into a newly-allocated byte slice using the
// host machine's native endianness.
func Uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	PutUint64(b, v)
	return b
}

// PutUint16 encodes a uint16 into b using the host machine's native
// endianness.  If b is not exactly 2 bytes in length, PutUint16 will panic.
func PutUint16(b []byte, v uint16) {
	if l := len(b); l != 2 {
		panic(fmt.Sprintf("PutUint16: unexpected byte slice length: %d", l))
	}

	NativeEndian().PutUint16(b, v)
}

// PutUint32 encodes a uint32 into b using the host machine's native
// endianness.  If b is not exactly 4 bytes in length, PutUint32 will panic.
func PutUint32(b []byte, v uint32) {
	if l := len(b); l != 4 {
		panic(fmt.Sprintf("PutUint32: unexpected byte slice length: %d", l))
	}

	NativeEndian().PutUint32(b, v)
}

// PutUint64 encodes a uint64 into b using the host machine's native
// endianness.  If b is not exactly 8 bytes in length, PutUint64 will panic.
func PutUint64(b []byte, v uint64) {
	if l := len(b); l != 8 {
		panic(fmt.Sprintf("PutUint64: unexpected byte slice length: %d", l))
	}

	NativeEndian().PutUint64(b, v)
}

// Uint8 decodes a uint8 from b.  If b is not exactly 1 byte in length,
// Uint8 will panic.
func Uint8(b []byte) uint8 {
	if l := len(b); l != 1 {
		panic(fmt.Sprintf("Uint8: unexpected byte slice length: %d", l))
	}

	return b[0]
}

// Uint16 decodes a uint16 from b using the host machine's native endianness.
// If b is not exactly 2 bytes in length, Uint16 will panic.
func Uint16(b []byte) uint16 {
	if l := len(b); l != 2 {
		panic(fmt.Sprintf("Uint16: unexpected byte slice length: %d", l))
	}

	return NativeEndian().Uint16(b)
}

// Uint32 decodes a uint32 from b using the host machine's native endianness.
// If b is not exactly 4 bytes in length, Uint32 will panic.
func Uint32(b []byte) uint32 {
	if l := len(b); l != 4 {
		panic(fmt.Sprintf("Uint32: unexpected byte slice length: %d", l))
	}

	return NativeEndian().Uint32(b)
}

// Uint64 decodes a uint64 from b using the host machine's native endianness.
// If b is not exactly 8 bytes in length, Uint64 will panic.
func Uint64(b []byte) uint64 {
	if l := len(b); l != 8 {
		panic(fmt.Sprintf("Uint64: unexpected byte slice length: %d", l))
	}

	return NativeEndian().Uint64(b)
}

// Int32Bytes encodes an int32 into a newly-allocated byte slice using the
// host machine's native endianness.
func Int32Bytes(v int32) []byte {
	return Uint32Bytes(uint32(v))
}

// Int32 decodes an int32 from b using the host machine's native endianness.
// If b is not exactly 4 bytes in length, Int32 will panic.
func Int32(b []byte) int32 {
	return int32(Uint32(b))
}
