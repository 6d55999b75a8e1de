package nlenc

import "bytes"

// Bytes returns a null-terminated byte slice with the contents of s.
func Bytes(s string) []byte {
	return append([]byte(s), 0x00)
}

// String returns a string with the contents of b.  The null terminator and
// anything following it is trimmed from the result.
func String(b []byte) string {
	if i := bytes.IndexByte(b, 0x00); i != -1 {
		b = b[:i]
	}

	return string(b)
}
