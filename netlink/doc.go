// Package netlink provides low-level access to Linux netlink sockets.
//
// The package implements the netlink wire format: message framing,
// type-length-value attribute encoding and decoding, and a Conn type which
// performs request/response transactions against the kernel, including
// multi-part "dump" sequences.
//
// All integers in netlink messages are encoded in the native endianness of
// the host system.  Use the nlenc package to encode and decode them.
package netlink
