package genetlink

import "errors"

// errInvalidMessage is returned when a message payload is too short to
// contain a generic netlink header.
var errInvalidMessage = errors.New("generic netlink message too short")

// genlHeaderLen is the size of a marshaled Header: command, version, and a
// reserved uint16 of padding.
const genlHeaderLen = 4

// A Header is a generic netlink header.  A Header is sent and received with
// each generic netlink message to indicate metadata regarding a Message.
type Header struct {
	// Command specifies a command to issue to netlink.
	Command uint8

	// Version specifies the version of a command to use.
	Version uint8
}

// A Message is a generic netlink message.  It contains a Header and an
// arbitrary byte payload, which is typically a netlink attribute sequence.
type Message struct {
	Header Header
	Data   []byte
}

// MarshalBinary marshals a Message into a byte slice.
func (m Message) MarshalBinary() ([]byte, error) {
	b := make([]byte, genlHeaderLen)
	b[0] = m.Header.Command
	b[1] = m.Header.Version
	// b[2:4] is reserved and must remain zero.

	return append(b, m.Data...), nil
}

// UnmarshalBinary unmarshals the contents of a byte slice into a Message.
func (m *Message) UnmarshalBinary(b []byte) error {
	if len(b) < genlHeaderLen {
		return errInvalidMessage
	}

	m.Header.Command = b[0]
	m.Header.Version = b[1]
	m.Data = b[genlHeaderLen:]

	return nil
}
