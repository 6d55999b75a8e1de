package netlink

import (
	"errors"
	"fmt"
	"io"

	"github.com/wgkit/wgnetlink/netlink/nlenc"
)

// Various errors which may occur when attempting to marshal or unmarshal
// a Message to and from its binary form.
var (
	errIncorrectMessageLength = errors.New("netlink message header length incorrect")
	errShortMessage           = errors.New("not enough data to create a netlink message")
	errUnalignedMessage       = errors.New("input data is not properly aligned for netlink message")
	errShortErrorMessage      = errors.New("not enough data for netlink error code")
)

// ErrTruncatedMessage is returned when a netlink message header declares a
// length which extends beyond the end of the input buffer.
var ErrTruncatedMessage = errors.New("netlink message truncated")

// HeaderFlags specify flags which may be present in a Header.
type HeaderFlags uint16

const (
	// General netlink communication flags.

	// Request indicates a request to netlink.
	Request HeaderFlags = 1

	// Multi indicates a multi-part message, terminated
	// by Done on the last message.
	Multi HeaderFlags = 2

	// Acknowledge requests that netlink reply with
	// an acknowledgement using Error and, if needed,
	// an error code.
	Acknowledge HeaderFlags = 4

	// Echo requests that netlink echo this request
	// back to the sender.
	Echo HeaderFlags = 8

	// DumpInterrupted indicates that a dump was
	// inconsistent due to a sequence change.
	DumpInterrupted HeaderFlags = 16

	// DumpFiltered indicates that a dump was filtered
	// as requested.
	DumpFiltered HeaderFlags = 32

	// Flags used to retrieve data from netlink.

	// Root requests that netlink return a complete table instead
	// of a single entry.
	Root HeaderFlags = 0x100

	// Match requests that netlink return a list of all matching
	// entries.
	Match HeaderFlags = 0x200

	// Atomic requests that netlink send an atomic snapshot of
	// its entries.  Requires CAP_NET_ADMIN or an effective UID of 0.
	Atomic HeaderFlags = 0x300

	// Dump requests that netlink return a complete list of
	// all entries.
	Dump HeaderFlags = Root | Match
)

// HeaderType specifies the type of a Header.
type HeaderType uint16

const (
	// Noop indicates that no action was taken.
	Noop HeaderType = 0x1

	// Error indicates an error code is present, which is also
	// used to indicate success when the code is 0.
	Error HeaderType = 0x2

	// Done indicates the end of a multi-part message.
	Done HeaderType = 0x3

	// Overrun indicates that data was lost from this message.
	Overrun HeaderType = 0x4
)

// nlmsgHeaderLen is the size of a marshaled Header.
const nlmsgHeaderLen = 16

// NB: the memory layout of Header and Linux's struct nlmsghdr must be
// exactly the same.  Cannot reorder, change data type, add, or remove fields.
// Named types of the same size (e.g. HeaderFlags is a uint16) are okay.

// A Header is a netlink header.  A Header is sent and received with each
// Message to indicate metadata regarding a Message.
type Header struct {
	// Length of a Message, including this Header.
	Length uint32

	// Contents of a Message.
	Type HeaderType

	// Flags which may be used to modify a request or response.
	Flags HeaderFlags

	// The sequence number of a Message.
	Sequence uint32

	// The port ID of the sending process.
	PID uint32
}

// A Message is a netlink message.  It contains a Header and an arbitrary
// byte payload, which may be decoded using information from the Header.
//
// Data is encoded in the native endianness of the host system.  Use the
// nlenc package's Uint* and PutUint* functions to encode and decode
// integers.
type Message struct {
	Header Header
	Data   []byte
}

// MarshalBinary marshals a Message into a byte slice.
func (m Message) MarshalBinary() ([]byte, error) {
	ml := nlmsgAlign(int(m.Header.Length))
	if ml < nlmsgHeaderLen || ml != int(m.Header.Length) {
		return nil, errIncorrectMessageLength
	}

	b := make([]byte, ml)

	nlenc.PutUint32(b[0:4], m.Header.Length)
	nlenc.PutUint16(b[4:6], uint16(m.Header.Type))
	nlenc.PutUint16(b[6:8], uint16(m.Header.Flags))
	nlenc.PutUint32(b[8:12], m.Header.Sequence)
	nlenc.PutUint32(b[12:16], m.Header.PID)
	copy(b[16:], m.Data)

	return b, nil
}

// UnmarshalBinary unmarshals the contents of a byte slice into a Message.
func (m *Message) UnmarshalBinary(b []byte) error {
	if len(b) < nlmsgHeaderLen {
		return errShortMessage
	}
	if len(b) != nlmsgAlign(len(b)) {
		return errUnalignedMessage
	}

	// Don't allow misleading length.
	m.Header.Length = nlenc.Uint32(b[0:4])
	if int(m.Header.Length) != len(b) {
		return errShortMessage
	}

	m.Header.Type = HeaderType(nlenc.Uint16(b[4:6]))
	m.Header.Flags = HeaderFlags(nlenc.Uint16(b[6:8]))
	m.Header.Sequence = nlenc.Uint32(b[8:12])
	m.Header.PID = nlenc.Uint32(b[12:16])
	m.Data = b[16:]

	return nil
}

// checkMessage checks a single Message for a netlink error wire format
// payload, returning the embedded error code if one is present.
func checkMessage(m Message) error {
	// An error code of zero in an Error message is an
	// acknowledgement, not an error.
	if m.Header.Type != Error {
		return nil
	}

	if len(m.Data) < 4 {
		return errShortErrorMessage
	}

	if c := nlenc.Int32(m.Data[0:4]); c != 0 {
		// Error code is a negative errno value.
		return newError(-int(c))
	}

	return nil
}

// A MessageStream walks a receive buffer and produces the netlink messages
// contained within it, one at a time.
//
// The stream is consumed as it is walked and is not restartable.  Iteration
// ends at the end of the buffer or at an NLMSG_DONE marker, whichever comes
// first.
type MessageStream struct {
	b    []byte
	pos  int
	done bool
}

// NewMessageStream creates a MessageStream which walks the messages in b.
func NewMessageStream(b []byte) *MessageStream {
	return &MessageStream{b: b}
}

// Done reports whether the stream encountered an NLMSG_DONE marker.
func (s *MessageStream) Done() bool { return s.done }

// Next produces the next Message in the stream, or io.EOF once the stream
// has been fully consumed.
//
// Messages which carry a netlink error code are unpacked: a negative code
// surfaces as an error and a zero code (an acknowledgement) is skipped.
func (s *MessageStream) Next() (Message, error) {
	for {
		m, err := s.next()
		if err != nil {
			return Message{}, err
		}

		switch m.Header.Type {
		case Done:
			s.done = true
			return Message{}, io.EOF
		case Error:
			if err := checkMessage(m); err != nil {
				return Message{}, err
			}

			// Acknowledgement; nothing to hand to the caller.
			continue
		default:
			return m, nil
		}
	}
}

// next produces the next raw Message in the stream, with no special
// handling of control message types.
func (s *MessageStream) next() (Message, error) {
	if s.done || s.pos >= len(s.b) {
		return Message{}, io.EOF
	}

	rem := s.b[s.pos:]
	if len(rem) < nlmsgHeaderLen {
		return Message{}, ErrTruncatedMessage
	}

	l := int(nlenc.Uint32(rem[0:4]))
	if l < nlmsgHeaderLen {
		return Message{}, errShortMessage
	}
	if l > len(rem) {
		return Message{}, ErrTruncatedMessage
	}

	m := Message{
		Header: Header{
			Length:   uint32(l),
			Type:     HeaderType(nlenc.Uint16(rem[4:6])),
			Flags:    HeaderFlags(nlenc.Uint16(rem[6:8])),
			Sequence: nlenc.Uint32(rem[8:12]),
			PID:      nlenc.Uint32(rem[12:16]),
		},
		Data: rem[nlmsgHeaderLen:l],
	}

	s.pos += nlmsgAlign(l)
	return m, nil
}

// ParseMessages parses all netlink messages from b, stopping at the end of
// the buffer or at an NLMSG_DONE marker.  The DONE marker itself is not
// returned.
//
// ParseMessages fails with ErrTruncatedMessage when a message header claims
// more bytes than remain in the buffer.
func ParseMessages(b []byte) ([]Message, error) {
	var msgs []Message

	s := NewMessageStream(b)
	for {
		m, err := s.Next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, m)
	}
}

// parseRawMessages parses all netlink messages from b without interpreting
// control message types, so NLMSG_DONE and NLMSG_ERROR messages are
// returned to the caller as-is.
func parseRawMessages(b []byte) ([]Message, error) {
	var msgs []Message

	s := NewMessageStream(b)
	for {
		m, err := s.next()
		if err == io.EOF {
			return msgs, nil
		}
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, m)
	}
}

// Validate checks the sequence number and port ID of each message in replies
// against those of the request, returning an error on mismatch.
//
// Validation is the transport's job: replies with a PID of zero originate
// from the kernel and are always accepted, as are replies received before
// the kernel has assigned this socket's port ID.
func Validate(request Message, replies []Message) error {
	for _, m := range replies {
		if m.Header.Sequence != request.Header.Sequence {
			return fmt.Errorf("netlink: validate: mismatched sequence in netlink reply: %d, expected: %d",
				m.Header.Sequence, request.Header.Sequence)
		}

		if m.Header.PID != 0 && request.Header.PID != 0 && m.Header.PID != request.Header.PID {
			return fmt.Errorf("netlink: validate: mismatched PID in netlink reply: %d, expected: %d",
				m.Header.PID, request.Header.PID)
		}
	}

	return nil
}
