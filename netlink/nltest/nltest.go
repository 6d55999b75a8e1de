// Package nltest provides utilities for netlink testing.
package nltest

import (
	"fmt"

	"github.com/wgkit/wgnetlink/netlink"
	"github.com/wgkit/wgnetlink/netlink/nlenc"
)

// nlmsgHeaderLen is the size of a marshaled netlink message header.
const nlmsgHeaderLen = 16

// A Func is a request/response function for a test netlink connection.
// The request message is passed as it would be sent on the wire, with all
// header fields populated.
type Func func(req netlink.Message) ([]netlink.Message, error)

// Dial creates a netlink.Conn whose messages are served by fn instead of a
// kernel socket.
func Dial(fn Func) *netlink.Conn {
	return netlink.NewConn(&socket{fn: fn}, 0)
}

// MustMarshalAttributes marshals a slice of netlink.Attributes to their
// binary format, but panics if any errors occur.
func MustMarshalAttributes(attrs []netlink.Attribute) []byte {
	b, err := netlink.MarshalAttributes(attrs)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal attributes to binary: %v", err))
	}

	return b
}

// Multipart sets the multi-part flag on each message in msgs and appends
// the NLMSG_DONE marker, emulating a kernel dump response.
func Multipart(msgs []netlink.Message) []netlink.Message {
	for i := range msgs {
		msgs[i].Header.Flags |= netlink.Multi
	}

	return append(msgs, netlink.Message{
		Header: netlink.Header{
			Type:  netlink.Done,
			Flags: netlink.Multi,
		},
	})
}

// Error returns an error which carries the specified netlink error number.
// When a Func returns an error created by Error, the test connection replies
// with a netlink error message containing number, the same way the kernel
// reports errors in-band.
func Error(number int) error {
	return &netlinkError{number: number}
}

type netlinkError struct {
	number int
}

func (e *netlinkError) Error() string {
	return fmt.Sprintf("nltest: netlink error: errno %d", e.number)
}

var _ netlink.Socket = &socket{}

// A socket is a netlink.Socket which delegates to a Func.
type socket struct {
	fn   Func
	msgs []netlink.Message
	err  error
}

// Close implements netlink.Socket.
func (s *socket) Close() error { return nil }

// Send implements netlink.Socket.  The reply messages produced by the Func
// are queued for the next call to Receive, with any zero header fields
// populated from the request so validation succeeds.
func (s *socket) Send(req netlink.Message) error {
	msgs, err := s.fn(req)
	if err != nil {
		if nerr, ok := err.(*netlinkError); ok {
			// Reply in-band with a netlink error message, as the kernel
			// would, so the error flows through the usual message checks.
			s.msgs = append(s.msgs, netlink.Message{
				Header: netlink.Header{
					Length:   uint32(nlmsgHeaderLen + 4),
					Type:     netlink.Error,
					Sequence: req.Header.Sequence,
					PID:      req.Header.PID,
				},
				Data: nlenc.Int32Bytes(int32(-nerr.number)),
			})

			return nil
		}

		s.err = err
		return nil
	}

	for i := range msgs {
		if msgs[i].Header.Length == 0 {
			msgs[i].Header.Length = uint32(16 + len(msgs[i].Data))
		}
		if msgs[i].Header.Sequence == 0 {
			msgs[i].Header.Sequence = req.Header.Sequence
		}
		if msgs[i].Header.PID == 0 {
			msgs[i].Header.PID = req.Header.PID
		}
	}

	s.msgs = append(s.msgs, msgs...)
	return nil
}

// Receive implements netlink.Socket.
func (s *socket) Receive() ([]netlink.Message, error) {
	if s.err != nil {
		err := s.err
		s.err = nil
		return nil, err
	}

	msgs := s.msgs
	s.msgs = nil
	return msgs, nil
}
