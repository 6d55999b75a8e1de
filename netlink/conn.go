package netlink

import (
	"sync/atomic"
)

// A Conn is a connection to netlink.  A Conn can be used to send and
// receive netlink messages, pairing each request with its replies by
// sequence number and port ID.
//
// A Conn is safe for concurrent use, but calls to Execute from multiple
// goroutines may interleave their replies; callers who need strict pairing
// should serialize access or use one Conn per goroutine.
type Conn struct {
	sock Socket
	seq  uint32
	pid  uint32
}

// A Socket is an operating system-specific implementation of netlink
// sockets used by Conn.  Its Receive method returns the raw messages of a
// single datagram, including any NLMSG_DONE or NLMSG_ERROR control
// messages.
type Socket interface {
	Close() error
	Send(m Message) error
	Receive() ([]Message, error)
}

// NewConn creates a Conn using an existing Socket, such as one opened by
// Dial or one provided by a test harness.  pid specifies the port ID
// assigned to the socket, or zero when unknown.
func NewConn(sock Socket, pid uint32) *Conn {
	return &Conn{
		sock: sock,
		pid:  pid,
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.sock.Close()
}

// Execute sends a single Message to netlink, receives one or more replies,
// and then checks the validity of the replies against the request.
func (c *Conn) Execute(m Message) ([]Message, error) {
	req, err := c.Send(m)
	if err != nil {
		return nil, err
	}

	replies, err := c.Receive()
	if err != nil {
		return nil, err
	}

	if err := Validate(req, replies); err != nil {
		return nil, err
	}

	return replies, nil
}

// Send sends a single Message to netlink.  The Length, Sequence, and PID
// header fields are populated automatically when they are left as zero.
// Send returns a copy of the Message with all header fields populated.
func (c *Conn) Send(m Message) (Message, error) {
	// Pad the payload out to the netlink alignment boundary so the header
	// length always describes a marshalable message.
	if l := nlmsgAlign(len(m.Data)); l != len(m.Data) {
		b := make([]byte, l)
		copy(b, m.Data)
		m.Data = b
	}

	m.Header.Length = uint32(nlmsgHeaderLen + len(m.Data))

	if m.Header.Sequence == 0 {
		m.Header.Sequence = c.nextSequence()
	}
	if m.Header.PID == 0 {
		m.Header.PID = c.pid
	}

	if err := c.sock.Send(m); err != nil {
		return Message{}, err
	}

	return m, nil
}

// Receive receives one or more messages from netlink.  Multi-part messages
// are handled transparently: datagrams are consumed until the NLMSG_DONE
// marker arrives, and the marker itself is never returned.
//
// Any NLMSG_ERROR message with a non-zero code is unpacked and returned as
// an error; acknowledgements are discarded.
func (c *Conn) Receive() ([]Message, error) {
	var res []Message
	for {
		msgs, err := c.sock.Receive()
		if err != nil {
			return nil, err
		}

		var done bool
		for _, m := range msgs {
			if m.Header.Type == Done {
				done = true
				break
			}

			if err := checkMessage(m); err != nil {
				return nil, err
			}

			if m.Header.Type == Error {
				// Acknowledgement; nothing useful for the caller.
				continue
			}

			res = append(res, m)
		}

		// A reply without the multi-part flag is complete on its own.
		multi := len(msgs) > 0 && msgs[len(msgs)-1].Header.Flags&Multi != 0

		if done || !multi {
			return res, nil
		}
	}
}

// nextSequence atomically increments and returns this connection's sequence
// number.
func (c *Conn) nextSequence() uint32 {
	return atomic.AddUint32(&c.seq, 1)
}
