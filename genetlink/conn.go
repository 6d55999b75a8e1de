package genetlink

import (
	"github.com/wgkit/wgnetlink/netlink"
)

// Protocol is the netlink protocol constant used to specify generic
// netlink (NETLINK_GENERIC).
const Protocol = 0x10

// A Conn is a generic netlink connection.  A Conn can be used to send and
// receive generic netlink messages to and from netlink families.
type Conn struct {
	c *netlink.Conn
}

// Dial dials a generic netlink connection.  config specifies optional
// configuration for the underlying netlink connection; a nil config is
// equivalent to the zero value.
func Dial(config *netlink.Config) (*Conn, error) {
	c, err := netlink.Dial(Protocol, config)
	if err != nil {
		return nil, err
	}

	return NewConn(c), nil
}

// NewConn creates a Conn that wraps an existing *netlink.Conn.
func NewConn(c *netlink.Conn) *Conn {
	return &Conn{c: c}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// GetFamily resolves the generic netlink family registered under name,
// including its kernel-assigned ID and multicast groups.
//
// If the family is not registered, netlink returns an ENOENT error.
func (c *Conn) GetFamily(name string) (Family, error) {
	req, err := buildFamilyRequest(name)
	if err != nil {
		return Family{}, err
	}

	msgs, err := c.Execute(req, ctrlID, netlink.Request)
	if err != nil {
		return Family{}, err
	}

	families, err := parseFamilies(msgs)
	if err != nil {
		return Family{}, err
	}
	if len(families) == 0 {
		return Family{}, errInvalidFamily
	}

	return families[0], nil
}

// Execute sends a single Message to netlink using the specified family and
// flags, receives one or more replies, and then unpacks them.
func (c *Conn) Execute(m Message, family uint16, flags netlink.HeaderFlags) ([]Message, error) {
	nm, err := packMessage(m, family, flags)
	if err != nil {
		return nil, err
	}

	msgs, err := c.c.Execute(nm)
	if err != nil {
		return nil, err
	}

	return unpackMessages(msgs)
}

// packMessage wraps a generic netlink Message into a netlink.Message with
// the specified family as its type.
func packMessage(m Message, family uint16, flags netlink.HeaderFlags) (netlink.Message, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}

	return netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(family),
			Flags: flags,
		},
		Data: b,
	}, nil
}

// unpackMessages unwraps generic netlink Messages from netlink.Messages.
func unpackMessages(msgs []netlink.Message) ([]Message, error) {
	gmsgs := make([]Message, 0, len(msgs))
	for _, nm := range msgs {
		var gm Message
		if err := gm.UnmarshalBinary(nm.Data); err != nil {
			return nil, err
		}

		gmsgs = append(gmsgs, gm)
	}

	return gmsgs, nil
}
