// Package genltest provides utilities for generic netlink testing.
package genltest

import (
	"fmt"

	"github.com/wgkit/wgnetlink/genetlink"
	"github.com/wgkit/wgnetlink/netlink"
	"github.com/wgkit/wgnetlink/netlink/nlenc"
	"github.com/wgkit/wgnetlink/netlink/nltest"
)

// Constants which mirror the generic netlink controller's wire format, so
// ServeFamily can answer family resolution requests.
const (
	ctrlID      = 0x10
	ctrlVersion = 1

	ctrlCmdGetFamily = 3

	ctrlAttrFamilyID   = 1
	ctrlAttrFamilyName = 2
	ctrlAttrVersion    = 3
)

// A Func is a request/response function for a test generic netlink
// connection.  It receives the generic netlink request along with the
// netlink message which carried it.
type Func func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error)

// Dial creates a genetlink.Conn whose messages are served by fn instead of
// a kernel socket.
func Dial(fn Func) *genetlink.Conn {
	return genetlink.NewConn(nltest.Dial(func(nreq netlink.Message) ([]netlink.Message, error) {
		var greq genetlink.Message
		if err := greq.UnmarshalBinary(nreq.Data); err != nil {
			return nil, err
		}

		gmsgs, err := fn(greq, nreq)
		if err != nil {
			return nil, err
		}

		nmsgs := make([]netlink.Message, 0, len(gmsgs))
		for _, gm := range gmsgs {
			b, err := gm.MarshalBinary()
			if err != nil {
				return nil, err
			}

			nmsgs = append(nmsgs, netlink.Message{
				Header: netlink.Header{Type: nreq.Header.Type},
				Data:   b,
			})
		}

		return nmsgs, nil
	}))
}

// Error returns an error which carries the specified netlink error number.
// When a Func returns an error created by Error, the connection replies
// with a netlink error message instead of failing outright.  See the
// documentation of nltest.Error.
func Error(number int) error {
	return nltest.Error(number)
}

// ServeFamily returns a Func which answers generic netlink controller
// requests for family f, passing all other requests through to fn.
func ServeFamily(f genetlink.Family, fn Func) Func {
	return func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
		if nreq.Header.Type != ctrlID {
			return fn(greq, nreq)
		}

		if greq.Header.Command != ctrlCmdGetFamily {
			return nil, fmt.Errorf("genltest: unhandled controller command: %d", greq.Header.Command)
		}

		name, err := familyName(greq.Data)
		if err != nil {
			return nil, err
		}
		if name != f.Name {
			// Kernel reports unknown families with ENOENT; a distinct
			// error is clearer in tests.
			return nil, fmt.Errorf("genltest: family not registered: %q", name)
		}

		b := nltest.MustMarshalAttributes([]netlink.Attribute{
			{
				Type: ctrlAttrFamilyID,
				Data: nlenc.Uint16Bytes(f.ID),
			},
			{
				Type: ctrlAttrFamilyName,
				Data: nlenc.Bytes(f.Name),
			},
			{
				Type: ctrlAttrVersion,
				Data: nlenc.Uint32Bytes(uint32(f.Version)),
			},
		})

		return []genetlink.Message{{
			Header: genetlink.Header{Version: ctrlVersion},
			Data:   b,
		}}, nil
	}
}

// CheckRequest returns a Func which verifies that each request carries the
// specified family, command, and flags, and then invokes fn.  A zero family
// or command, or zero flags, skips that check.
func CheckRequest(family uint16, command uint8, flags netlink.HeaderFlags, fn Func) Func {
	return func(greq genetlink.Message, nreq netlink.Message) ([]genetlink.Message, error) {
		if family != 0 && uint16(nreq.Header.Type) != family {
			return nil, fmt.Errorf("genltest: unexpected netlink family: %d, want: %d", nreq.Header.Type, family)
		}

		if command != 0 && greq.Header.Command != command {
			return nil, fmt.Errorf("genltest: unexpected generic netlink command: %d, want: %d", greq.Header.Command, command)
		}

		if flags != 0 && nreq.Header.Flags != flags {
			return nil, fmt.Errorf("genltest: unexpected netlink flags: %#x, want: %#x", uint16(nreq.Header.Flags), uint16(flags))
		}

		return fn(greq, nreq)
	}
}

// familyName extracts the requested family name from a controller request
// payload.
func familyName(b []byte) (string, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return "", err
	}

	var name string
	for ad.Next() {
		if ad.Type() == ctrlAttrFamilyName {
			name = ad.String()
		}
	}

	if err := ad.Err(); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("genltest: controller request missing family name")
	}

	return name, nil
}
