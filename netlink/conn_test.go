package netlink_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wgkit/wgnetlink/netlink"
	"github.com/wgkit/wgnetlink/netlink/nlenc"
	"github.com/wgkit/wgnetlink/netlink/nltest"
)

func TestConnExecute(t *testing.T) {
	req := netlink.Message{
		Header: netlink.Header{
			Flags: netlink.Request,
		},
		Data: []byte{0x01, 0x02, 0x03, 0x04},
	}

	c := nltest.Dial(func(creq netlink.Message) ([]netlink.Message, error) {
		// Echo the request payload back to the caller.
		return []netlink.Message{{
			Data: creq.Data,
		}}, nil
	})
	defer c.Close()

	msgs, err := c.Execute(req)
	if err != nil {
		t.Fatalf("failed to execute: %v", err)
	}

	if diff := cmp.Diff(1, len(msgs)); diff != "" {
		t.Fatalf("unexpected number of reply messages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(req.Data, msgs[0].Data); diff != "" {
		t.Fatalf("unexpected reply data (-want +got):\n%s", diff)
	}

	// The request must have been assigned a non-zero sequence number, and
	// the reply must carry the same one.
	if msgs[0].Header.Sequence == 0 {
		t.Fatal("reply carries a zero sequence number")
	}
}

func TestConnExecuteMultipart(t *testing.T) {
	c := nltest.Dial(func(_ netlink.Message) ([]netlink.Message, error) {
		return nltest.Multipart([]netlink.Message{
			{Data: []byte{0x01}},
			{Data: []byte{0x02}},
		}), nil
	})
	defer c.Close()

	msgs, err := c.Execute(netlink.Message{
		Header: netlink.Header{
			Flags: netlink.Request | netlink.Dump,
		},
	})
	if err != nil {
		t.Fatalf("failed to execute: %v", err)
	}

	// The NLMSG_DONE marker is stripped from the results.
	if diff := cmp.Diff(2, len(msgs)); diff != "" {
		t.Fatalf("unexpected number of reply messages (-want +got):\n%s", diff)
	}
	for _, m := range msgs {
		if m.Header.Type == netlink.Done {
			t.Fatal("NLMSG_DONE marker returned to caller")
		}
	}
}

func TestConnExecuteNetlinkError(t *testing.T) {
	c := nltest.Dial(func(_ netlink.Message) ([]netlink.Message, error) {
		// ENOENT.
		return nil, nltest.Error(2)
	})
	defer c.Close()

	if _, err := c.Execute(netlink.Message{}); err == nil {
		t.Fatal("expected an error, but none occurred")
	}
}

func TestConnExecuteAcknowledge(t *testing.T) {
	c := nltest.Dial(func(creq netlink.Message) ([]netlink.Message, error) {
		// An error message with a zero code is an acknowledgement.
		return []netlink.Message{{
			Header: netlink.Header{
				Type: netlink.Error,
			},
			Data: nlenc.Int32Bytes(0),
		}}, nil
	})
	defer c.Close()

	msgs, err := c.Execute(netlink.Message{
		Header: netlink.Header{
			Flags: netlink.Request | netlink.Acknowledge,
		},
	})
	if err != nil {
		t.Fatalf("failed to execute: %v", err)
	}

	if diff := cmp.Diff(0, len(msgs)); diff != "" {
		t.Fatalf("unexpected number of reply messages (-want +got):\n%s", diff)
	}
}

func TestConnExecuteSequenceMismatch(t *testing.T) {
	c := nltest.Dial(func(creq netlink.Message) ([]netlink.Message, error) {
		return []netlink.Message{{
			Header: netlink.Header{
				// Never matches the request's assigned sequence.
				Sequence: creq.Header.Sequence + 1,
			},
		}}, nil
	})
	defer c.Close()

	if _, err := c.Execute(netlink.Message{}); err == nil {
		t.Fatal("expected a validation error, but none occurred")
	}
}

func TestConnSendPopulatesHeader(t *testing.T) {
	var got netlink.Message
	c := nltest.Dial(func(creq netlink.Message) ([]netlink.Message, error) {
		got = creq
		return nil, nil
	})
	defer c.Close()

	req := netlink.Message{
		Data: []byte{0x01, 0x02, 0x03, 0x04},
	}

	out, err := c.Send(req)
	if err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	if diff := cmp.Diff(out, got); diff != "" {
		t.Fatalf("sent message does not match wire message (-want +got):\n%s", diff)
	}

	if want, g := uint32(16+len(req.Data)), got.Header.Length; want != g {
		t.Fatalf("unexpected header length: %d, want: %d", g, want)
	}
	if got.Header.Sequence == 0 {
		t.Fatal("sequence number was not populated")
	}
}

func TestConnSendAlignsPayload(t *testing.T) {
	var got netlink.Message
	c := nltest.Dial(func(creq netlink.Message) ([]netlink.Message, error) {
		got = creq
		return nil, nil
	})
	defer c.Close()

	// Unaligned payload must be zero-padded out to the alignment boundary
	// before it hits the wire.
	if _, err := c.Send(netlink.Message{
		Data: []byte{0x01, 0x02, 0x03},
	}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	if diff := cmp.Diff([]byte{0x01, 0x02, 0x03, 0x00}, got.Data); diff != "" {
		t.Fatalf("unexpected padded data (-want +got):\n%s", diff)
	}
	if want, g := uint32(20), got.Header.Length; want != g {
		t.Fatalf("unexpected header length: %d, want: %d", g, want)
	}
}
