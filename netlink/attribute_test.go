package netlink

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wgkit/wgnetlink/netlink/nlenc"
)

func TestMarshalAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs []Attribute
		b     []byte
		err   error
	}{
		{
			name: "one attribute, short payload",
			attrs: []Attribute{{
				Type: 1,
				Data: []byte{0xff},
			}},
			b: append(
				append(nlenc.Uint16Bytes(5), nlenc.Uint16Bytes(1)...),
				0xff, 0x00, 0x00, 0x00,
			),
		},
		{
			name: "one attribute, aligned payload",
			attrs: []Attribute{{
				Type: 2,
				Data: nlenc.Uint32Bytes(0xffffffff),
			}},
			b: append(
				append(nlenc.Uint16Bytes(8), nlenc.Uint16Bytes(2)...),
				0xff, 0xff, 0xff, 0xff,
			),
		},
		{
			name: "multiple attributes",
			attrs: []Attribute{
				{
					Type: 1,
					Data: []byte{0xff},
				},
				{
					Type: 2,
					Data: nlenc.Uint16Bytes(0x1234),
				},
			},
			b: append(
				append(
					append(nlenc.Uint16Bytes(5), nlenc.Uint16Bytes(1)...),
					0xff, 0x00, 0x00, 0x00,
				),
				append(
					append(nlenc.Uint16Bytes(6), nlenc.Uint16Bytes(2)...),
					append(nlenc.Uint16Bytes(0x1234), 0x00, 0x00)...,
				)...,
			),
		},
		{
			name: "length mismatch",
			attrs: []Attribute{{
				Length: 3,
				Type:   1,
				Data:   []byte{0xff},
			}},
			err: ErrInvalidAttribute,
		},
		{
			name: "payload too large",
			attrs: []Attribute{{
				Type: 1,
				Data: make([]byte, 0xffff-nlaHeaderLen+1),
			}},
			err: ErrAttributeTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalAttributes(tt.attrs)

			if diff := cmp.Diff(tt.err, err, cmp.Comparer(compareErrors)); diff != "" {
				t.Fatalf("unexpected error (-want +got):\n%s", diff)
			}
			if err != nil {
				return
			}

			if diff := cmp.Diff(tt.b, b); diff != "" {
				t.Fatalf("unexpected bytes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalAttributes(t *testing.T) {
	tests := []struct {
		name  string
		b     []byte
		attrs []Attribute
		err   error
	}{
		{
			name: "empty",
		},
		{
			name: "trailing bytes shorter than a header",
			b:    []byte{0x01, 0x02},
			err:  ErrInvalidAttribute,
		},
		{
			name: "length shorter than the header itself",
			b:    append(nlenc.Uint16Bytes(3), nlenc.Uint16Bytes(1)...),
			err:  ErrInvalidAttribute,
		},
		{
			name: "length overruns the buffer",
			b: append(
				append(nlenc.Uint16Bytes(8), nlenc.Uint16Bytes(1)...),
				0xff,
			),
			err: ErrInvalidAttribute,
		},
		{
			name: "nested payload is not a valid attribute sequence",
			b: append(
				append(nlenc.Uint16Bytes(8), nlenc.Uint16Bytes(1|Nested)...),
				0xff, 0xff, 0xff, 0xff,
			),
			err: ErrInvalidAttribute,
		},
		{
			name: "one attribute",
			b: append(
				append(nlenc.Uint16Bytes(5), nlenc.Uint16Bytes(1)...),
				0xff, 0x00, 0x00, 0x00,
			),
			attrs: []Attribute{{
				Length: 5,
				Type:   1,
				Data:   []byte{0xff},
			}},
		},
		{
			name: "two attributes with padding between",
			b: append(
				append(
					append(nlenc.Uint16Bytes(5), nlenc.Uint16Bytes(1)...),
					0xff, 0x00, 0x00, 0x00,
				),
				append(
					append(nlenc.Uint16Bytes(8), nlenc.Uint16Bytes(2)...),
					nlenc.Uint32Bytes(0xffffffff)...,
				)...,
			),
			attrs: []Attribute{
				{
					Length: 5,
					Type:   1,
					Data:   []byte{0xff},
				},
				{
					Length: 8,
					Type:   2,
					Data:   []byte{0xff, 0xff, 0xff, 0xff},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs, err := UnmarshalAttributes(tt.b)

			if diff := cmp.Diff(tt.err, err, cmp.Comparer(compareErrors)); diff != "" {
				t.Fatalf("unexpected error (-want +got):\n%s", diff)
			}
			if err != nil {
				return
			}

			if diff := cmp.Diff(tt.attrs, attrs); diff != "" {
				t.Fatalf("unexpected attributes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalAttributesRoundTrip(t *testing.T) {
	attrs := []Attribute{
		{
			Type: 1,
			Data: []byte("wg0\x00"),
		},
		{
			Type: 2 | NetByteOrder,
			Data: []byte{0x12, 0x34},
		},
		{
			Type: 3,
			Data: nlenc.Uint64Bytes(0xdeadbeefdeadbeef),
		},
	}

	b, err := MarshalAttributes(attrs)
	if err != nil {
		t.Fatalf("failed to marshal attributes: %v", err)
	}

	got, err := UnmarshalAttributes(b)
	if err != nil {
		t.Fatalf("failed to unmarshal attributes: %v", err)
	}

	// MarshalAttributes fills in the Length fields in place.
	if diff := cmp.Diff(attrs, got); diff != "" {
		t.Fatalf("unexpected attributes (-want +got):\n%s", diff)
	}
}

func TestUnmarshalAttributesNestingDepth(t *testing.T) {
	// nest wraps b in n levels of nested attributes.
	nest := func(b []byte, n int) []byte {
		for i := 0; i < n; i++ {
			var err error
			b, err = MarshalAttributes([]Attribute{{
				Type: 1 | Nested,
				Data: b,
			}})
			if err != nil {
				t.Fatalf("failed to marshal attributes: %v", err)
			}
		}

		return b
	}

	payload, err := MarshalAttributes([]Attribute{{
		Type: 1,
		Data: nlenc.Uint16Bytes(0xff),
	}})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	if _, err := UnmarshalAttributes(nest(payload, maxNestingDepth)); err != nil {
		t.Fatalf("failed to unmarshal attributes at the depth bound: %v", err)
	}

	if _, err := UnmarshalAttributes(nest(payload, maxNestingDepth+1)); err != ErrNestingTooDeep {
		t.Fatalf("expected ErrNestingTooDeep beyond the depth bound, but got: %v", err)
	}
}

func TestAttributeDecoder(t *testing.T) {
	b, err := MarshalAttributes([]Attribute{
		{
			Type: 1,
			Data: nlenc.Bytes("wg0"),
		},
		{
			Type: 2,
			Data: nlenc.Uint8Bytes(1),
		},
		{
			Type: 3,
			Data: nlenc.Uint16Bytes(51820),
		},
		{
			Type: 4,
			Data: nlenc.Uint32Bytes(0xdeadbeef),
		},
		{
			Type: 5,
			Data: nlenc.Uint64Bytes(0xdeadbeefdeadbeef),
		},
		{
			Type: 6 | Nested,
			Data: mustMarshalAttributes([]Attribute{{
				Type: 1,
				Data: nlenc.Uint16Bytes(0xff),
			}}),
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal attributes: %v", err)
	}

	ad, err := NewAttributeDecoder(b)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	var (
		str    string
		u8     uint8
		u16    uint16
		u32    uint32
		u64    uint64
		nested bool
	)

	for ad.Next() {
		switch ad.Type() {
		case 1:
			str = ad.String()
		case 2:
			u8 = ad.Uint8()
		case 3:
			u16 = ad.Uint16()
		case 4:
			u32 = ad.Uint32()
		case 5:
			u64 = ad.Uint64()
		case 6:
			nested = ad.Nested()
			ad.Do(func(b []byte) error {
				_, err := UnmarshalAttributes(b)
				return err
			})
		}
	}
	if err := ad.Err(); err != nil {
		t.Fatalf("failed to decode attributes: %v", err)
	}

	if diff := cmp.Diff("wg0", str); diff != "" {
		t.Fatalf("unexpected string (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint8(1), u8); diff != "" {
		t.Fatalf("unexpected uint8 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint16(51820), u16); diff != "" {
		t.Fatalf("unexpected uint16 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint32(0xdeadbeef), u32); diff != "" {
		t.Fatalf("unexpected uint32 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(uint64(0xdeadbeefdeadbeef), u64); diff != "" {
		t.Fatalf("unexpected uint64 (-want +got):\n%s", diff)
	}
	if !nested {
		t.Fatal("expected nested flag on attribute 6")
	}
}

func TestAttributeDecoderDeferredErrors(t *testing.T) {
	errFn := errors.New("some error")

	tests := []struct {
		name string
		do   func(ad *AttributeDecoder)
		err  error
	}{
		{
			name: "uint16 with wrong payload size",
			do: func(ad *AttributeDecoder) {
				for ad.Next() {
					_ = ad.Uint16()
				}
			},
			err: ErrInvalidAttribute,
		},
		{
			name: "uint64 with wrong payload size",
			do: func(ad *AttributeDecoder) {
				for ad.Next() {
					_ = ad.Uint64()
				}
			},
			err: ErrInvalidAttribute,
		},
		{
			name: "do returns an error",
			do: func(ad *AttributeDecoder) {
				for ad.Next() {
					ad.Do(func(_ []byte) error {
						return errFn
					})
				}
			},
			err: errFn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := MarshalAttributes([]Attribute{{
				Type: 1,
				Data: []byte{0xff},
			}})
			if err != nil {
				t.Fatalf("failed to marshal attributes: %v", err)
			}

			ad, err := NewAttributeDecoder(b)
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}

			tt.do(ad)

			if diff := cmp.Diff(tt.err, ad.Err(), cmp.Comparer(compareErrors)); diff != "" {
				t.Fatalf("unexpected error (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAttributeDecoderBytesAfterError(t *testing.T) {
	b, err := MarshalAttributes([]Attribute{{
		Type: 1,
		Data: []byte{0xff},
	}})
	if err != nil {
		t.Fatalf("failed to marshal attributes: %v", err)
	}

	ad, err := NewAttributeDecoder(b)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	for ad.Next() {
		// Payload is one byte; Uint16 fails and later accessors must return
		// nothing.
		_ = ad.Uint16()
		if b := ad.Bytes(); b != nil {
			t.Fatalf("expected no bytes after error, but got: % #x", b)
		}
	}

	if diff := cmp.Diff(ErrInvalidAttribute, ad.Err(), cmp.Comparer(compareErrors)); diff != "" {
		t.Fatalf("unexpected error (-want +got):\n%s", diff)
	}
}

func TestAttributeEncoder(t *testing.T) {
	ae := NewAttributeEncoder()
	ae.String(1, "wg0")
	ae.Uint8(2, 1)
	ae.Uint16(3, 51820)
	ae.Uint32(4, 0xdeadbeef)
	ae.Uint64(5, 0xdeadbeefdeadbeef)
	ae.Flag(6)
	ae.Bytes(7, []byte{0xde, 0xad})
	ae.Do(8, func() ([]byte, error) {
		return []byte{0xbe, 0xef}, nil
	})
	ae.Nested(9, func(nae *AttributeEncoder) error {
		nae.Uint16(1, 0xff)
		return nil
	})

	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("failed to encode attributes: %v", err)
	}

	want := mustMarshalAttributes([]Attribute{
		{
			Type: 1,
			Data: nlenc.Bytes("wg0"),
		},
		{
			Type: 2,
			Data: nlenc.Uint8Bytes(1),
		},
		{
			Type: 3,
			Data: nlenc.Uint16Bytes(51820),
		},
		{
			Type: 4,
			Data: nlenc.Uint32Bytes(0xdeadbeef),
		},
		{
			Type: 5,
			Data: nlenc.Uint64Bytes(0xdeadbeefdeadbeef),
		},
		{
			Type: 6,
		},
		{
			Type: 7,
			Data: []byte{0xde, 0xad},
		},
		{
			Type: 8,
			Data: []byte{0xbe, 0xef},
		},
		{
			Type: 9 | Nested,
			Data: mustMarshalAttributes([]Attribute{{
				Type: 1,
				Data: nlenc.Uint16Bytes(0xff),
			}}),
		},
	})

	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("unexpected bytes (-want +got):\n%s", diff)
	}
}

func TestAttributeEncoderDeferredErrors(t *testing.T) {
	errFn := errors.New("some error")

	tests := []struct {
		name string
		fn   func(ae *AttributeEncoder)
		err  error
	}{
		{
			name: "do returns an error",
			fn: func(ae *AttributeEncoder) {
				ae.Do(1, func() ([]byte, error) {
					return nil, errFn
				})
			},
			err: errFn,
		},
		{
			name: "nested returns an error",
			fn: func(ae *AttributeEncoder) {
				ae.Nested(1, func(_ *AttributeEncoder) error {
					return errFn
				})
			},
			err: errFn,
		},
		{
			name: "nested payload too large",
			fn: func(ae *AttributeEncoder) {
				ae.Nested(1, func(nae *AttributeEncoder) error {
					nae.Bytes(1, make([]byte, 0xffff))
					return nil
				})
			},
			err: ErrAttributeTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := NewAttributeEncoder()
			tt.fn(ae)

			// Later fields are ignored once an error is pending.
			ae.Uint16(2, 1)

			_, err := ae.Encode()
			if diff := cmp.Diff(tt.err, err, cmp.Comparer(compareErrors)); diff != "" {
				t.Fatalf("unexpected error (-want +got):\n%s", diff)
			}
		})
	}
}

func mustMarshalAttributes(attrs []Attribute) []byte {
	b, err := MarshalAttributes(attrs)
	if err != nil {
		panic(err)
	}
	return b
}

func compareErrors(x, y error) bool {
	switch {
	case x == nil && y == nil:
		return true
	case x == nil || y == nil:
		return false
	default:
		return x.Error() == y.Error()
	}
}
