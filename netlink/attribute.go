package netlink

import (
	"errors"

	"github.com/wgkit/wgnetlink/netlink/nlenc"
)

// Errors which may occur when encoding or decoding netlink attributes.
var (
	// ErrAttributeTooLarge is returned when an attribute payload cannot be
	// represented by the 16-bit length field of its header.
	ErrAttributeTooLarge = errors.New("netlink attribute data too large for length field")

	// ErrInvalidAttribute is returned when an attribute header declares a
	// length which is too short to contain the header itself, overruns the
	// input buffer, or leaves trailing bytes which cannot contain another
	// attribute.
	ErrInvalidAttribute = errors.New("invalid netlink attribute")

	// ErrNestingTooDeep is returned when nested attributes recurse beyond
	// the depth bound during decoding.
	ErrNestingTooDeep = errors.New("netlink attributes nested too deeply")
)

const (
	// nlaHeaderLen is the size of an attribute's type/length header.
	nlaHeaderLen = 4

	// maxNestingDepth bounds recursion when validating nested attributes,
	// to guard against adversarial input.  The WireGuard schema nests at
	// most four levels deep.
	maxNestingDepth = 16
)

// Flag bits stored in an attribute's type field, per the kernel's
// include/uapi/linux/netlink.h.  Nested and NetByteOrder may be OR'd into
// an Attribute's Type to set the matching flag.
const (
	Nested       uint16 = 0x8000
	NetByteOrder uint16 = 0x4000

	nlaTypeMask = ^(Nested | NetByteOrder)
)

// An Attribute is a netlink attribute in type-length-value form.  Data is
// opaque to this package; nested attribute payloads contain a further
// attribute sequence.
type Attribute struct {
	// Length of an Attribute, including this field and Type.  The length
	// does not count alignment padding which follows Data on the wire.
	Length uint16

	// The type of this Attribute, typically defined in a kernel UAPI
	// header.  The two high bits are reserved for the nested and network
	// byte order flags.
	Type uint16

	// An arbitrary payload which is specified by Type.
	Data []byte
}

// MarshalAttributes packs a slice of Attributes into a single byte slice,
// padding each attribute's payload to the netlink alignment boundary.
//
// In most cases, the Length field of each Attribute should be set to 0, so
// it can be calculated and populated automatically for each Attribute.
func MarshalAttributes(attrs []Attribute) ([]byte, error) {
	var l int
	for i := range attrs {
		if len(attrs[i].Data) > 0xffff-nlaHeaderLen {
			return nil, ErrAttributeTooLarge
		}

		if attrs[i].Length == 0 {
			attrs[i].Length = uint16(nlaHeaderLen + len(attrs[i].Data))
		} else if int(attrs[i].Length) != nlaHeaderLen+len(attrs[i].Data) {
			return nil, ErrInvalidAttribute
		}

		l += nlaAlign(int(attrs[i].Length))
	}

	b := make([]byte, l)

	var pos int
	for _, a := range attrs {
		nlenc.PutUint16(b[pos:pos+2], a.Length)
		nlenc.PutUint16(b[pos+2:pos+4], a.Type)
		copy(b[pos+nlaHeaderLen:], a.Data)

		// Zero padding up to the alignment boundary is already present
		// because b was allocated at the aligned total size.
		pos += nlaAlign(int(a.Length))
	}

	return b, nil
}

// UnmarshalAttributes unpacks a slice of Attributes from a single byte
// slice.  Payloads of attributes which carry the nested flag are validated
// recursively, with recursion bounded by a fixed depth limit.
func UnmarshalAttributes(b []byte) ([]Attribute, error) {
	return unmarshalAttributes(b, 0)
}

func unmarshalAttributes(b []byte, depth int) ([]Attribute, error) {
	if depth > maxNestingDepth {
		return nil, ErrNestingTooDeep
	}

	var attrs []Attribute

	var pos int
	for pos < len(b) {
		if len(b)-pos < nlaHeaderLen {
			// Trailing bytes which cannot contain an attribute header.
			return nil, ErrInvalidAttribute
		}

		l := int(nlenc.Uint16(b[pos : pos+2]))
		if l < nlaHeaderLen {
			// Length includes the header itself, so it can never be
			// shorter than the header.
			return nil, ErrInvalidAttribute
		}
		if pos+l > len(b) {
			return nil, ErrInvalidAttribute
		}

		a := Attribute{
			Length: uint16(l),
			Type:   nlenc.Uint16(b[pos+2 : pos+4]),
			Data:   b[pos+nlaHeaderLen : pos+l],
		}

		if a.Type&Nested != 0 {
			// Nested payloads must themselves form a valid attribute
			// sequence.
			if _, err := unmarshalAttributes(a.Data, depth+1); err != nil {
				return nil, err
			}
		}

		attrs = append(attrs, a)

		pos += nlaAlign(l)
	}

	return attrs, nil
}

// An AttributeDecoder provides a safe iterator over a netlink attribute
// sequence, with typed accessors for the current attribute's payload.
//
// Any accessor errors are deferred and returned from Err, so checks do not
// need to occur on every call.
type AttributeDecoder struct {
	attrs []Attribute
	i     int
	err   error
}

// NewAttributeDecoder creates an AttributeDecoder which iterates over the
// attributes packed in b.
func NewAttributeDecoder(b []byte) (*AttributeDecoder, error) {
	attrs, err := UnmarshalAttributes(b)
	if err != nil {
		return nil, err
	}

	return &AttributeDecoder{
		attrs: attrs,
		// i keeps a 1-based cursor so the zero value means "before the
		// first attribute".
	}, nil
}

// Next advances the decoder to the next attribute, returning false when no
// attributes remain or an accessor has failed.
func (ad *AttributeDecoder) Next() bool {
	if ad.err != nil {
		return false
	}

	ad.i++
	return ad.i <= len(ad.attrs)
}

// attr returns the current attribute pointed to by the decoder.
func (ad *AttributeDecoder) attr() Attribute {
	return ad.attrs[ad.i-1]
}

// Type returns the type of the current attribute, with the nested and
// network byte order flag bits masked away.
func (ad *AttributeDecoder) Type() uint16 {
	return ad.attr().Type & nlaTypeMask
}

// Nested reports whether the current attribute carries the nested flag.
func (ad *AttributeDecoder) Nested() bool {
	return ad.attr().Type&Nested != 0
}

// Err returns the first error encountered by an accessor, if any.
func (ad *AttributeDecoder) Err() error {
	return ad.err
}

// Bytes returns the raw payload of the current attribute.
func (ad *AttributeDecoder) Bytes() []byte {
	if ad.err != nil {
		return nil
	}

	src := ad.attr().Data
	dest := make([]byte, len(src))
	copy(dest, src)
	return dest
}

// String returns the payload of the current attribute as a string, trimming
// a null terminator if one is present.
func (ad *AttributeDecoder) String() string {
	if ad.err != nil {
		return ""
	}

	return nlenc.String(ad.attr().Data)
}

// Uint8 returns the payload of the current attribute as a uint8.
func (ad *AttributeDecoder) Uint8() uint8 {
	if ad.err != nil {
		return 0
	}

	b := ad.attr().Data
	if len(b) != 1 {
		ad.err = ErrInvalidAttribute
		return 0
	}

	return nlenc.Uint8(b)
}

// Uint16 returns the payload of the current attribute as a uint16.
func (ad *AttributeDecoder) Uint16() uint16 {
	if ad.err != nil {
		return 0
	}

	b := ad.attr().Data
	if len(b) != 2 {
		ad.err = ErrInvalidAttribute
		return 0
	}

	return nlenc.Uint16(b)
}

// Uint32 returns the payload of the current attribute as a uint32.
func (ad *AttributeDecoder) Uint32() uint32 {
	if ad.err != nil {
		return 0
	}

	b := ad.attr().Data
	if len(b) != 4 {
		ad.err = ErrInvalidAttribute
		return 0
	}

	return nlenc.Uint32(b)
}

// Uint64 returns the payload of the current attribute as a uint64.
func (ad *AttributeDecoder) Uint64() uint64 {
	if ad.err != nil {
		return 0
	}

	b := ad.attr().Data
	if len(b) != 8 {
		ad.err = ErrInvalidAttribute
		return 0
	}

	return nlenc.Uint64(b)
}

// Do invokes fn with the payload of the current attribute.  Any error
// returned by fn is deferred until Err is called.  Do is intended for
// decoding nested attributes and other structured payloads.
func (ad *AttributeDecoder) Do(fn func(b []byte) error) {
	if ad.err != nil {
		return
	}

	if err := fn(ad.attr().Data); err != nil {
		ad.err = err
	}
}

// An AttributeEncoder packs netlink attributes one at a time, mirroring
// AttributeDecoder.  Any errors are deferred until Encode is called, so
// checks do not need to occur after every field.
type AttributeEncoder struct {
	attrs []Attribute
	err   error
}

// NewAttributeEncoder creates an empty AttributeEncoder.
func NewAttributeEncoder() *AttributeEncoder {
	return &AttributeEncoder{}
}

// Uint8 encodes uint8 data into an Attribute specified by typ.
func (ae *AttributeEncoder) Uint8(typ uint16, v uint8) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: []byte{v},
	})
}

// Uint16 encodes uint16 data into an Attribute specified by typ.
func (ae *AttributeEncoder) Uint16(typ uint16, v uint16) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: nlenc.Uint16Bytes(v),
	})
}

// Uint32 encodes uint32 data into an Attribute specified by typ.
func (ae *AttributeEncoder) Uint32(typ uint16, v uint32) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: nlenc.Uint32Bytes(v),
	})
}

// Uint64 encodes uint64 data into an Attribute specified by typ.
func (ae *AttributeEncoder) Uint64(typ uint16, v uint64) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: nlenc.Uint64Bytes(v),
	})
}

// Flag encodes a zero-length flag attribute specified by typ.
func (ae *AttributeEncoder) Flag(typ uint16) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
	})
}

// String encodes string s, with a trailing null terminator, into an
// Attribute specified by typ.
func (ae *AttributeEncoder) String(typ uint16, s string) {
	if ae.err != nil {
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: nlenc.Bytes(s),
	})
}

// Bytes encodes a raw byte slice into an Attribute specified by typ.
func (ae *AttributeEncoder) Bytes(typ uint16, b []byte) {
	if ae.err != nil {
		return
	}

	d := make([]byte, len(b))
	copy(d, b)

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: d,
	})
}

// Do encodes the bytes produced by fn into an Attribute specified by typ.
// Any error returned by fn is deferred until Encode is called.
func (ae *AttributeEncoder) Do(typ uint16, fn func() ([]byte, error)) {
	if ae.err != nil {
		return
	}

	b, err := fn()
	if err != nil {
		ae.err = err
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ,
		Data: b,
	})
}

// Nested encodes the attributes packed by fn into the payload of a single
// Attribute specified by typ, with the nested flag bit set on its type.
func (ae *AttributeEncoder) Nested(typ uint16, fn func(ae *AttributeEncoder) error) {
	if ae.err != nil {
		return
	}

	nae := NewAttributeEncoder()
	if err := fn(nae); err != nil {
		ae.err = err
		return
	}

	b, err := nae.Encode()
	if err != nil {
		ae.err = err
		return
	}

	ae.attrs = append(ae.attrs, Attribute{
		Type: typ | Nested,
		Data: b,
	})
}

// Encode returns the packed binary form of all encoded attributes, or the
// first error encountered while encoding them.
func (ae *AttributeEncoder) Encode() ([]byte, error) {
	if ae.err != nil {
		return nil, ae.err
	}

	return MarshalAttributes(ae.attrs)
}
