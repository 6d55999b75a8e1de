package genetlink

import (
	"errors"

	"github.com/wgkit/wgnetlink/netlink"
	"github.com/wgkit/wgnetlink/netlink/nlenc"
)

// errInvalidFamily is returned when a controller reply does not carry the
// mandatory family ID and name attributes.
var errInvalidFamily = errors.New("invalid generic netlink family")

// Constants from the kernel's linux/genetlink.h, used to speak to the
// generic netlink controller.  These never change: the controller is the
// one family with a fixed ID.
const (
	ctrlID      = 0x10
	ctrlVersion = 1

	ctrlCmdGetFamily = 3

	ctrlAttrFamilyID    = 1
	ctrlAttrFamilyName  = 2
	ctrlAttrVersion     = 3
	ctrlAttrMcastGroups = 7

	ctrlAttrMGName = 1
	ctrlAttrMGID   = 2
)

// A Family is a generic netlink family, registered dynamically with the
// kernel and addressed by the ID resolved from its name.
type Family struct {
	ID      uint16
	Version uint8
	Name    string
	Groups  []MulticastGroup
}

// A MulticastGroup is a generic netlink multicast group, which can be
// joined for notifications from a Family.
type MulticastGroup struct {
	ID   uint32
	Name string
}

// buildFamilyRequest creates the controller request which resolves the
// family registered under name.
func buildFamilyRequest(name string) (Message, error) {
	b, err := netlink.MarshalAttributes([]netlink.Attribute{{
		Type: ctrlAttrFamilyName,
		Data: nlenc.Bytes(name),
	}})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Header: Header{
			Command: ctrlCmdGetFamily,
			Version: ctrlVersion,
		},
		Data: b,
	}, nil
}

// parseFamilies parses zero or more Families from controller reply
// messages.
func parseFamilies(msgs []Message) ([]Family, error) {
	families := make([]Family, 0, len(msgs))
	for _, m := range msgs {
		f, err := parseFamily(m)
		if err != nil {
			return nil, err
		}

		families = append(families, f)
	}

	return families, nil
}

// parseFamily parses a single Family from a controller reply message.
func parseFamily(m Message) (Family, error) {
	ad, err := netlink.NewAttributeDecoder(m.Data)
	if err != nil {
		return Family{}, err
	}

	var (
		f     Family
		hasID bool
	)

	for ad.Next() {
		switch ad.Type() {
		case ctrlAttrFamilyID:
			f.ID = ad.Uint16()
			hasID = true
		case ctrlAttrFamilyName:
			f.Name = ad.String()
		case ctrlAttrVersion:
			// The controller sends the version as a uint32, but generic
			// netlink versions fit in the header's uint8.
			f.Version = uint8(ad.Uint32())
		case ctrlAttrMcastGroups:
			ad.Do(func(b []byte) error {
				groups, err := parseMulticastGroups(b)
				if err != nil {
					return err
				}

				f.Groups = groups
				return nil
			})
		}
	}

	if err := ad.Err(); err != nil {
		return Family{}, err
	}

	if !hasID || f.Name == "" {
		return Family{}, errInvalidFamily
	}

	return f, nil
}

// parseMulticastGroups parses a slice of MulticastGroups from a controller
// attribute payload.  The controller does not set the nested flag on the
// array entries, so each entry's payload is decoded as attributes directly.
func parseMulticastGroups(b []byte) ([]MulticastGroup, error) {
	attrs, err := netlink.UnmarshalAttributes(b)
	if err != nil {
		return nil, err
	}

	groups := make([]MulticastGroup, 0, len(attrs))
	for _, a := range attrs {
		ad, err := netlink.NewAttributeDecoder(a.Data)
		if err != nil {
			return nil, err
		}

		var g MulticastGroup
		for ad.Next() {
			switch ad.Type() {
			case ctrlAttrMGName:
				g.Name = ad.String()
			case ctrlAttrMGID:
				g.ID = ad.Uint32()
			}
		}

		if err := ad.Err(); err != nil {
			return nil, err
		}

		groups = append(groups, g)
	}

	return groups, nil
}
