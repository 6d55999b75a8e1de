//+build !linux

package wgnetlink

import (
	"github.com/wgkit/wgnetlink/internal/wglinux"
)

// newClients configures wgClients for systems without WireGuard netlink
// support.
func newClients() ([]wgClient, error) {
	// The unimplemented client produces a descriptive error when used.
	c, _, err := wglinux.New()
	if err != nil {
		return nil, err
	}

	return []wgClient{c}, nil
}
