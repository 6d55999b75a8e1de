//+build linux

package wgnetlink

import (
	"github.com/wgkit/wgnetlink/internal/wglinux"
)

// newClients configures wgClients for Linux systems.
func newClients() ([]wgClient, error) {
	// Linux has an in-kernel WireGuard implementation.
	kc, ok, err := wglinux.New()
	if err != nil {
		return nil, err
	}
	if !ok {
		// The generic netlink family is unavailable, so no WireGuard
		// devices can be controlled on this system.
		return nil, nil
	}

	return []wgClient{kc}, nil
}
