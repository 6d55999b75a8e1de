//+build !linux

package wglinux

import "github.com/wgkit/wgnetlink/internal/wginternal"

// A Client is an unimplemented WireGuard netlink client.
type Client struct {
	wginternal.Client
}

// New always returns an unimplemented Client.
func New() (*Client, bool, error) {
	return &Client{
		Client: wginternal.Unimplemented(
			"wglinux",
			"the WireGuard netlink interface is only available on Linux",
		),
	}, false, nil
}
