//+build !linux

package netlink

import (
	"fmt"
	"runtime"
)

// Dial is not implemented on platforms without netlink sockets.
func Dial(_ int, _ *Config) (*Conn, error) {
	return nil, fmt.Errorf("netlink: not implemented on %s/%s", runtime.GOOS, runtime.GOARCH)
}

// A Config contains options for a Conn.
type Config struct {
	// Groups is a bitmask of multicast groups to join on bind.
	Groups uint32
}
