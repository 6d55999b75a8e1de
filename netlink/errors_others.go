//+build !linux

package netlink

import "fmt"

// newError converts an error number from a netlink error message into an
// opaque error on platforms without netlink errno support.
func newError(errno int) error {
	return fmt.Errorf("netlink: errno: %d", errno)
}
