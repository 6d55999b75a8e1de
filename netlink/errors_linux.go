//+build linux

package netlink

import "golang.org/x/sys/unix"

// newError converts an error number from a netlink error message into the
// appropriate system error.
func newError(errno int) error {
	return unix.Errno(errno)
}
