//+build linux

package netlink

import (
	"os"

	"golang.org/x/sys/unix"
)

// A Config contains options for a Conn.
type Config struct {
	// Groups is a bitmask of multicast groups to join on bind.
	Groups uint32
}

// Dial dials a connection to netlink using the specified protocol, such as
// unix.NETLINK_GENERIC or unix.NETLINK_ROUTE.  config specifies optional
// configuration for the connection; a nil config is equivalent to the zero
// value.
func Dial(proto int, config *Config) (*Conn, error) {
	if config == nil {
		config = &Config{}
	}

	sock, pid, err := newSysSocket(proto, config.Groups)
	if err != nil {
		return nil, err
	}

	return NewConn(sock, pid), nil
}

var _ Socket = &sysSocket{}

// A sysSocket is a Socket backed by a raw AF_NETLINK file descriptor.
type sysSocket struct {
	fd int
}

// newSysSocket opens and binds a netlink socket, returning the socket and
// the port ID the kernel assigned to it.
func newSysSocket(proto int, groups uint32) (*sysSocket, uint32, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, 0, os.NewSyscallError("socket", err)
	}

	s := &sysSocket{fd: fd}

	if err := unix.Bind(fd, &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: groups,
	}); err != nil {
		_ = s.Close()
		return nil, 0, os.NewSyscallError("bind", err)
	}

	// The kernel chooses the port ID on bind; fetch it so replies can be
	// validated against it.
	sa, err := unix.Getsockname(fd)
	if err != nil {
		_ = s.Close()
		return nil, 0, os.NewSyscallError("getsockname", err)
	}

	pid := sa.(*unix.SockaddrNetlink).Pid
	return s, pid, nil
}

// Close implements Socket.
func (s *sysSocket) Close() error {
	return os.NewSyscallError("close", unix.Close(s.fd))
}

// Send implements Socket.
func (s *sysSocket) Send(m Message) error {
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}

	// Port ID zero addresses the kernel.
	err = unix.Sendto(s.fd, b, 0, &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
	})
	return os.NewSyscallError("sendto", err)
}

// Receive implements Socket.
func (s *sysSocket) Receive() ([]Message, error) {
	b := make([]byte, os.Getpagesize())
	for {
		// Peek at the buffer to see how many bytes are available, growing
		// the buffer as needed to fit an entire datagram.
		n, _, err := unix.Recvfrom(s.fd, b, unix.MSG_PEEK)
		if err != nil {
			return nil, os.NewSyscallError("recvfrom", err)
		}

		if n < len(b) {
			break
		}

		b = make([]byte, len(b)*2)
	}

	n, _, err := unix.Recvfrom(s.fd, b, 0)
	if err != nil {
		return nil, os.NewSyscallError("recvfrom", err)
	}

	return parseRawMessages(b[:n])
}
