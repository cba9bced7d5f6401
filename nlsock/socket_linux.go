// Package nlsock owns the raw AF_NETLINK file descriptor: bind, send,
// receive, local-port lookup.
package nlsock

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/m-lab/rtnl/rtnlerr"
)

// RecvBufSize is the fixed receive buffer size: 64 KiB, large enough for
// every rtnetlink reply this engine requests. Dumps that exceed it are
// not grown dynamically; the cap is documented rather than worked around.
const RecvBufSize = 64 * 1024

// Socket owns one netlink file descriptor for one protocol family. It is
// not safe for concurrent use; callers needing concurrency open one
// socket per goroutine.
type Socket struct {
	fd       int
	protocol int
	pid      uint32
}

// Open creates and binds a netlink socket for protocol (unix.NETLINK_ROUTE
// in scope). port 0 lets the kernel assign the local port; groups 0
// subscribes to no multicast groups.
func Open(protocol int, port uint32, groups uint32) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, protocol)
	if err != nil {
		return nil, &rtnlerr.SocketError{Op: "socket", Errno: err.(syscall.Errno)}
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: port, Groups: groups}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, &rtnlerr.SocketError{Op: "bind", Errno: err.(syscall.Errno)}
	}
	s := &Socket{fd: fd, protocol: protocol}
	local, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, &rtnlerr.SocketError{Op: "getsockname", Errno: err.(syscall.Errno)}
	}
	nl, ok := local.(*unix.SockaddrNetlink)
	if !ok {
		unix.Close(fd)
		return nil, &rtnlerr.SocketError{Op: "getsockname", Errno: syscall.EINVAL}
	}
	s.pid = nl.Pid
	return s, nil
}

// LocalPort returns the port (pid) the kernel assigned at bind.
func (s *Socket) LocalPort() uint32 { return s.pid }

// Send writes buf to the kernel peer (port 0, no multicast groups).
func (s *Socket) Send(buf []byte) error {
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0, Groups: 0}
	if err := unix.Sendto(s.fd, buf, 0, sa); err != nil {
		return &rtnlerr.SocketError{Op: "sendto", Errno: err.(syscall.Errno)}
	}
	return nil
}

// Recv reads one syscall's worth of data into a fixed RecvBufSize buffer
// and returns the bytes read and the peer's port. EINTR is looped
// silently.
func (s *Socket) Recv() ([]byte, uint32, error) {
	buf := make([]byte, RecvBufSize)
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, 0, &rtnlerr.SocketError{Op: "recvfrom", Errno: err.(syscall.Errno)}
		}
		var peer uint32
		if nl, ok := from.(*unix.SockaddrNetlink); ok {
			peer = nl.Pid
		}
		return buf[:n], peer, nil
	}
}

// Close releases the file descriptor. Callers invoke this via defer
// immediately after Open succeeds.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}
