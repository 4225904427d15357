//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package mcast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr lets the old and the new instance of a service bind the same
// port on one host.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
