//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package mcast

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
