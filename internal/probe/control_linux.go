//go:build linux

package probe

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// enableRecvErr turns on IP_RECVERR so an ICMP port unreachable caused by
// a heartbeat is reported by the next receive on this unconnected socket,
// the way Windows reports it. Dual stack udp6 sockets also carry v4 mapped
// traffic and need both options.
func enableRecvErr(network, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		switch network {
		case "udp4":
			sockErr = setRecvErr(int(fd), unix.IPPROTO_IP, unix.IP_RECVERR, "IP_RECVERR")
		case "udp6":
			if sockErr = setRecvErr(int(fd), unix.IPPROTO_IPV6, unix.IPV6_RECVERR, "IPV6_RECVERR"); sockErr != nil {
				return
			}
			v6only, err := unix.GetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY)
			if err != nil {
				sockErr = fmt.Errorf("failed to read IPV6_V6ONLY: %w", err)
				return
			}
			if v6only == 0 {
				sockErr = setRecvErr(int(fd), unix.IPPROTO_IP, unix.IP_RECVERR, "IP_RECVERR")
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

func setRecvErr(fd, level, opt int, name string) error {
	if err := unix.SetsockoptInt(fd, level, opt, 1); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}
