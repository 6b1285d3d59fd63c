//go:build unix

package sockerr

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func defaultTable() map[syscall.Errno]Reason {
	return map[syscall.Errno]Reason{
		unix.ECONNREFUSED:  ReasonPortUnreachable,
		unix.ENETUNREACH:   ReasonNetworkUnreachable,
		unix.EHOSTUNREACH:  ReasonHostUnreachable,
		unix.EHOSTDOWN:     ReasonHostUnreachable,
		unix.EADDRINUSE:    ReasonAddressInUse,
		unix.EADDRNOTAVAIL: ReasonAddressNotAvailable,
		unix.EACCES:        ReasonPermissionDenied,
		unix.EPERM:         ReasonPermissionDenied,
		unix.EMSGSIZE:      ReasonMessageTooLarge,
	}
}
