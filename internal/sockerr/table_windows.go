//go:build windows

package sockerr

import "syscall"

// Winsock error codes.
const (
	wsaEACCES        syscall.Errno = 10013
	wsaEMSGSIZE      syscall.Errno = 10040
	wsaEADDRINUSE    syscall.Errno = 10048
	wsaEADDRNOTAVAIL syscall.Errno = 10049
	wsaENETUNREACH   syscall.Errno = 10051
	wsaECONNRESET    syscall.Errno = 10054
	wsaEHOSTUNREACH  syscall.Errno = 10065
)

func defaultTable() map[syscall.Errno]Reason {
	return map[syscall.Errno]Reason{
		// Windows reports ICMP Port Unreachable on a UDP socket as a reset
		// on the next receive.
		wsaECONNRESET:    ReasonPortUnreachable,
		wsaENETUNREACH:   ReasonNetworkUnreachable,
		wsaEHOSTUNREACH:  ReasonHostUnreachable,
		wsaEADDRINUSE:    ReasonAddressInUse,
		wsaEADDRNOTAVAIL: ReasonAddressNotAvailable,
		wsaEACCES:        ReasonPermissionDenied,
		wsaEMSGSIZE:      ReasonMessageTooLarge,
	}
}
