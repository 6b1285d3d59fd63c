//go:build !unix && !windows

package sockerr

import "syscall"

func defaultTable() map[syscall.Errno]Reason {
	return map[syscall.Errno]Reason{}
}
