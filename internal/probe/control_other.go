//go:build !linux

package probe

import "syscall"

func enableRecvErr(string, string, syscall.RawConn) error {
	return nil
}
