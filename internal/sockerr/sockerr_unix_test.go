//go:build unix

package sockerr

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPortUnreachable(t *testing.T) {
	assert := assert.New(t)

	err := &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("recvfrom", syscall.ECONNREFUSED)}
	classified := Classify(err)

	var pse *PlatformSocketError
	assert.True(errors.As(classified, &pse))
	assert.Equal(ReasonPortUnreachable, pse.Reason)
	assert.True(strings.Contains(Explain(classified), "--server-port"))
	assert.True(errors.Is(classified, syscall.ECONNREFUSED))
}

func TestClassifyBindErrors(t *testing.T) {
	tests := []struct {
		errno  syscall.Errno
		reason Reason
	}{
		{syscall.EADDRINUSE, ReasonAddressInUse},
		{syscall.EACCES, ReasonPermissionDenied},
		{syscall.EADDRNOTAVAIL, ReasonAddressNotAvailable},
		{syscall.EMSGSIZE, ReasonMessageTooLarge},
		{syscall.ENETUNREACH, ReasonNetworkUnreachable},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			var pse *PlatformSocketError
			err := Classify(&net.OpError{Op: "listen", Net: "udp", Err: os.NewSyscallError("bind", tt.errno)})
			if assert.True(t, errors.As(err, &pse)) {
				assert.Equal(t, tt.reason, pse.Reason)
			}
		})
	}
}
