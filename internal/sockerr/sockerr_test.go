package sockerr

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyUnknown(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(Classify(nil))

	plain := errors.New("boom")
	assert.Same(plain, Classify(plain))

	unknown := &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("recvfrom", syscall.Errno(54321))}
	assert.Equal(error(unknown), Classify(unknown))
	assert.Empty(Explain(unknown))
}

func TestRegister(t *testing.T) {
	require := require.New(t)

	const code = syscall.Errno(64999)
	_, found := Lookup(code)
	require.False(found)

	Register(code, ReasonHostUnreachable)
	defer func() {
		tableMu.Lock()
		delete(table, code)
		tableMu.Unlock()
	}()

	err := fmt.Errorf("waiting for reply: %w", &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("recvfrom", code)})
	classified := Classify(err)

	var pse *PlatformSocketError
	require.True(errors.As(classified, &pse))
	require.Equal(code, pse.Code)
	require.Equal(ReasonHostUnreachable, pse.Reason)
	require.NotEmpty(pse.Remediation())
	require.True(errors.Is(classified, code))

	// classifying twice keeps the first classification
	require.Same(classified, Classify(classified))
}
