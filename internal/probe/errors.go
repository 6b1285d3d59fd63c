package probe

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitBindFailure = 1
	ExitSendFailure = 2
	ExitFailure     = 3
)

// ErrReceiveTimeout is wrapped by receive errors caused by an expired read
// deadline. It is expected while polling and never fatal.
var ErrReceiveTimeout = errors.New("receive timed out")

// ErrPortShared is wrapped by the bind cause reported when the requested
// port was already bound and is now shared through SO_REUSEPORT. The kernel
// may deliver replies to either socket.
var ErrPortShared = errors.New("requested port is shared with another socket")

// BindError reports that the local UDP endpoint could not be bound.
type BindError struct {
	Address string
	// Fallback is set when the ephemeral port fallback failed too.
	Fallback bool
	Err      error
}

func (e *BindError) Error() string {
	if e.Fallback {
		return fmt.Sprintf("failed to bind ephemeral fallback port on %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("failed to bind local address %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// SendError reports that a heartbeat could not be delivered.
type SendError struct {
	Server  string
	Attempt int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to deliver heartbeat to %s (attempt %d): %v", e.Server, e.Attempt, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ExitCode maps the error returned by a probe run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var bindErr *BindError
	if errors.As(err, &bindErr) {
		return ExitBindFailure
	}
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return ExitSendFailure
	}
	return ExitFailure
}
