// Package sockerr classifies operating system socket errors into a small set
// of platform independent reasons with remediation hints for the user.
package sockerr

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
)

// Reason is the normalized cause of a socket error.
type Reason string

const (
	ReasonPortUnreachable     Reason = "port-unreachable"
	ReasonNetworkUnreachable  Reason = "network-unreachable"
	ReasonHostUnreachable     Reason = "host-unreachable"
	ReasonAddressInUse        Reason = "address-in-use"
	ReasonAddressNotAvailable Reason = "address-not-available"
	ReasonPermissionDenied    Reason = "permission-denied"
	ReasonMessageTooLarge     Reason = "message-too-large"
)

var remediations = map[Reason]string{
	ReasonPortUnreachable: `The remote host answered with ICMP Port Unreachable: nothing is listening on the server UDP port.
Quick checks:
  1) Is the backend running?
  2) Is the backend UDP port the same as --server-port?
  3) Is a firewall blocking UDP?
  4) Did another listener bind the same local port?`,
	ReasonNetworkUnreachable:  "No route to the server network. Check the --server-host value and the local network configuration.",
	ReasonHostUnreachable:     "The server host cannot be reached. Check that it is up and that --server-host is correct.",
	ReasonAddressInUse:        "The local port is already bound by another process. Pick another --local-port, use --ephemeral-fallback, or stop the other listener.",
	ReasonAddressNotAvailable: "The --bind-address is not assigned to any local interface.",
	ReasonPermissionDenied:    "The operation was not permitted. Ports below 1024 need elevated privileges, and a firewall may be rejecting the traffic.",
	ReasonMessageTooLarge:     "The datagram exceeds the maximum UDP payload size for this path.",
}

// PlatformSocketError is an OS specific socket error mapped to a Reason.
type PlatformSocketError struct {
	Code   syscall.Errno
	Reason Reason
	Err    error
}

func (e *PlatformSocketError) Error() string {
	return fmt.Sprintf("%s (os error %d): %v", e.Reason, int(e.Code), e.Err)
}

func (e *PlatformSocketError) Unwrap() error {
	return e.Err
}

// Remediation returns actionable advice for the user, or an empty string.
func (e *PlatformSocketError) Remediation() string {
	return remediations[e.Reason]
}

var (
	tableMu sync.RWMutex
	table   = defaultTable()
)

// Register maps an OS error code to a reason, replacing any previous entry.
func Register(code syscall.Errno, reason Reason) {
	tableMu.Lock()
	defer tableMu.Unlock()
	table[code] = reason
}

// Lookup returns the reason registered for code.
func Lookup(code syscall.Errno) (Reason, bool) {
	tableMu.RLock()
	defer tableMu.RUnlock()
	reason, ok := table[code]
	return reason, ok
}

// Classify wraps err in a *PlatformSocketError when its OS error code is
// known and returns err unchanged otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pse *PlatformSocketError
	if errors.As(err, &pse) {
		return err
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}
	reason, ok := Lookup(errno)
	if !ok {
		return err
	}
	return &PlatformSocketError{Code: errno, Reason: reason, Err: err}
}

// Explain returns the remediation text of the first *PlatformSocketError in
// err's chain.
func Explain(err error) string {
	var pse *PlatformSocketError
	if errors.As(err, &pse) {
		return pse.Remediation()
	}
	return ""
}
