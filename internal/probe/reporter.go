package probe

import (
	"net"
	"net/netip"
	"time"

	"github.com/nexodus-io/hbprobe/internal/heartbeat"
)

// Stats summarizes a probe run.
type Stats struct {
	Sent         int
	Received     int
	DecodeErrors int
	SocketErrors int
	Interrupted  bool
	Duration     time.Duration
}

// Reporter receives every user visible event of a probe run.
type Reporter interface {
	// Bound is called once the socket is bound. fallbackCause is the
	// original bind error when the ephemeral port fallback was used, or
	// wraps ErrPortShared when the requested port is shared.
	Bound(local net.Addr, fallbackCause error)
	Reflexive(server string, addr netip.AddrPort)
	Sent(attempt int, to net.Addr, msg heartbeat.Message, size int)
	AckWaiting(attempt int, timeout time.Duration)
	AckTimeout(attempt int, timeout time.Duration)
	NoReply(attempts int)
	// Listening is called when the listen loop starts, d is 0 when the loop
	// only ends on interrupt.
	Listening(local net.Addr, d time.Duration)
	Packet(state State, pkt heartbeat.Inbound, decoded heartbeat.Decoded)
	Problem(state State, err error)
	Closed(stats Stats)
}
