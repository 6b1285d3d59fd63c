package probe

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/nexodus-io/hbprobe/internal/heartbeat"
)

type packetEvent struct {
	state   State
	pkt     heartbeat.Inbound
	decoded heartbeat.Decoded
}

// recorder is a Reporter that keeps every event for assertions.
type recorder struct {
	events    []string
	local     net.Addr
	fallback  error
	reflexive netip.AddrPort
	sent      []heartbeat.Message
	packets   []packetEvent
	problems  []error
	closed    *Stats
}

var _ Reporter = (*recorder)(nil)

func (r *recorder) Bound(local net.Addr, fallbackCause error) {
	r.events = append(r.events, "bound")
	r.local = local
	r.fallback = fallbackCause
}

func (r *recorder) Reflexive(server string, addr netip.AddrPort) {
	r.events = append(r.events, "reflexive")
	r.reflexive = addr
}

func (r *recorder) Sent(attempt int, to net.Addr, msg heartbeat.Message, size int) {
	r.events = append(r.events, fmt.Sprintf("sent %d", attempt))
	r.sent = append(r.sent, msg)
}

func (r *recorder) AckWaiting(attempt int, timeout time.Duration) {
	r.events = append(r.events, fmt.Sprintf("waiting %d", attempt))
}

func (r *recorder) AckTimeout(attempt int, timeout time.Duration) {
	r.events = append(r.events, fmt.Sprintf("timeout %d", attempt))
}

func (r *recorder) NoReply(attempts int) {
	r.events = append(r.events, fmt.Sprintf("no reply %d", attempts))
}

func (r *recorder) Listening(local net.Addr, d time.Duration) {
	r.events = append(r.events, "listening")
}

func (r *recorder) Packet(state State, pkt heartbeat.Inbound, decoded heartbeat.Decoded) {
	r.events = append(r.events, "packet "+state.String())
	r.packets = append(r.packets, packetEvent{state: state, pkt: pkt, decoded: decoded})
}

func (r *recorder) Problem(state State, err error) {
	r.events = append(r.events, "problem "+state.String())
	r.problems = append(r.problems, err)
}

func (r *recorder) Closed(stats Stats) {
	r.events = append(r.events, "closed")
	r.closed = &stats
}
