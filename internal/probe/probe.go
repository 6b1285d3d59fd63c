package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nexodus-io/hbprobe/internal/heartbeat"
	"github.com/nexodus-io/hbprobe/internal/sockerr"
	"github.com/nexodus-io/hbprobe/internal/stun"
	"github.com/nexodus-io/hbprobe/internal/util"
	"go.uber.org/zap"
)

// Probe binds one UDP socket, sends heartbeats from it and prints whatever
// arrives on it. A Probe is used from a single goroutine.
type Probe struct {
	cfg      Config
	log      *zap.SugaredLogger
	reporter Reporter

	conn    net.PacketConn
	server  *net.UDPAddr
	userID  string
	state   State
	buf     []byte
	stats   Stats
	started time.Time
}

func New(cfg Config, logger *zap.SugaredLogger, reporter Reporter) (*Probe, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Probe{
		cfg:      cfg,
		log:      logger,
		reporter: reporter,
		state:    StateUnbound,
		buf:      make([]byte, cfg.BufferSize),
	}, nil
}

// State returns the current lifecycle state.
func (p *Probe) State() State {
	return p.state
}

// LocalAddr returns the bound address, nil before Bind.
func (p *Probe) LocalAddr() net.Addr {
	if p.conn == nil {
		return nil
	}
	return p.conn.LocalAddr()
}

// Stats returns the counters collected so far.
func (p *Probe) Stats() Stats {
	return p.stats
}

func (p *Probe) advance(to State) error {
	if err := transition(p.state, to); err != nil {
		return err
	}
	p.log.Debugw("Probe state change", "from", p.state, "to", to)
	p.state = to
	return nil
}

// Run performs the whole probe: bind, optional reflexive address discovery,
// heartbeat with optional ACK wait, and the listen loop. The socket is
// released on every return path.
func (p *Probe) Run(ctx context.Context) error {
	if err := p.Bind(ctx); err != nil {
		return err
	}
	defer p.closeQuietly()

	if p.cfg.StunServer != "" {
		p.DiscoverReflexive(ctx)
	}
	if err := p.Heartbeat(ctx); err != nil {
		return err
	}
	if p.stats.Interrupted {
		return nil
	}
	return p.Listen(ctx)
}

// RunListener binds and listens without sending a heartbeat.
func (p *Probe) RunListener(ctx context.Context) error {
	if err := p.Bind(ctx); err != nil {
		return err
	}
	defer p.closeQuietly()
	return p.Listen(ctx)
}

// Bind acquires the UDP endpoint.
func (p *Probe) Bind(ctx context.Context) error {
	if p.state != StateUnbound {
		return fmt.Errorf("probe already bound (state %s)", p.state)
	}
	conn, fallbackCause, err := p.bindSocket(ctx)
	if err != nil {
		return err
	}
	p.attach(conn)

	if p.cfg.TTL > 0 {
		if err := setTTL(conn, p.cfg.TTL); err != nil {
			p.reporter.Problem(p.state, err)
		}
	}
	p.reporter.Bound(conn.LocalAddr(), fallbackCause)
	return nil
}

// attach adopts an already bound socket.
func (p *Probe) attach(conn net.PacketConn) {
	p.conn = conn
	p.started = time.Now()
	p.userID = heartbeat.ExpandUserID(p.cfg.UserID, util.PortOf(conn.LocalAddr()), uuid.NewString())
	p.state = StateBound
	p.log.Debugw("Probe bound", "local", conn.LocalAddr().String(), "userId", p.userID)
}

// DiscoverReflexive asks a STUN server which public endpoint the bound
// socket maps to. Failures are reported and never fatal.
func (p *Probe) DiscoverReflexive(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	state := p.state
	addr, err := stun.Discover(p.conn, p.cfg.StunServer, p.cfg.StunTimeout, func(data []byte, from net.Addr) {
		p.deliver(state, heartbeat.Inbound{From: from, Data: data, ReceivedAt: time.Now()})
	})
	if err != nil {
		p.reporter.Problem(state, fmt.Errorf("reflexive address discovery via %s failed: %w", p.cfg.StunServer, sockerr.Classify(err)))
		return
	}
	p.reporter.Reflexive(p.cfg.StunServer, addr)
}

// Heartbeat sends the heartbeat and, when configured, waits for an
// immediate reply. A new attempt is only made after a reply timeout; a send
// error or a platform socket error while waiting ends the probe with a
// *SendError.
func (p *Probe) Heartbeat(ctx context.Context) error {
	serverAddr := net.JoinHostPort(p.cfg.ServerHost, strconv.Itoa(p.cfg.ServerPort))
	server, err := net.ResolveUDPAddr(util.UDPNetwork(p.cfg.BindAddress), serverAddr)
	if err != nil {
		return &SendError{Server: serverAddr, Attempt: 1, Err: err}
	}
	p.server = server

	attempts := p.cfg.Attempts
	if !p.cfg.WaitForAck {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := p.send(attempt); err != nil {
			return err
		}
		if !p.cfg.WaitForAck {
			return nil
		}
		if p.state != StateAckWait {
			if err := p.advance(StateAckWait); err != nil {
				return err
			}
		}

		p.reporter.AckWaiting(attempt, p.cfg.AckTimeout)
		pkt, err := p.receiveUntil(ctx, time.Now().Add(p.cfg.AckTimeout))
		var platformErr *sockerr.PlatformSocketError
		switch {
		case err == nil:
			p.deliver(StateAckWait, pkt)
			return nil
		case errors.Is(err, ErrReceiveTimeout):
			p.reporter.AckTimeout(attempt, p.cfg.AckTimeout)
		case isCancellation(err):
			p.stats.Interrupted = true
			return nil
		case errors.As(err, &platformErr):
			p.stats.SocketErrors++
			return &SendError{Server: server.String(), Attempt: attempt, Err: err}
		default:
			p.stats.SocketErrors++
			p.reporter.Problem(StateAckWait, fmt.Errorf("socket error while waiting for reply: %w", err))
			return nil
		}
	}
	p.reporter.NoReply(attempts)
	return nil
}

func (p *Probe) send(attempt int) error {
	seq := int64(0)
	if p.cfg.Seq > 0 {
		seq = p.cfg.Seq + int64(attempt-1)
	}
	msg := heartbeat.NewMessage(p.userID, seq, time.Now())
	payload, err := msg.Encode(p.cfg.Checksum)
	if err != nil {
		return &SendError{Server: p.server.String(), Attempt: attempt, Err: err}
	}

	n, err := p.conn.WriteTo(payload, p.server)
	if err != nil {
		p.stats.SocketErrors++
		return &SendError{Server: p.server.String(), Attempt: attempt, Err: sockerr.Classify(err)}
	}
	if p.state < StateHeartbeatSent {
		if err := p.advance(StateHeartbeatSent); err != nil {
			return err
		}
	}
	p.stats.Sent++
	p.reporter.Sent(attempt, p.server, msg, n)
	return nil
}

// Listen receives datagrams until the listen budget is spent, the context
// is cancelled or the socket is closed. Undecodable datagrams and platform
// socket errors are reported and the loop keeps going, except a port
// unreachable error after a heartbeat was sent, which ends the run with a
// *SendError.
func (p *Probe) Listen(ctx context.Context) error {
	if err := p.advance(StateListening); err != nil {
		return err
	}
	var end time.Time
	if p.cfg.ListenDuration > 0 {
		end = time.Now().Add(p.cfg.ListenDuration)
	}
	p.reporter.Listening(p.conn.LocalAddr(), p.cfg.ListenDuration)

	for {
		pkt, err := p.receiveUntil(ctx, end)
		var platformErr *sockerr.PlatformSocketError
		switch {
		case err == nil:
			p.deliver(StateListening, pkt)
		case errors.Is(err, ErrReceiveTimeout):
			p.log.Debugw("Listen duration elapsed", "duration", p.cfg.ListenDuration)
			return nil
		case isCancellation(err):
			p.stats.Interrupted = true
			return nil
		case errors.Is(err, net.ErrClosed):
			return nil
		case errors.As(err, &platformErr):
			p.stats.SocketErrors++
			if p.server != nil && platformErr.Reason == sockerr.ReasonPortUnreachable {
				// The heartbeat bounced off a closed server port.
				return &SendError{Server: p.server.String(), Attempt: p.stats.Sent, Err: err}
			}
			p.reporter.Problem(StateListening, err)
		default:
			p.stats.SocketErrors++
			return fmt.Errorf("receive failed: %w", err)
		}
	}
}

// Close releases the socket. It is safe to call more than once.
func (p *Probe) Close() error {
	if p.state == StateClosed {
		return nil
	}
	p.state = StateClosed
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	if !p.started.IsZero() {
		p.stats.Duration = time.Since(p.started)
	}
	p.reporter.Closed(p.stats)
	return err
}

func (p *Probe) closeQuietly() {
	if err := p.Close(); err != nil {
		p.log.Debugw("Failed to close socket", "error", err)
	}
}

// receiveUntil polls the socket in PollInterval slices until a datagram
// arrives, end passes (ErrReceiveTimeout) or ctx is cancelled. A zero end
// never expires.
func (p *Probe) receiveUntil(ctx context.Context, end time.Time) (heartbeat.Inbound, error) {
	for {
		if err := ctx.Err(); err != nil {
			return heartbeat.Inbound{}, err
		}
		now := time.Now()
		deadline := now.Add(p.cfg.PollInterval)
		if !end.IsZero() {
			if !now.Before(end) {
				return heartbeat.Inbound{}, fmt.Errorf("no datagram before %s: %w", end.Format(time.RFC3339Nano), ErrReceiveTimeout)
			}
			if end.Before(deadline) {
				deadline = end
			}
		}

		pkt, err := p.receive(deadline)
		if errors.Is(err, ErrReceiveTimeout) {
			p.log.Debugw("No datagram within poll interval", "interval", p.cfg.PollInterval)
			continue
		}
		return pkt, err
	}
}

func (p *Probe) receive(deadline time.Time) (heartbeat.Inbound, error) {
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return heartbeat.Inbound{}, err
	}
	n, from, err := p.conn.ReadFrom(p.buf)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return heartbeat.Inbound{}, fmt.Errorf("%w: %v", ErrReceiveTimeout, err)
		}
		return heartbeat.Inbound{}, sockerr.Classify(err)
	}
	data := make([]byte, n)
	copy(data, p.buf[:n])
	return heartbeat.Inbound{From: from, Data: data, ReceivedAt: time.Now()}, nil
}

func (p *Probe) deliver(state State, pkt heartbeat.Inbound) {
	decoded := heartbeat.Decode(pkt.Data, p.cfg.StripChecksum)
	p.stats.Received++
	if decoded.Err != nil {
		p.stats.DecodeErrors++
		p.log.Debugw("Datagram is not JSON", "from", pkt.From, "error", decoded.Err)
	}
	p.reporter.Packet(state, pkt, decoded)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
