// Package responder is a minimal UDP peer that answers every datagram. It
// stands in for the heartbeat backend, which acknowledges each heartbeat
// with a bare "ACK".
package responder

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nexodus-io/hbprobe/internal/stun"
	"github.com/nexodus-io/hbprobe/internal/util"
	"go.uber.org/zap"
)

const (
	// DefaultReply is what the heartbeat backend answers with.
	DefaultReply = "ACK"
	// EchoReply makes the responder send every datagram back unchanged.
	EchoReply = "{echo}"
)

type Responder struct {
	Port int

	reply    []byte
	echo     bool
	log      *zap.SugaredLogger
	conn     net.PacketConn
	received atomic.Int64
	wg       sync.WaitGroup
}

// ListenAndStart binds address and answers datagrams in the background until
// Shutdown. An empty reply sends DefaultReply. STUN binding requests get a
// binding response so the responder doubles as a reflexive address server.
func ListenAndStart(address string, reply string, logger *zap.SugaredLogger) (*Responder, error) {
	conn, err := net.ListenPacket(util.UDPNetwork(hostOf(address)), address)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if reply == "" {
		reply = DefaultReply
	}

	r := &Responder{
		Port:  util.PortOf(conn.LocalAddr()),
		reply: []byte(reply),
		echo:  reply == EchoReply,
		log:   logger,
		conn:  conn,
	}
	r.log.Infow("Responder listening", "address", conn.LocalAddr().String())

	util.GoWithWaitGroup(&r.wg, r.serve)
	return r, nil
}

// Addr returns the bound address.
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Received returns how many datagrams were received so far.
func (r *Responder) Received() int64 {
	return r.received.Load()
}

func (r *Responder) serve() {
	buf := make([]byte, 65536)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			r.log.Debugw("Error receiving UDP packet", "error", err)
			continue
		}
		r.received.Add(1)
		data := buf[:n]
		r.log.Infow("Received datagram", "from", from.String(), "bytes", n)

		response := r.reply
		if r.echo {
			response = bytes.Clone(data)
		}
		if answer, ok, err := stun.Answer(data, from); err != nil {
			r.log.Debugw("Failed to answer stun request", "from", from.String(), "error", err)
		} else if ok {
			response = answer
		}

		if _, err := r.conn.WriteTo(response, from); err != nil {
			r.log.Debugw("Error sending UDP packet", "to", from.String(), "error", err)
		}
	}
}

// Shutdown closes the socket and waits for the serve loop to finish.
func (r *Responder) Shutdown() error {
	err := r.conn.Close()
	r.wg.Wait()
	return err
}

func hostOf(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return ""
	}
	return host
}
