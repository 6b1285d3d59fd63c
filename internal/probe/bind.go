package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/libp2p/go-reuseport"
	"github.com/nexodus-io/hbprobe/internal/sockerr"
	"github.com/nexodus-io/hbprobe/internal/util"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

type controlFn func(network, address string, c syscall.RawConn) error

func listenConfig(reuse bool) *net.ListenConfig {
	controls := []controlFn{enableRecvErr}
	if reuse {
		controls = append(controls, reuseport.Control)
	}
	return &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			for _, control := range controls {
				if err := control(network, address, c); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// bindSocket binds the requested endpoint. When the port is taken it is
// shared through SO_REUSEPORT if allowed, or replaced by an ephemeral port
// when configured. fallbackCause is non nil whenever the socket did not get
// the requested port to itself.
func (p *Probe) bindSocket(ctx context.Context) (conn net.PacketConn, fallbackCause error, err error) {
	network := util.UDPNetwork(p.cfg.BindAddress)
	address := net.JoinHostPort(p.cfg.BindAddress, strconv.Itoa(p.cfg.LocalPort))
	lc := listenConfig(false)

	conn, err = lc.ListenPacket(ctx, network, address)
	if err == nil {
		return conn, nil, nil
	}
	bindErr := &BindError{Address: address, Err: sockerr.Classify(err)}

	if p.cfg.ReusePort && p.cfg.LocalPort != 0 && isAddressInUse(bindErr) {
		conn, err = listenConfig(true).ListenPacket(ctx, network, address)
		if err == nil {
			p.log.Warnw("Sharing a local port already bound by another socket", "address", address)
			return conn, fmt.Errorf("%w: %w", ErrPortShared, bindErr), nil
		}
		p.log.Debugw("Failed to share local port", "address", address, "error", err)
	}

	if !p.cfg.EphemeralFallback || p.cfg.LocalPort == 0 {
		return nil, nil, bindErr
	}

	p.log.Warnw("Failed to bind local port, falling back to an ephemeral port",
		"address", address, "error", bindErr.Err)
	ephemeral := net.JoinHostPort(p.cfg.BindAddress, "0")
	conn, err = lc.ListenPacket(ctx, network, ephemeral)
	if err != nil {
		return nil, nil, &BindError{Address: ephemeral, Fallback: true, Err: sockerr.Classify(err)}
	}
	return conn, bindErr, nil
}

func isAddressInUse(err error) bool {
	var platformErr *sockerr.PlatformSocketError
	return errors.As(err, &platformErr) && platformErr.Reason == sockerr.ReasonAddressInUse
}

func setTTL(conn net.PacketConn, ttl int) error {
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP.To4() == nil {
		if err := ipv6.NewPacketConn(conn).SetHopLimit(ttl); err != nil {
			return fmt.Errorf("failed to set hop limit %d: %w", ttl, err)
		}
		return nil
	}
	if err := ipv4.NewPacketConn(conn).SetTTL(ttl); err != nil {
		return fmt.Errorf("failed to set ttl %d: %w", ttl, err)
	}
	return nil
}
