package stun

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/pion/stun"
)

// Discover sends a binding request to server from conn and returns the
// reflexive address the server saw. Datagrams that are not STUN messages
// arriving meanwhile are handed to other, which may be nil.
func Discover(conn net.PacketConn, server string, timeout time.Duration, other func(data []byte, from net.Addr)) (netip.AddrPort, error) {
	network := "udp"
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok && local.IP.To4() != nil {
		network = "udp4"
	}
	serverAddr, err := net.ResolveUDPAddr(network, server)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to resolve stun server %s: %w", server, err)
	}

	request := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.WriteTo(request.Raw, serverAddr); err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to send stun request to %s: %w", server, err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return netip.AddrPort{}, err
	}

	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return netip.AddrPort{}, fmt.Errorf("no stun response from %s: %w", server, err)
		}
		data := append([]byte(nil), buf[:n]...)
		if !stun.IsMessage(data) {
			if other != nil {
				other(data, from)
			}
			continue
		}

		response := &stun.Message{Raw: data}
		if err := response.Decode(); err != nil {
			continue
		}
		if response.TransactionID != request.TransactionID {
			continue
		}
		return mappedAddress(response)
	}
}

func mappedAddress(response *stun.Message) (netip.AddrPort, error) {
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(response); err == nil {
		return parseBinding(xorAddr.String())
	}
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(response); err != nil {
		return netip.AddrPort{}, fmt.Errorf("stun response carries no mapped address: %w", err)
	}
	return parseBinding(mapped.String())
}

func parseBinding(s string) (netip.AddrPort, error) {
	binding, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to parse a valid address:port binding from the stun response: %w", err)
	}
	return netip.AddrPortFrom(binding.Addr().Unmap(), binding.Port()), nil
}
