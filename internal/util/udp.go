package util

import (
	"net"
)

// UDPNetwork picks the network name for binding host: udp4 or udp6 for
// literal addresses, udp for names, the empty host and the unspecified
// IPv6 address, which binds a dual stack socket.
func UDPNetwork(host string) string {
	switch {
	case IsIPv6Unspecified(host):
		return "udp"
	case IsIPv4Address(host):
		return "udp4"
	case IsIPv6Address(host):
		return "udp6"
	default:
		return "udp"
	}
}

// PortOf returns the port of a UDP or TCP address, 0 when it has none.
func PortOf(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.Port
	case *net.TCPAddr:
		return a.Port
	}
	return 0
}

// IsIPv6Unspecified reports whether host is the IPv6 any address.
func IsIPv6Unspecified(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil && ip.IsUnspecified()
}
