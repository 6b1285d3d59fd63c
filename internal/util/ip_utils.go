package util

import (
	"net"
)

// IsIPv4Address checks if the given IP address is an IPv4 address.
func IsIPv4Address(addr string) bool {
	ip := net.ParseIP(addr)
	return ip.To4() != nil
}

// IsIPv6Address checks if the given IP address is an IPv6 address.
func IsIPv6Address(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.To4() == nil
}
