// Package restrictnetwork contains Restrict().
package restrictnetwork

import (
	"net"
)

// Restrict returns the IPv4-only variant of network when address is an
// IPv4 literal. This keeps the playback listener off the IPv6 side of
// dual-stack hosts and lets UDP sources join IPv4 multicast groups.
func Restrict(network string, address string) (string, string) {
	host, _, err := net.SplitHostPort(address)
	if err == nil {
		ip := net.ParseIP(host)
		if ip != nil && ip.To4() != nil {
			return network + "4", address
		}
	}

	return network, address
}
