package restrictnetwork

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRestrict(t *testing.T) {
	for _, ca := range []struct {
		name    string
		network string
		address string
		out     string
	}{
		{"loopback v4", "tcp", "127.0.0.1:3030", "tcp4"},
		{"any v4", "tcp", "0.0.0.0:3030", "tcp4"},
		{"multicast v4", "udp", "238.0.0.1:1234", "udp4"},
		{"loopback v6", "tcp", "[::1]:3030", "tcp"},
		{"hostname", "tcp", "localhost:3030", "tcp"},
		{"no port", "tcp", "127.0.0.1", "tcp"},
	} {
		t.Run(ca.name, func(t *testing.T) {
			network, address := Restrict(ca.network, ca.address)
			require.Equal(t, ca.out, network)
			require.Equal(t, ca.address, address)
		})
	}
}
