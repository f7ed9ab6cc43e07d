package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 host bits zeroed", "192.168.1.47", "192.168.1.0"},
		{"ipv4 already on boundary", "10.0.0.0", "10.0.0.0"},
		{"ipv4 mapped ipv6 treated as ipv4", "::ffff:203.0.113.9", "203.0.113.0"},
		{"ipv6 keeps /48 prefix", "2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"ipv6 loopback", "::1", "::"},
		{"empty input", "", "unknown"},
		{"already unknown", "unknown", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
		{"ipv4 with port is not an ip", "192.168.1.47:8080", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.in))
		})
	}
}

func TestAnonymizedIPsCollide(t *testing.T) {
	// Two hosts on the same /24 must be indistinguishable after masking.
	assert.Equal(t, AnonymizeIP("198.51.100.7"), AnonymizeIP("198.51.100.200"))
}
