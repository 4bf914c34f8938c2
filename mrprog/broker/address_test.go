package broker

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ipNet(cidr string) *net.IPNet {
	ip, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestPickAddress(t *testing.T) {
	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{
			name:  "prefers tailnet over lan",
			addrs: []net.Addr{ipNet("192.168.1.5/24"), ipNet("100.70.1.2/32")},
			want:  "100.70.1.2",
		},
		{
			name:  "100.x outside the carrier range is not tailnet",
			addrs: []net.Addr{ipNet("100.5.1.2/24"), ipNet("100.100.1.2/32")},
			want:  "100.100.1.2",
		},
		{
			name:  "falls back to first non-loopback ipv4",
			addrs: []net.Addr{ipNet("127.0.0.1/8"), ipNet("100.5.1.2/24"), ipNet("10.0.0.7/8")},
			want:  "100.5.1.2",
		},
		{
			name:  "skips loopback and ipv6",
			addrs: []net.Addr{ipNet("127.0.0.1/8"), ipNet("fe80::1/64")},
			want:  "",
		},
		{
			name:  "no addresses",
			addrs: nil,
			want:  "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pickAddress(tc.addrs))
		})
	}
}
