package broker

import (
	"net"
	"sort"
)

func sortQueued(entries []QueuedEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Request.TradeID < entries[j].Request.TradeID
	})
}

var tailnetRange = net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// localAddress picks the address other processes should reach this host
// on: the tailnet address (100.64.0.0/10) when present, otherwise the
// first non-loopback IPv4.
func localAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	return pickAddress(addrs)
}

func pickAddress(addrs []net.Addr) string {
	fallback := ""
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() {
			continue
		}
		if tailnetRange.Contains(ip4) {
			return ip4.String()
		}
		if fallback == "" {
			fallback = ip4.String()
		}
	}
	return fallback
}
