// Package privacy holds helpers for keeping personal data out of audit
// trails and logs.
package privacy

import "net/netip"

// AnonymizeIP masks the host-identifying part of an address before it is
// recorded anywhere durable. IPv4 addresses keep their /24 prefix, IPv6
// addresses their /48 prefix. Unparseable input maps to "invalid" and empty
// input to "unknown", so callers can log the result unconditionally.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	if addr.Is4() || addr.Is4In6() {
		masked := netip.PrefixFrom(addr.Unmap(), 24).Masked()
		return masked.Addr().String()
	}
	masked := netip.PrefixFrom(addr, 48).Masked()
	return masked.Addr().String()
}
