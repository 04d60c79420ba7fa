package ratelimit

import (
	"net/netip"
	"strings"
)

// IPv6PrefixBits is the subnet size treated as one IPv6 client.
const IPv6PrefixBits = 56

// IdentityKey returns the limiter identity for a caller: the authenticated
// user when known, else the normalized network address.
func IdentityKey(userID, remoteIP string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + NormalizeIP(remoteIP)
}

// NormalizeIP canonicalizes an address so the same client always maps to
// the same key: zones are stripped, IPv4-mapped IPv6 is unmapped and IPv6
// is truncated to its /56 network. Unparseable input is returned trimmed.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)

	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		addr = ap.Addr()
	} else {
		parsed, err := netip.ParseAddr(strings.Trim(raw, "[]"))
		if err != nil {
			return raw
		}
		addr = parsed
	}

	addr = addr.WithZone("").Unmap()
	if addr.Is4() {
		return addr.String()
	}

	prefix, err := addr.Prefix(IPv6PrefixBits)
	if err != nil {
		return addr.String()
	}
	return prefix.String()
}
