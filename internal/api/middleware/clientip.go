package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// TrustedProxies decides whose forwarding headers describe the client.
type TrustedProxies struct {
	nets []*net.IPNet
}

// NewTrustedProxies parses IPs and CIDRs. Invalid entries are logged and
// skipped.
func NewTrustedProxies(entries []string, logger zerolog.Logger) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			if strings.Contains(entry, ":") {
				entry += "/128"
			} else {
				entry += "/32"
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn().Str("entry", entry).Err(err).Msg("invalid trusted proxy")
			continue
		}
		tp.nets = append(tp.nets, ipNet)
	}
	return tp
}

func (tp *TrustedProxies) trusts(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range tp.nets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware rewrites r.RemoteAddr to the forwarded client address, but
// only when the connecting peer is a trusted proxy. Requests from anyone
// else keep their socket address whatever headers they send.
func (tp *TrustedProxies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := tp.forwardedFor(r); ip != "" {
			r.RemoteAddr = net.JoinHostPort(ip, "0")
		}
		next.ServeHTTP(w, r)
	})
}

func (tp *TrustedProxies) forwardedFor(r *http.Request) string {
	if !tp.trusts(ClientIP(r)) {
		return ""
	}
	// Check Fly.io header first
	if ip := r.Header.Get("Fly-Client-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	// Then X-Forwarded-For, right to left, skipping our own proxies
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !tp.trusts(hop) {
				return hop
			}
		}
	}
	// Then X-Real-IP
	if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
