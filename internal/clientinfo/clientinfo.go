// Package clientinfo derives analytics context for a request from its
// User-Agent and address.
package clientinfo

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/geoip"
)

// DeviceType buckets a parsed User-Agent into desktop, mobile, tablet or other.
func DeviceType(ua *uasurfer.UserAgent) string {
	switch ua.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}

// Resolve builds the client context for a User-Agent string and IP.
func Resolve(g *geoip.Resolver, userAgent, ip string) analytics.ClientContext {
	ua := uasurfer.Parse(userAgent)
	return analytics.ClientContext{
		DeviceType: DeviceType(ua),
		Country:    g.Country(net.ParseIP(ip)),
		IsBot:      ua.IsBot(),
	}
}

// FromRequest resolves the client context of r.
func FromRequest(g *geoip.Resolver, r *http.Request) analytics.ClientContext {
	return Resolve(g, r.UserAgent(), ClientIP(r))
}

// ClientIP returns the first X-Forwarded-For address, falling back to
// X-Real-IP and then the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
