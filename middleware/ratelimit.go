package middleware

import (
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/caffe/protocol"
)

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc func(*Context) string
	logger  Logger
}

// WithRateLimitKeyFunc sets a function to extract a rate limit key from requests.
// This allows per-client or per-tenant rate limiting.
func WithRateLimitKeyFunc(fn func(*Context) string) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns middleware that limits request rate using a token bucket algorithm.
// The rate is specified as requests per second.
// Burst allows short bursts above the rate limit.
// Requests share a single bucket unless a key function is configured.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Handler {
	cfg := &rateLimitConfig{
		keyFunc: func(_ *Context) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(c *Context, next Next) error {
		key := cfg.keyFunc(c)

		if !limiter.Allow(c, key) {
			if cfg.logger != nil {
				cfg.logger.Warn("rate limit exceeded",
					F("key", key),
					F("request_id", RequestIDFrom(c)),
				)
			}
			return protocol.NewTooManyRequests("rate limit exceeded")
		}

		return next()
	}
}

// RateLimitByClient returns rate limiting middleware with one bucket per
// client IP, taken from the connection's remote address. Forwarding headers
// are honored only when WithTrustedProxies names the proxies that set them.
func RateLimitByClient(rate int, burst int, opts ...RateLimitOption) Handler {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(ClientIP),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// WithTrustedProxies keys requests with ForwardedClientIP(proxies...).
func WithTrustedProxies(proxies ...netip.Prefix) RateLimitOption {
	return WithRateLimitKeyFunc(ForwardedClientIP(proxies...))
}

// ClientIP returns the host part of the request's remote address.
// Request headers are ignored since any client can set them.
func ClientIP(c *Context) string {
	if c.Request == nil {
		return ""
	}
	return remoteHost(c.Request.RemoteAddr)
}

// ForwardedClientIP returns a key function for services behind the given
// proxies. When the remote address is a trusted proxy, X-Forwarded-For is
// walked from the right and the first untrusted hop is the client; without
// that header X-Real-IP is used. Requests from any other peer are keyed by
// their remote address.
func ForwardedClientIP(proxies ...netip.Prefix) func(*Context) string {
	trusted := func(ip string) bool {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range proxies {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(c *Context) string {
		if c.Request == nil {
			return ""
		}
		r := c.Request
		remote := remoteHost(r.RemoteAddr)
		if !trusted(remote) {
			return remote
		}

		if fwd := r.Header.Values(protocol.HeaderForwardedFor); len(fwd) > 0 {
			hops := strings.Split(strings.Join(fwd, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !trusted(hop) {
					return hop
				}
			}
		}
		if ip := strings.TrimSpace(r.Header.Get(protocol.HeaderRealIP)); ip != "" {
			return ip
		}
		return remote
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
