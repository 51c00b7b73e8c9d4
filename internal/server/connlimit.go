package server

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/lawnchairsociety/cliffbrush/internal/config"
)

// ConnLimiter caps concurrent sessions per client IP and in total.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	held     int
	maxPerIP int
	maxTotal int

	trustProxy bool
}

// NewConnLimiter creates a limiter; a zero limit means unlimited.
func NewConnLimiter(cfg config.ConnectionsConfig) *ConnLimiter {
	return &ConnLimiter{
		perIP:      make(map[string]int),
		maxPerIP:   cfg.MaxPerIP,
		maxTotal:   cfg.MaxTotal,
		trustProxy: cfg.TrustProxyHeaders,
	}
}

// Acquire takes a slot for ip. The returned release func gives it back and
// may be called any number of times.
func (c *ConnLimiter) Acquire(ip string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.held >= c.maxTotal {
		return nil, false
	}
	if c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP {
		return nil, false
	}

	c.perIP[ip]++
	c.held++

	var once sync.Once
	return func() { once.Do(func() { c.release(ip) }) }, true
}

func (c *ConnLimiter) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.perIP[ip] <= 1 {
		delete(c.perIP, ip)
	} else {
		c.perIP[ip]--
	}
	c.held--
}

// Stats returns the number of held slots and distinct IPs holding them.
func (c *ConnLimiter) Stats() (total int, ips int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held, len(c.perIP)
}

// IPCount returns the number of slots held by ip.
func (c *ConnLimiter) IPCount(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perIP[ip]
}

// ClientIP names the client a request is counted against. Forwarding headers
// are only honoured when the limiter trusts the proxy in front of it; any
// client can set them otherwise.
func (c *ConnLimiter) ClientIP(r *http.Request) string {
	if c.trustProxy {
		// "client, proxy1, proxy2": the first entry is the original client
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return extractIP(r.RemoteAddr)
}

// extractIP strips the port from an ip:port address.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
