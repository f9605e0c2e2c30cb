package utils

import (
	"net"
	"net/http"
	"time"
)

// defaults for calls to the ML services; a slow model must never hold a checkout for long.
const (
	defaultClientTimeout         = 2 * time.Second // absolute deadline for the whole request
	defaultResponseHeaderTimeout = 1500 * time.Millisecond
	defaultIdleConnTimeout       = 90 * time.Second
	defaultMaxIdleConnsPerHost   = 32
	defaultDialerTimeout         = 500 * time.Millisecond
	defaultDialerKeepAlive       = 30 * time.Second
)

// ClientConfig captures tunables for the HTTP client/transport.
// Zero values are replaced by defaults.
type ClientConfig struct {
	ClientTimeout         time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConnsPerHost   int
	DialerTimeout         time.Duration
	DialerKeepAlive       time.Duration

	// Transport replaces the pooled transport entirely when set.
	Transport http.RoundTripper
}

// ClientOption ----- Functional options pattern -----
type ClientOption func(*ClientConfig)

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.ClientTimeout = d }
}
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.ResponseHeaderTimeout = d }
}
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(c *ClientConfig) { c.MaxIdleConnsPerHost = n }
}
func WithDialerTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.DialerTimeout = d }
}
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *ClientConfig) { c.Transport = rt }
}

// NewHTTPClient builds an *http.Client with safe defaults overridden by opts.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	var cfg ClientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sanitizeClientConfig(&cfg)

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialerTimeout,
				KeepAlive: cfg.DialerKeepAlive,
			}).DialContext,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ClientTimeout,
	}
}

func sanitizeClientConfig(c *ClientConfig) {
	if c.ClientTimeout <= 0 {
		c.ClientTimeout = defaultClientTimeout
	}
	if c.ResponseHeaderTimeout <= 0 || c.ResponseHeaderTimeout > c.ClientTimeout {
		c.ResponseHeaderTimeout = min(defaultResponseHeaderTimeout, c.ClientTimeout)
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
	if c.DialerTimeout <= 0 {
		c.DialerTimeout = defaultDialerTimeout
	}
	if c.DialerKeepAlive <= 0 {
		c.DialerKeepAlive = defaultDialerKeepAlive
	}
}
