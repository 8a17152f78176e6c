// Package upstream resolves and dials the real origin server (or an
// upstream proxy in front of it) for Passthrough. It is deliberately connection-less: Manager opens a fresh
// connection per call and leaves closing it to the caller, since the
// engine never reuses an origin connection across requests.
package upstream

import (
	"context"
	"net"
	"net/http"
	"net/url"

	"github.com/mockproxy/mockproxy/internal/helper"
	"github.com/mockproxy/mockproxy/proxy/internal/proxycontext"
)

// Manager resolves the upstream proxy (if any) for a request and dials the
// resulting connection.
type Manager struct {
	upstream      string // static upstream proxy URL, e.g. from Config.Upstream
	sslInsecure   bool
	upstreamProxy func(*http.Request) (*url.URL, error)
}

// NewManager creates a Manager. upstream, if non-empty, is used as a static
// upstream proxy URL unless SetUpstreamProxy overrides it per request.
func NewManager(upstream string, sslInsecure bool) *Manager {
	return &Manager{upstream: upstream, sslInsecure: sslInsecure}
}

// SetUpstreamProxy installs a per-request upstream proxy resolver,
// overriding the static upstream URL and environment variables.
func (m *Manager) SetUpstreamProxy(fn func(*http.Request) (*url.URL, error)) {
	m.upstreamProxy = fn
}

// GetUpstreamConn dials the origin for req, through an upstream proxy if
// one is configured.
func (m *Manager) GetUpstreamConn(ctx context.Context, req *http.Request) (net.Conn, error) {
	proxyURL, err := m.GetUpstreamProxyURL(req)
	if err != nil {
		return nil, err
	}

	address := helper.CanonicalAddr(req.URL)
	if proxyURL != nil {
		return helper.GetProxyConn(ctx, proxyURL, address, m.sslInsecure)
	}
	return (&net.Dialer{}).DialContext(ctx, "tcp", address)
}

// GetUpstreamProxyURL resolves the upstream proxy URL for req, checking in
// order: a per-request resolver set via SetUpstreamProxy, the static
// upstream URL, then the environment. The environment lookup treats every
// request as https, so it consults HTTPS_PROXY (and NO_PROXY), never
// HTTP_PROXY.
func (m *Manager) GetUpstreamProxyURL(req *http.Request) (*url.URL, error) {
	if m.upstreamProxy != nil {
		return m.upstreamProxy(req)
	}
	if m.upstream != "" {
		return url.Parse(m.upstream)
	}
	cReq := &http.Request{URL: &url.URL{Scheme: "https", Host: req.Host}}
	return http.ProxyFromEnvironment(cReq)
}

// RealUpstreamProxy returns a resolver suitable for http.Transport.Proxy,
// recovering the original proxy-facing request from the outgoing client
// request's context (the Transport rewrites the request it hands to
// Proxy, so the original must be threaded through separately).
func (m *Manager) RealUpstreamProxy() func(*http.Request) (*url.URL, error) {
	return func(cReq *http.Request) (*url.URL, error) {
		req, ok := proxycontext.GetProxyRequest(cReq.Context())
		if !ok {
			return nil, nil
		}
		return m.GetUpstreamProxyURL(req)
	}
}
