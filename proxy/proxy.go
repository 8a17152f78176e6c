// Package proxy implements the interception and rule-dispatch engine: it
// demultiplexes incoming sockets, terminates TLS for CONNECT tunnels via a
// dynamic CA, matches every request against an ordered rule set, and
// dispatches to whichever Handler the first matching Rule names.
package proxy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net/http"
	"net/url"

	uuid "github.com/satori/go.uuid"

	"github.com/mockproxy/mockproxy/cert"
	"github.com/mockproxy/mockproxy/proxy/internal/session"
	"github.com/mockproxy/mockproxy/proxy/internal/upstream"
	"github.com/mockproxy/mockproxy/version"
)

// Proxy is the engine: one listener, one CA, one rule registry, one event
// bus. Everything the control channel and the Go API expose hangs off this
// type.
type Proxy struct {
	Version string

	config          Config
	registry        *registry
	events          *eventBus
	upstreamManager *upstream.Manager
	logger          *slog.Logger

	entry           *entry
	ca              cert.CA
	shouldIntercept func(req *http.Request) bool
	authProxy       func(res http.ResponseWriter, req *http.Request) (bool, error)
}

// NewProxy creates a Proxy bound to config and ready to Start. ca is the
// dynamic certificate authority used to terminate every intercepted TLS
// connection; callers typically supply a cert.SelfSignCA.
func NewProxy(config Config, ca cert.CA) (*Proxy, error) {
	if config.StreamLargeBodies <= 0 {
		config.StreamLargeBodies = 5 * 1024 * 1024
	}
	if config.StartPort <= 0 {
		config.StartPort = 8000
	}
	if config.EndPort <= 0 {
		config.EndPort = 9000
	}

	logger := config.Logger
	if logger == nil {
		logger = NewInstanceLoggerWithFile(config.Addr, config.InstanceName, config.LogFilePath).GetLogger()
	}

	p := &Proxy{
		Version:         version.Version,
		config:          config,
		registry:        newRegistry(),
		events:          newEventBus(logger),
		upstreamManager: upstream.NewManager(config.Upstream, config.InsecureSkipVerify),
		logger:          logger,
		ca:              ca,
	}
	p.entry = newEntry(p)
	return p, nil
}

// AddRule registers rule with the pipeline. Rules are consulted in
// descending Priority, then insertion order.
func (p *Proxy) AddRule(rule *Rule) {
	p.registry.Add(rule)
}

// Reset zeroes every rule's match count without discarding the rules
// themselves, so the same Proxy instance can be replayed across test
// cases. A dispatch already in flight sees the zeroed count for every rule
// whose Checker it consults after Reset ran.
func (p *Proxy) Reset() {
	p.registry.Reset()
}

// MockedEndpoints returns a snapshot of every registered rule's match
// state, for the control channel's mockedEndpoints query.
func (p *Proxy) MockedEndpoints() []MockedEndpoint {
	return p.registry.Endpoints()
}

// MockedEndpoint returns the match state for a single rule.
func (p *Proxy) MockedEndpoint(id uuid.UUID) (MockedEndpoint, bool) {
	return p.registry.Endpoint(id)
}

// Subscribe returns a channel of future Events and an unsubscribe
// function. The channel is buffered; a subscriber that falls behind has
// events dropped (and a warning logged once) rather than blocking dispatch.
func (p *Proxy) Subscribe() (<-chan Event, func()) {
	return p.events.Subscribe()
}

// Start begins listening and blocks until the server stops. If Config.Addr
// was empty, Start first allocates a free port from [StartPort, EndPort)
// via the port allocator.
func (p *Proxy) Start() error {
	return p.entry.start()
}

// ListenAddr returns the address Start bound to, or "" if Start hasn't
// successfully listened yet.
func (p *Proxy) ListenAddr() string {
	return p.entry.addr()
}

// Close immediately stops the proxy, dropping active connections.
func (p *Proxy) Close() error {
	return p.entry.close()
}

// Shutdown stops the proxy gracefully, waiting for in-flight requests up to
// ctx's deadline.
func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.entry.shutdown(ctx)
}

// GetCertificate returns the engine's root CA certificate, e.g. to install
// into a test client's trust store.
func (p *Proxy) GetCertificate() x509.Certificate {
	return *p.ca.GetRootCA()
}

// GetCertificateByCN returns (minting if necessary) a leaf certificate for
// commonName.
func (p *Proxy) GetCertificateByCN(commonName string) (*tls.Certificate, error) {
	return p.ca.GetCert(commonName)
}

// SetShouldInterceptRule installs a predicate deciding whether a given
// CONNECT request should be intercepted at all. Currently advisory: every
// CONNECT is terminated via the CA regardless, since a mocking proxy has
// no use for ciphertext it cannot read. Retained as a no-op landing spot
// for callers that still set it.
func (p *Proxy) SetShouldInterceptRule(rule func(req *http.Request) bool) {
	p.shouldIntercept = rule
}

// SetUpstreamProxy installs a per-request upstream proxy resolver, used by
// Passthrough when forwarding to the real origin.
func (p *Proxy) SetUpstreamProxy(fn func(req *http.Request) (*url.URL, error)) {
	p.upstreamManager.SetUpstreamProxy(fn)
}

// SetAuthProxy installs a Proxy-Authenticate check run before any request
// is dispatched.
func (p *Proxy) SetAuthProxy(fn func(res http.ResponseWriter, req *http.Request) (bool, error)) {
	p.authProxy = fn
}

// NotifyClientDisconnected implements session.DisconnectNotifier.
func (p *Proxy) NotifyClientDisconnected(clientConn *session.ClientConn) {
	p.logger.Debug("client disconnected", "id", clientConn.ID)
}
