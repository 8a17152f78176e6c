// This file implements the HTTP front-end: the net.Listener wrapper that
// demultiplexes incoming sockets, and the http.Handler that routes CONNECT
// tunnels and plain HTTP proxy requests into the rule pipeline.
//
// Every CONNECT tunnel is terminated: the proxy always mints a leaf
// certificate via its CA and speaks TLS to the client itself, then parses
// whatever HTTP traffic comes down the decrypted tunnel and dispatches it
// through the same pipeline as a plain HTTP proxy request. There is no
// direct-transfer / non-interception mode: a proxy whose entire purpose is
// mocking responses has nothing useful to do with traffic it can't read.
// A CONNECT to a host with no matching rule still results in a 503 inside
// the tunnel (after decryption) rather than refusing the CONNECT itself,
// so every target behaves the same from the client's point of view.
package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/mockproxy/mockproxy/internal/helper"
	"github.com/mockproxy/mockproxy/proxy/internal/proxycontext"
	"github.com/mockproxy/mockproxy/proxy/internal/session"
)

// wrapListener decorates each accepted connection with a session.Context
// and demultiplexes sockets that speak TLS directly to the proxy's port
// (rather than arriving via an HTTP CONNECT tunnel) by terminating them on
// accept.
type wrapListener struct {
	net.Listener
	proxy *Proxy
}

func (l *wrapListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	wc := session.NewWrapClientConn(c, l.proxy)
	clientConn := session.NewClientConn(wc)
	clientConn.CloseChan = wc.CloseChan
	connCtx := session.NewContext(clientConn)
	wc.ConnCtx = connCtx

	peek, err := wc.Peek(3)
	if err == nil && helper.IsTLS(peek) {
		tlsConn, hello, err := terminateTLS(wc, l.proxy.ca)
		if err != nil {
			l.proxy.logger.Debug("direct tls termination failed", "error", err)
			wc.Close()
			return nil, err
		}
		wc.Upgrade(tlsConn)
		clientConn.TLS = true
		if hello != nil {
			clientConn.ClientHello = hello
		}
	}

	return wc, nil
}

// entry is the HTTP server entry point.
type entry struct {
	proxy  *Proxy
	server *http.Server

	mu         sync.Mutex
	listenAddr string
}

func newEntry(proxy *Proxy) *entry {
	e := &entry{proxy: proxy}
	e.server = &http.Server{
		Addr:    proxy.config.Addr,
		Handler: e,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if wc, ok := c.(*session.WrapClientConn); ok {
				return proxycontext.WithConnContext(ctx, wc.ConnCtx)
			}
			return ctx
		},
	}
	return e
}

func (e *entry) start() error {
	addr := e.server.Addr
	if addr == "" {
		port, err := AllocatePort(e.proxy.config.StartPort, e.proxy.config.EndPort-1)
		if err != nil {
			return err
		}
		addr = fmt.Sprintf(":%d", port)
		e.server.Addr = addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.listenAddr = ln.Addr().String()
	e.mu.Unlock()

	e.proxy.logger.Info("proxy listening", "addr", ln.Addr().String())
	pln := &wrapListener{Listener: ln, proxy: e.proxy}
	return e.server.Serve(pln)
}

// addr returns the address start() bound to, or "" before start() has
// listened successfully.
func (e *entry) addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listenAddr
}

func (e *entry) close() error {
	return e.server.Close()
}

func (e *entry) shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}

// ServeHTTP routes CONNECT requests to handleConnect and everything else
// into the rule pipeline directly.
func (e *entry) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	proxy := e.proxy
	logger := proxy.logger.With("in", "entry.ServeHTTP", "host", req.Host)

	if proxy.authProxy != nil {
		ok, authErr := proxy.authProxy(res, req)
		if !ok {
			logger.Debug("proxy authentication failed", "error", authErr)
			httpError(res, "", http.StatusProxyAuthRequired)
			return
		}
	}

	if req.Method == http.MethodConnect {
		e.handleConnect(res, req)
		return
	}

	if !req.URL.IsAbs() || req.URL.Host == "" {
		// Requests read from a terminated TLS connection carry only a path;
		// their target comes from the Host header.
		connCtx, ok := proxycontext.GetConnContext(req.Context())
		if !ok || !connCtx.ClientConn.TLS || req.Host == "" {
			res.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(res, "this is a proxy server, direct requests are not allowed")
			return
		}
	}

	e.serveProxied(res, req)
}

// serveProxied converts an incoming *http.Request into the pipeline's
// Request record, dispatches it, and writes back whatever Response (if
// any) the matched Handler produced.
func (e *entry) serveProxied(res http.ResponseWriter, httpReq *http.Request) {
	proxy := e.proxy
	logger := proxy.logger.With("in", "entry.serveProxied", "host", httpReq.Host)

	connCtx, _ := proxycontext.GetConnContext(httpReq.Context())

	req, err := newRequestFromHTTP(httpReq, connCtx, proxy.config.StreamLargeBodies)
	if err != nil {
		logger.Error("read request body failed", "error", err)
		res.WriteHeader(http.StatusBadGateway)
		return
	}

	checked := helper.NewResponseCheck(res)
	hc := &HandlerContext{
		Writer: checked,
		dialUpstream: func(ctx context.Context) (net.Conn, error) {
			conn, err := proxy.upstreamManager.GetUpstreamConn(ctx, httpReq)
			if err != nil || req.URL.Scheme != "https" {
				return conn, err
			}
			tlsConn := tls.Client(conn, &tls.Config{
				ServerName:         req.URL.Hostname(),
				InsecureSkipVerify: proxy.config.InsecureSkipVerify,
			})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
	}

	resp, err := proxy.dispatch(httpReq.Context(), req, hc)
	if err != nil {
		logger.Error("dispatch failed", "error", err)
		return
	}
	if resp == nil {
		return // handler already took over the connection
	}
	if checked.Wrote {
		// A StreamHandler (or similar) already wrote headers/body directly
		// to hc.Writer before erroring out; writing resp on top of that
		// would corrupt an already-started response.
		logger.Error("handler wrote directly to the connection before erroring", "status", resp.StatusCode)
		return
	}
	writeResponse(res, resp)
}

// handleConnect establishes the client tunnel, always terminating TLS via
// the proxy's CA, then serves whatever HTTP traffic comes down it through
// the same ServeHTTP handler (so a nested CONNECT inside the tunnel, e.g.
// from a client configured to chain through this proxy twice, is handled
// identically to a top-level one).
func (e *entry) handleConnect(res http.ResponseWriter, req *http.Request) {
	proxy := e.proxy
	logger := proxy.logger.With("in", "entry.handleConnect", "host", req.Host)

	connCtx, ok := proxycontext.GetConnContext(req.Context())
	if !ok {
		logger.Error("missing connection context")
		res.WriteHeader(http.StatusInternalServerError)
		return
	}
	connCtx.Intercept = true

	cconn, _, err := res.(http.Hijacker).Hijack()
	if err != nil {
		logger.Error("hijack failed", "error", err)
		res.WriteHeader(http.StatusBadGateway)
		return
	}
	if _, err := io.WriteString(cconn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		cconn.Close()
		return
	}

	tlsConn, hello, err := terminateTLS(cconn, proxy.ca)
	if err != nil {
		logger.Debug("tls termination failed", "error", err, "sni", sniOf(hello))
		proxy.events.Publish(Event{Kind: EventFailedTLSRequest, TLSFailure: &TLSFailure{
			Hostname: sniOf(hello),
			Address:  req.Host,
			Error:    err,
		}})
		cconn.Close()
		return
	}
	connCtx.ClientConn.TLS = true
	if hello != nil {
		connCtx.ClientConn.ClientHello = hello
	}

	e.serveTunnel(tlsConn, connCtx)
}

// serveTunnel runs a one-shot HTTP server over a single already-terminated
// connection, so the full entry.ServeHTTP routing (including nested
// CONNECT) applies to whatever arrives inside the tunnel.
func (e *entry) serveTunnel(conn net.Conn, connCtx *session.Context) {
	ln := newOneShotListener(conn)
	srv := &http.Server{
		Handler: e,
		ConnContext: func(ctx context.Context, _ net.Conn) context.Context {
			return proxycontext.WithConnContext(ctx, connCtx)
		},
	}
	_ = srv.Serve(ln)
}

func sniOf(hello *tls.ClientHelloInfo) string {
	if hello == nil {
		return ""
	}
	return hello.ServerName
}
