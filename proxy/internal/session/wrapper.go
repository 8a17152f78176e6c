package session

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
)

// DisconnectNotifier is invoked once when a WrapClientConn is closed, so
// the engine can publish a request-aborted event or tear down any rule
// state pinned to this connection.
type DisconnectNotifier interface {
	NotifyClientDisconnected(*ClientConn)
}

// WrapClientConn decorates an accepted net.Conn with a buffered reader so
// the socket demultiplexer can peek the first bytes (to route plaintext vs.
// TLS) without consuming it, and with a ConnCtx carrying this connection's
// session.Context for the lifetime of every request dispatched on it.
type WrapClientConn struct {
	net.Conn
	r        *bufio.Reader
	ConnCtx  *Context
	notifier DisconnectNotifier

	closeMu   sync.Mutex
	closed    bool
	closeErr  error
	CloseChan chan struct{}
}

// NewWrapClientConn wraps c, ready to have its ConnCtx assigned.
func NewWrapClientConn(c net.Conn, notifier DisconnectNotifier) *WrapClientConn {
	return &WrapClientConn{
		Conn:      c,
		r:         bufio.NewReader(c),
		notifier:  notifier,
		CloseChan: make(chan struct{}),
	}
}

// Peek returns the next n bytes without advancing the reader.
func (c *WrapClientConn) Peek(n int) ([]byte, error) {
	return c.r.Peek(n)
}

// Upgrade replaces the underlying connection (e.g. once a raw TCP socket
// has been TLS-terminated into a *tls.Conn) and resets the buffered reader
// so subsequent Peek/Read calls see bytes from the new connection instead
// of any still-buffered ciphertext.
func (c *WrapClientConn) Upgrade(newConn net.Conn) {
	c.Conn = newConn
	c.r = bufio.NewReader(newConn)
}

// Read reads data from the connection through the buffered reader, so
// bytes already consumed by Peek are replayed rather than lost.
func (c *WrapClientConn) Read(data []byte) (int, error) {
	return c.r.Read(data)
}

// Close closes the underlying connection once, notifying the owner.
func (c *WrapClientConn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return c.closeErr
	}
	if c.ConnCtx != nil && c.ConnCtx.ClientConn.Conn != nil {
		slog.Debug("WrapClientConn close", "remoteAddr", c.ConnCtx.ClientConn.Conn.RemoteAddr().String())
	}

	c.closed = true
	c.closeErr = c.Conn.Close()
	c.closeMu.Unlock()
	close(c.CloseChan)

	if c.notifier != nil && c.ConnCtx != nil {
		c.notifier.NotifyClientDisconnected(c.ConnCtx.ClientConn)
	}

	return c.closeErr
}
