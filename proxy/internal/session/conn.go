// Package session holds the per-connection state the proxy tracks between
// accepting a client socket and tearing it down: identity, whether it was
// TLS-terminated, and the client's TLS hello. The negotiated ALPN protocol
// and the FlowCount request counter have fields, but the proxy engine
// neither sets the former nor increments the latter. There is no
// ServerConn here: Passthrough dials a
// fresh upstream connection per request rather than keeping one alive
// alongside the client connection, so there is nothing long-lived to track
// on the server side.
package session

import (
	"crypto/tls"
	"encoding/json"
	"net"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/atomic"
)

// ClientConn represents one accepted client connection.
type ClientConn struct {
	ID                 uuid.UUID
	Conn               net.Conn
	TLS                bool
	NegotiatedProtocol string
	ClientHello        *tls.ClientHelloInfo
	CloseChan          chan struct{} // closed when the connection is torn down
}

// NewClientConn wraps c with a fresh identity.
func NewClientConn(c net.Conn) *ClientConn {
	return &ClientConn{
		ID:   uuid.NewV4(),
		Conn: c,
	}
}

// MarshalJSON renders a compact summary suitable for event payloads.
func (c *ClientConn) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"id":  c.ID,
		"tls": c.TLS,
	}
	if c.Conn != nil {
		m["address"] = c.Conn.RemoteAddr().String()
	}
	return json.Marshal(m)
}

// Context carries per-connection state that survives across the multiple
// HTTP requests a keep-alive connection (or a CONNECT tunnel carrying
// several nested requests) can send.
type Context struct {
	ClientConn *ClientConn   `json:"clientConn"`
	Intercept  bool          `json:"intercept"`
	FlowCount  atomic.Uint32 `json:"-"`
}

// NewContext creates a Context for clientConn.
func NewContext(clientConn *ClientConn) *Context {
	return &Context{ClientConn: clientConn}
}

// ID returns the owning connection's identity.
func (c *Context) ID() uuid.UUID {
	return c.ClientConn.ID
}
