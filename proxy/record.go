package proxy

import (
	"net/url"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Timing records when a request and its matched response crossed the proxy
// boundary, for latency reporting over the control channel.
type Timing struct {
	RequestStart  time.Time
	RequestEnd    time.Time
	ResponseStart time.Time
	ResponseEnd   time.Time
}

// Request is the proxy's record of an intercepted HTTP request. It is
// decoupled from *http.Request so handlers and matchers can read and, for
// Callback handlers, rewrite it without fighting net/http's read-once Body
// and immutable-after-send Header semantics.
type Request struct {
	ID       uuid.UUID
	Method   string
	URL      *url.URL
	Proto    string
	Header   Header
	Body     *Body
	RemoteIP string

	// TLS is true when this request arrived over an intercepted HTTPS
	// connection (after CONNECT + TLS termination).
	TLS bool
	// SNI is the server name the client requested during the TLS
	// handshake, if this was a TLS connection.
	SNI string

	Timing Timing
}

// Hostname returns the host component of the request's target, without
// port, falling back to the Host header if URL.Host is empty.
func (r *Request) Hostname() string {
	host := r.URL.Hostname()
	if host != "" {
		return host
	}
	return r.Header.Get("Host")
}

// Response is the proxy's record of the response synthesized or relayed for
// a Request.
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
}

// TLSFailure describes a TLS handshake that the terminator could not
// complete with the client, e.g. because SNI could not be read or the
// client rejected the forged leaf certificate.
type TLSFailure struct {
	ID        uuid.UUID
	Hostname  string
	Address   string
	Error     error
	Timestamp time.Time
}
