package helper

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
)

// ReaderToBuffer reads r into a buffer up to limit bytes. If the limit is
// not reached, it returns the fully read buffer. Otherwise buf is nil and
// the returned Reader replays everything read so far followed by the rest
// of r, so a caller that needs the whole body regardless of size (e.g.
// Body.AsStream) can still recover it intact.
func ReaderToBuffer(r io.Reader, limit int64) ([]byte, io.Reader, error) {
	buf := bytes.NewBuffer(make([]byte, 0))
	lr := io.LimitReader(r, limit)

	_, err := io.Copy(buf, lr)
	if err != nil {
		return nil, nil, err
	}

	// Reached the limit
	if int64(buf.Len()) == limit {
		// Return a new Reader
		return nil, io.MultiReader(bytes.NewBuffer(buf.Bytes()), r), nil
	}

	// Return buffer
	return buf.Bytes(), nil, nil
}

// NewStructFromFile reads filename as JSON into v, e.g. loading a ruleset
// file at startup.
func NewStructFromFile(filename string, v any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return nil
}

var portMap = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// CanonicalAddr returns url.Host but always with a ":port" suffix.
func CanonicalAddr(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = portMap[u.Scheme]
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// https://github.com/mitmproxy/mitmproxy/blob/main/mitmproxy/net/tls.py is_tls_record_magic
func IsTLS(buf []byte) bool {
	if buf[0] == 0x16 && buf[1] == 0x03 && buf[2] <= 0x03 {
		return true
	}
	return false
}

// ResponseCheck wraps an http.ResponseWriter to record whether anything was
// ever written to it, so a caller further up the stack (e.g. the dispatch
// pipeline deciding whether to write an abort response) can tell whether a
// Handler already sent bytes to the client directly, via HandlerContext.Writer,
// before erroring out.
type ResponseCheck struct {
	http.ResponseWriter
	Wrote bool
}

func NewResponseCheck(r http.ResponseWriter) *ResponseCheck {
	return &ResponseCheck{
		ResponseWriter: r,
	}
}

func (r *ResponseCheck) WriteHeader(statusCode int) {
	r.Wrote = true
	r.ResponseWriter.WriteHeader(statusCode)
}

// Hijack forwards to the wrapped ResponseWriter's Hijack, for handlers
// (Close, Reset, Timeout) that take over the raw connection through
// HandlerContext.Hijack rather than writing a response.
func (r *ResponseCheck) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func (r *ResponseCheck) Write(b []byte) (int, error) {
	r.Wrote = true
	return r.ResponseWriter.Write(b)
}
