package proxy

import (
	"bufio"
	"io"
	"net"
	"net/http"

	uuid "github.com/satori/go.uuid"

	"github.com/mockproxy/mockproxy/proxy/internal/session"
)

// newRequestFromHTTP converts an incoming *http.Request (as seen by entry's
// http.Server) into the pipeline's own Request record. The body is wrapped
// lazily: nothing is read off httpReq.Body until something asks for it,
// which dispatch does for every request once a rule has been selected.
// streamLargeBodies caps how many bytes a forced buffer will hold.
func newRequestFromHTTP(httpReq *http.Request, connCtx *session.Context, streamLargeBodies int64) (*Request, error) {
	req := &Request{
		ID:       uuid.NewV4(),
		Method:   httpReq.Method,
		URL:      httpReq.URL,
		Proto:    httpReq.Proto,
		Header:   Header(httpReq.Header.Clone()),
		Body:     newStreamingBody(httpReq.Body, streamLargeBodies),
		RemoteIP: httpReq.RemoteAddr,
	}
	if connCtx != nil {
		req.TLS = connCtx.ClientConn.TLS
		if connCtx.ClientConn.ClientHello != nil {
			req.SNI = connCtx.ClientConn.ClientHello.ServerName
		}
	}
	if req.URL.Host == "" {
		req.URL.Host = httpReq.Host
	}
	if req.URL.Scheme == "" {
		if req.TLS {
			req.URL.Scheme = "https"
		} else {
			req.URL.Scheme = "http"
		}
	}
	return req, nil
}

// writeResponse writes a Response record to an http.ResponseWriter.
func writeResponse(w http.ResponseWriter, resp *Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// requestToHTTP builds a wire-ready *http.Request from a Request record,
// for Passthrough to write straight to an upstream connection. Relays the
// body as a stream rather than forcing it into memory, so a large
// passthrough body never gets buffered twice.
func requestToHTTP(req *Request) (*http.Request, error) {
	httpReq, err := http.NewRequest(req.Method, req.URL.String(), req.Body.AsStream())
	if err != nil {
		return nil, err
	}
	httpReq.Proto = req.Proto
	httpReq.Header = http.Header(req.Header.Clone())
	httpReq.Host = req.Header.Get("Host")
	if httpReq.Host == "" {
		httpReq.Host = req.URL.Host
	}
	return httpReq, nil
}

// responseFromConn reads a complete HTTP response for httpReq off conn and
// converts it into a Response record, fully buffering the body whatever
// its size; upstream bodies are never streamed back to the client.
func responseFromConn(conn net.Conn, httpReq *http.Request) (*Response, error) {
	br := bufio.NewReader(conn)
	httpResp, err := http.ReadResponse(br, httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     Header(httpResp.Header.Clone()),
		Body:       body,
	}, nil
}
