package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// StaticHandler always returns a copy of resp, regardless of the request.
func StaticHandler(resp *Response) Handler {
	return HandlerFunc(func(_ context.Context, _ *Request, _ *HandlerContext) (*Response, error) {
		cp := &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       append([]byte(nil), resp.Body...),
		}
		return cp, nil
	})
}

// CallbackHandler runs fn to produce a response for each matching request.
// If timeout is positive and fn has not returned by then, the handler
// aborts the request (a 500 response plus an EventRequestAborted) rather
// than hanging the pipeline indefinitely.
func CallbackHandler(fn func(req *Request) (*Response, error), timeout time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request, _ *HandlerContext) (*Response, error) {
		if timeout <= 0 {
			return fn(req)
		}

		type result struct {
			resp *Response
			err  error
		}
		done := make(chan result, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- result{nil, fmt.Errorf("proxy: mock callback panicked: %v", r)}
				}
			}()
			resp, err := fn(req)
			done <- result{resp, err}
		}()

		select {
		case res := <-done:
			return res.resp, res.err
		case <-time.After(timeout):
			return nil, errCallbackTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// StreamHandler runs fn with a writer connected directly to the client,
// for responses that must be produced incrementally (e.g. chunked bodies
// larger than is sensible to buffer). The handler itself sends status and
// header to the client, then fn writes the body to w; the handler returns
// a nil Response, since everything has already been written.
func StreamHandler(status int, header Header, fn func(ctx context.Context, w io.Writer) error) Handler {
	return HandlerFunc(func(ctx context.Context, _ *Request, hc *HandlerContext) (*Response, error) {
		for k, vs := range header {
			for _, v := range vs {
				hc.Writer.Header().Add(k, v)
			}
		}
		hc.Writer.WriteHeader(status)
		if flusher, ok := hc.Writer.(interface{ Flush() }); ok {
			flusher.Flush()
		}
		if err := fn(ctx, hc.Writer); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// PassthroughHandler forwards the request to its real origin and relays the
// origin's response back untouched. Each dispatch dials a fresh upstream
// connection; connection reuse across requests is not offered.
func PassthroughHandler() Handler {
	return HandlerFunc(func(ctx context.Context, req *Request, hc *HandlerContext) (*Response, error) {
		conn, err := hc.DialUpstream(ctx)
		if err != nil {
			return &Response{StatusCode: 502, Header: Header{}, Body: []byte("upstream dial failed")}, nil
		}
		defer conn.Close()

		httpReq, err := requestToHTTP(req)
		if err != nil {
			return &Response{StatusCode: 502, Header: Header{}, Body: []byte("malformed request")}, nil
		}
		if err := httpReq.Write(conn); err != nil {
			return &Response{StatusCode: 502, Header: Header{}, Body: []byte("upstream write failed")}, nil
		}

		resp, err := responseFromConn(conn, httpReq)
		if err != nil {
			return &Response{StatusCode: 502, Header: Header{}, Body: []byte("upstream read failed")}, nil
		}
		return resp, nil
	})
}

// FileHandler serves localPath for every matched request: the file itself
// if localPath names a file, or localPath joined with the request's URL
// path if it names a directory. Returns 404 if the resolved path doesn't
// exist, 500 on any other read failure.
func FileHandler(localPath string) Handler {
	return HandlerFunc(func(_ context.Context, req *Request, _ *HandlerContext) (*Response, error) {
		resolved := localPath
		stat, err := os.Stat(resolved)
		if err == nil && stat.IsDir() {
			resolved = path.Join(localPath, filepath.ToSlash(strings.TrimPrefix(req.URL.Path, "/")))
			stat, err = os.Stat(resolved)
		}
		if os.IsNotExist(err) {
			return &Response{StatusCode: 404, Header: Header{}}, nil
		}
		if err != nil {
			return &Response{StatusCode: 500, Header: Header{}}, nil
		}
		if stat.IsDir() {
			return &Response{StatusCode: 500, Header: Header{}, Body: []byte("resolved path is a directory")}, nil
		}

		body, err := os.ReadFile(resolved)
		if err != nil {
			return &Response{StatusCode: 500, Header: Header{}}, nil
		}
		return &Response{StatusCode: 200, Header: Header{}, Body: body}, nil
	})
}

// CloseHandler hijacks the client connection and closes it immediately,
// without writing any bytes. Simulates a server that drops the connection.
func CloseHandler() Handler {
	return HandlerFunc(func(_ context.Context, _ *Request, hc *HandlerContext) (*Response, error) {
		raw, err := hc.Hijack()
		if err != nil {
			return &Response{StatusCode: 502}, nil
		}
		raw.Close()
		return nil, nil
	})
}

// ResetHandler hijacks the client connection and sends a TCP RST rather
// than a graceful FIN, simulating an abrupt peer reset.
func ResetHandler() Handler {
	return HandlerFunc(func(_ context.Context, _ *Request, hc *HandlerContext) (*Response, error) {
		raw, err := hc.Hijack()
		if err != nil {
			return &Response{StatusCode: 502}, nil
		}
		if tcp, ok := raw.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		raw.Close()
		return nil, nil
	})
}

// TimeoutHandler hijacks the client connection and holds it open without
// writing anything until d elapses or ctx is cancelled, then closes it.
// Simulates a server that accepted the request but never responded.
func TimeoutHandler(d time.Duration) Handler {
	return HandlerFunc(func(ctx context.Context, _ *Request, hc *HandlerContext) (*Response, error) {
		raw, err := hc.Hijack()
		if err != nil {
			return &Response{StatusCode: 502}, nil
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		raw.Close()
		return nil, nil
	})
}
