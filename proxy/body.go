package proxy

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// textContentTypePrefixes lists Content-Type prefixes treated as text for
// logging and Subscription payload purposes. Anything else is reported as
// binary so callers know not to render it as a string without checking.
var textContentTypePrefixes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/x-www-form-urlencoded",
	"application/graphql",
}

// IsTextContentType reports whether the response's Content-Type looks like
// text, for display purposes only; it is not used to decide how bytes are
// decoded.
func (r *Response) IsTextContentType() bool {
	ct := r.Header.Get("Content-Type")
	for _, prefix := range textContentTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// decodeBody decodes body according to the Content-Encoding value. An empty
// or "identity" encoding returns body unchanged. Unrecognized encodings are
// an error; callers that want a best-effort pass-through should check
// Content-Encoding themselves before calling this.
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("proxy: gzip decode: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		r := brotli.NewReader(bytes.NewReader(body))
		return io.ReadAll(r)
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("proxy: zstd decode: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("proxy: unsupported content-encoding %q", contentEncoding)
	}
}

// DecodedBody returns the request body with any Content-Encoding applied.
// Forces the lazy Body to be fully buffered.
func (r *Request) DecodedBody() ([]byte, error) {
	buf, err := r.Body.Buffer()
	if err != nil {
		return nil, err
	}
	return decodeBody(buf, r.Header.Get("Content-Encoding"))
}

// DecodedBody returns the response body with any Content-Encoding applied,
// leaving the original Body field untouched.
func (r *Response) DecodedBody() ([]byte, error) {
	return decodeBody(r.Body, r.Header.Get("Content-Encoding"))
}

// ReplaceToDecodedBody decodes Body in place and clears the headers that
// describe the old encoding. If decoding fails, Body and its headers are
// left exactly as they were; the caller can inspect the error path by
// calling DecodedBody directly if it needs to know why.
func (r *Response) ReplaceToDecodedBody() {
	decoded, err := r.DecodedBody()
	if err != nil {
		return
	}
	r.Body = decoded
	r.Header.Del("Content-Encoding")
	r.Header.Del("Transfer-Encoding")
	r.Header.Set("Content-Length", fmt.Sprintf("%d", len(decoded)))
}
