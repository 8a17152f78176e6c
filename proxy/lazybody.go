package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/mockproxy/mockproxy/internal/helper"
)

// Body is a lazy view over a Request's payload. One constructed from the
// raw connection reader is not pulled off the wire until something asks
// for bytes via Buffer, AsText, or AsStream. Matchers run before that, but
// the pipeline buffers every request's body once a rule has been selected,
// before its Handler runs. A nil *Body behaves as an empty one for Buffer,
// AsText, AsStream and MarshalJSON; UnmarshalJSON needs a non-nil Body.
type Body struct {
	mu     sync.Mutex
	source io.Reader
	limit  int64
	buf    []byte
	err    error
	read   bool
}

// NewBody wraps an already-available byte slice as a Body with nothing
// left to read, for handlers and tests that build a Request in memory.
func NewBody(b []byte) *Body {
	return &Body{buf: b, read: true}
}

// newStreamingBody wraps source as a Body that buffers at most limit bytes
// the first time it's actually read.
func newStreamingBody(source io.Reader, limit int64) *Body {
	return &Body{source: source, limit: limit}
}

// Buffer forces the body to be fully read into memory, if it hasn't been
// already, and returns the bytes. Safe to call repeatedly; the underlying
// reader is only drained once a call succeeds. A body that reaches the
// limit it was constructed with (a body of exactly limit bytes included)
// is reported as errBodyTooLarge rather than buffered anyway — callers that expect arbitrarily large bodies (e.g.
// Passthrough) should use AsStream instead.
func (b *Body) Buffer() ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.read {
		return b.buf, b.err
	}
	if b.source == nil {
		b.read = true
		return nil, nil
	}

	buf, rest, err := helper.ReaderToBuffer(b.source, b.limit)
	if err != nil {
		b.err, b.read = err, true
		return nil, b.err
	}
	if buf == nil {
		// ReaderToBuffer hit the limit: leave the body unread so a
		// caller that really needs every byte can still fall back to
		// AsStream over the intact source.
		b.source = rest
		return nil, errBodyTooLarge
	}
	b.buf, b.read = buf, true
	return b.buf, nil
}

// AsText buffers the body and returns its raw bytes as a string. No
// Content-Encoding or charset decoding is applied; Request.DecodedBody
// undoes the content encoding.
func (b *Body) AsText() (string, error) {
	buf, err := b.Buffer()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// AsStream returns a reader over the body without forcing it fully into
// memory first, for handlers like Passthrough that relay bytes straight
// through to an upstream connection instead of matching against them.
// Calling AsStream before the body has been buffered hands the underlying
// source to the caller; a later Buffer/AsText call on the same Body then
// returns an empty body, whatever the caller read or left unread.
func (b *Body) AsStream() io.Reader {
	if b == nil {
		return bytes.NewReader(nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.read {
		return bytes.NewReader(b.buf)
	}
	if b.source == nil {
		b.read = true
		return bytes.NewReader(nil)
	}
	src := b.source
	b.source = nil
	b.read = true
	return src
}

// MarshalJSON buffers the body and encodes it the same way a plain []byte
// field would (a base64 string), so Body stays wire-compatible with the
// control channel's event payloads.
func (b *Body) MarshalJSON() ([]byte, error) {
	buf, err := b.Buffer()
	if err != nil {
		return nil, err
	}
	return json.Marshal(buf)
}

// UnmarshalJSON decodes a base64 byte string into an already-buffered Body.
func (b *Body) UnmarshalJSON(data []byte) error {
	var buf []byte
	if err := json.Unmarshal(data, &buf); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = buf
	b.read = true
	return nil
}
