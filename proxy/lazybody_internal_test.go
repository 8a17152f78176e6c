package proxy

import (
	"io"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStreamingBodyBuffersUnderLimit(t *testing.T) {
	c := qt.New(t)

	b := newStreamingBody(strings.NewReader("hello"), 1024)
	buf, err := b.Buffer()

	c.Assert(err, qt.IsNil)
	c.Assert(string(buf), qt.Equals, "hello")
}

func TestStreamingBodyOverLimitReportsErrBodyTooLarge(t *testing.T) {
	c := qt.New(t)

	b := newStreamingBody(strings.NewReader("hello world"), 4)
	_, err := b.Buffer()

	c.Assert(err, qt.Equals, errBodyTooLarge)
}

func TestStreamingBodyOverLimitStillRecoverableViaAsStream(t *testing.T) {
	c := qt.New(t)

	b := newStreamingBody(strings.NewReader("hello world"), 4)
	_, err := b.Buffer()
	c.Assert(err, qt.Equals, errBodyTooLarge)

	full, err := io.ReadAll(b.AsStream())
	c.Assert(err, qt.IsNil)
	c.Assert(string(full), qt.Equals, "hello world")
}
