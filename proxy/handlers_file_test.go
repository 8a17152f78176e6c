package proxy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mockproxy/mockproxy/proxy"
)

func TestFileHandlerServesFileDirectly(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "body.txt")
	c.Assert(os.WriteFile(file, []byte("hello"), 0o644), qt.IsNil)

	h := proxy.FileHandler(file)
	resp, err := h.Handle(context.Background(), req("GET", "http://x/whatever"), &proxy.HandlerContext{})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, 200)
	c.Assert(string(resp.Body), qt.Equals, "hello")
}

func TestFileHandlerServesFromDirectoryUsingRequestPath(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "assets"), 0o755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644), qt.IsNil)

	h := proxy.FileHandler(dir)
	resp, err := h.Handle(context.Background(), req("GET", "http://x/assets/app.js"), &proxy.HandlerContext{})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, 200)
	c.Assert(string(resp.Body), qt.Equals, "console.log(1)")
}

func TestFileHandlerReturns404ForMissingFile(t *testing.T) {
	c := qt.New(t)

	h := proxy.FileHandler(filepath.Join(t.TempDir(), "nope.txt"))
	resp, err := h.Handle(context.Background(), req("GET", "http://x/"), &proxy.HandlerContext{})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, 404)
}
