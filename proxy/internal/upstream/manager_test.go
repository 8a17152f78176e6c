package upstream_test

import (
	"net/http"
	"net/url"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mockproxy/mockproxy/proxy/internal/upstream"
)

func TestGetUpstreamProxyURLUsesStaticUpstream(t *testing.T) {
	c := qt.New(t)

	m := upstream.NewManager("http://127.0.0.1:8080", false)
	req, _ := http.NewRequest("GET", "https://example.com", nil)

	got, err := m.GetUpstreamProxyURL(req)

	c.Assert(err, qt.IsNil)
	c.Assert(got.String(), qt.Equals, "http://127.0.0.1:8080")
}

func TestGetUpstreamProxyURLPrefersCustomResolver(t *testing.T) {
	c := qt.New(t)

	m := upstream.NewManager("http://static.invalid", false)
	want, _ := url.Parse("http://custom.invalid")
	m.SetUpstreamProxy(func(*http.Request) (*url.URL, error) { return want, nil })

	req, _ := http.NewRequest("GET", "https://example.com", nil)
	got, err := m.GetUpstreamProxyURL(req)

	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, want)
}

func TestGetUpstreamProxyURLNoneConfigured(t *testing.T) {
	c := qt.New(t)

	t.Setenv("HTTP_PROXY", "")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("NO_PROXY", "")

	m := upstream.NewManager("", false)
	req, _ := http.NewRequest("GET", "https://example.com", nil)

	got, err := m.GetUpstreamProxyURL(req)

	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.IsNil)
}
