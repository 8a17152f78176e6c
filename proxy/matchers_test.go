package proxy_test

import (
	"net/url"
	"regexp"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mockproxy/mockproxy/proxy"
)

func req(method, rawURL string) *proxy.Request {
	u, _ := url.Parse(rawURL)
	return &proxy.Request{Method: method, URL: u, Header: proxy.Header{}}
}

func TestMethodIsCaseInsensitive(t *testing.T) {
	c := qt.New(t)
	m := proxy.MethodIs("get")
	c.Assert(m.Matches(req("GET", "http://x/")), qt.IsTrue)
	c.Assert(m.Matches(req("POST", "http://x/")), qt.IsFalse)
}

func TestHostnameIsGlob(t *testing.T) {
	c := qt.New(t)
	m := proxy.HostnameIs("*.example.com")
	c.Assert(m.Matches(req("GET", "http://api.example.com/")), qt.IsTrue)
	c.Assert(m.Matches(req("GET", "http://example.com/")), qt.IsFalse)
}

func TestPathMatchesRegexp(t *testing.T) {
	c := qt.New(t)
	m := proxy.PathMatchesRegexp(regexp.MustCompile(`^/users/\d+$`))
	c.Assert(m.Matches(req("GET", "http://x/users/42")), qt.IsTrue)
	c.Assert(m.Matches(req("GET", "http://x/users/abc")), qt.IsFalse)
}

func TestQueryIncludesIgnoresExtraParams(t *testing.T) {
	c := qt.New(t)
	m := proxy.QueryIncludes(map[string]string{"a": "1"})
	c.Assert(m.Matches(req("GET", "http://x/?a=1&b=2")), qt.IsTrue)
	c.Assert(m.Matches(req("GET", "http://x/?a=2")), qt.IsFalse)
}

func TestHeaderIsMatchesAnyValue(t *testing.T) {
	c := qt.New(t)
	r := req("GET", "http://x/")
	r.Header.Add("X-Token", "a")
	r.Header.Add("X-Token", "b")

	m := proxy.HeaderIs("X-Token", "b")
	c.Assert(m.Matches(r), qt.IsTrue)
}

func TestBodyJSONIncludesShallowFragment(t *testing.T) {
	c := qt.New(t)
	r := req("POST", "http://x/")
	r.Body = proxy.NewBody([]byte(`{"name":"alice","age":30}`))

	m := proxy.BodyJSONIncludes(map[string]any{"name": "alice"})
	c.Assert(m.Matches(r), qt.IsTrue)

	m2 := proxy.BodyJSONIncludes(map[string]any{"name": "bob"})
	c.Assert(m2.Matches(r), qt.IsFalse)
}

func TestCookieIsMatchesNamedCookie(t *testing.T) {
	c := qt.New(t)
	r := req("GET", "http://x/")
	r.Header.Set("Cookie", "session=abc123; theme=dark")

	m := proxy.CookieIs("session", "abc123")
	c.Assert(m.Matches(r), qt.IsTrue)

	m2 := proxy.CookieIs("theme", "light")
	c.Assert(m2.Matches(r), qt.IsFalse)
}

func TestAllOfRequiresEveryMatcher(t *testing.T) {
	c := qt.New(t)
	r := req("GET", "http://example.com/users/1")
	m := proxy.AllOf(proxy.MethodIs("GET"), proxy.HostnameIs("example.com"))
	c.Assert(m.Matches(r), qt.IsTrue)

	m2 := proxy.AllOf(proxy.MethodIs("POST"), proxy.HostnameIs("example.com"))
	c.Assert(m2.Matches(r), qt.IsFalse)
}

func TestAnyOfRequiresOneMatcher(t *testing.T) {
	c := qt.New(t)
	r := req("GET", "http://example.com/")
	m := proxy.AnyOf(proxy.MethodIs("POST"), proxy.HostnameIs("example.com"))
	c.Assert(m.Matches(r), qt.IsTrue)
}
