package proxy

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/match"
)

// AnyRequest matches every request. Used as the catch-all at the end of a
// rule set, or on its own for a proxy that mocks everything the same way.
func AnyRequest() Matcher {
	return MatcherFunc(func(*Request) bool { return true })
}

// MethodIs matches requests whose HTTP method equals method, case-insensitive.
func MethodIs(method string) Matcher {
	method = strings.ToUpper(method)
	return MatcherFunc(func(req *Request) bool {
		return strings.ToUpper(req.Method) == method
	})
}

// HostnameIs matches requests whose target hostname equals pattern, using
// shell-style globbing (e.g. "*.example.com").
func HostnameIs(pattern string) Matcher {
	return MatcherFunc(func(req *Request) bool {
		return match.Match(req.Hostname(), pattern)
	})
}

// ProtocolIs matches requests by scheme ("http" or "https").
func ProtocolIs(scheme string) Matcher {
	scheme = strings.ToLower(scheme)
	return MatcherFunc(func(req *Request) bool {
		actual := req.URL.Scheme
		if actual == "" {
			if req.TLS {
				actual = "https"
			} else {
				actual = "http"
			}
		}
		return strings.ToLower(actual) == scheme
	})
}

// PathIs matches requests whose URL path equals path exactly.
func PathIs(path string) Matcher {
	return MatcherFunc(func(req *Request) bool { return req.URL.Path == path })
}

// PathMatches matches requests whose URL path matches the glob pattern.
func PathMatches(pattern string) Matcher {
	return MatcherFunc(func(req *Request) bool { return match.Match(req.URL.Path, pattern) })
}

// PathMatchesRegexp matches requests whose URL path satisfies re.
func PathMatchesRegexp(re *regexp.Regexp) Matcher {
	return MatcherFunc(func(req *Request) bool { return re.MatchString(req.URL.Path) })
}

// QueryIncludes matches requests whose query string contains at least the
// given key/value pairs (other query parameters are ignored).
func QueryIncludes(want map[string]string) Matcher {
	return MatcherFunc(func(req *Request) bool {
		got := req.URL.Query()
		for k, v := range want {
			if got.Get(k) != v {
				return false
			}
		}
		return true
	})
}

// HeaderPresent matches requests that carry a header named name, regardless
// of value.
func HeaderPresent(name string) Matcher {
	return MatcherFunc(func(req *Request) bool {
		return len(req.Header.Values(name)) > 0
	})
}

// HeaderIs matches requests whose header named name has value exactly.
func HeaderIs(name, value string) Matcher {
	return MatcherFunc(func(req *Request) bool {
		return lo.Contains(req.Header.Values(name), value)
	})
}

// BodyEquals matches requests whose raw body equals want byte-for-byte.
// Forces the lazy Body to be buffered.
func BodyEquals(want []byte) Matcher {
	return MatcherFunc(func(req *Request) bool {
		got, err := req.Body.Buffer()
		return err == nil && string(got) == string(want)
	})
}

// BodyMatchesRegexp matches requests whose raw body satisfies re. Forces
// the lazy Body to be buffered.
func BodyMatchesRegexp(re *regexp.Regexp) Matcher {
	return MatcherFunc(func(req *Request) bool {
		got, err := req.Body.Buffer()
		return err == nil && re.Match(got)
	})
}

// BodyJSONIncludes matches requests whose body parses as a JSON object
// containing at least the given key/value fragment (shallow comparison:
// nested objects must match exactly, not merely be subsets). Forces the
// lazy Body to be buffered.
func BodyJSONIncludes(fragment map[string]any) Matcher {
	return MatcherFunc(func(req *Request) bool {
		buf, err := req.Body.Buffer()
		if err != nil {
			return false
		}
		var got map[string]any
		if err := json.Unmarshal(buf, &got); err != nil {
			return false
		}
		for k, want := range fragment {
			gotV, ok := got[k]
			if !ok {
				return false
			}
			gotJSON, err1 := json.Marshal(gotV)
			wantJSON, err2 := json.Marshal(want)
			if err1 != nil || err2 != nil || string(gotJSON) != string(wantJSON) {
				return false
			}
		}
		return true
	})
}

// CookieIs matches requests that carry a cookie named name with value
// exactly, parsed out of the Cookie header the way net/http would.
func CookieIs(name, value string) Matcher {
	return MatcherFunc(func(req *Request) bool {
		hdr := http.Header{"Cookie": req.Header.Values("Cookie")}
		dummy := &http.Request{Header: hdr}
		for _, c := range dummy.Cookies() {
			if c.Name == name {
				return c.Value == value
			}
		}
		return false
	})
}

// CustomMatcher adapts an arbitrary predicate to Matcher.
func CustomMatcher(fn func(req *Request) bool) Matcher {
	return MatcherFunc(fn)
}

// AllOf matches a request only if every given matcher matches it.
func AllOf(matchers ...Matcher) Matcher {
	return MatcherFunc(func(req *Request) bool {
		for _, m := range matchers {
			if !m.Matches(req) {
				return false
			}
		}
		return true
	})
}

// AnyOf matches a request if at least one given matcher matches it.
func AnyOf(matchers ...Matcher) Matcher {
	return MatcherFunc(func(req *Request) bool {
		for _, m := range matchers {
			if m.Matches(req) {
				return true
			}
		}
		return false
	})
}
