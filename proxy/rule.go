package proxy

import (
	"context"
	"net"
	"net/http"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Matcher reports whether a Request should be dispatched to the Handler it
// is paired with in a Rule. Matchers must not mutate req.
type Matcher interface {
	Matches(req *Request) bool
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(req *Request) bool

// Matches implements Matcher.
func (f MatcherFunc) Matches(req *Request) bool { return f(req) }

// HandlerContext gives a Handler everything it needs to produce a response
// beyond the plain Request/Response record: the response writer (for
// Stream), the hijacked client connection (for Close/Reset/Timeout), and a
// way to dial the real origin (for Passthrough).
type HandlerContext struct {
	// Writer is the underlying HTTP response writer for this request. Most
	// handlers never touch it directly; the pipeline writes the Response a
	// Handler returns. Stream handlers use it to write a body incrementally.
	Writer http.ResponseWriter

	// Raw is the hijacked client connection, non-nil only once a handler
	// that needs it (Close, Reset, Timeout) has requested it via Hijack.
	raw net.Conn

	// dialUpstream dials the real origin server for the request's host,
	// honoring whatever upstream proxy configuration the engine was given.
	dialUpstream func(ctx context.Context) (net.Conn, error)
}

// Hijack takes over the raw client connection, bypassing net/http's
// response-writing machinery entirely. Used by handlers that need to close
// or reset the connection without writing a well-formed HTTP response.
func (hc *HandlerContext) Hijack() (net.Conn, error) {
	if hc.raw != nil {
		return hc.raw, nil
	}
	hj, ok := hc.Writer.(http.Hijacker)
	if !ok {
		return nil, errNotHijackable
	}
	raw, _, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	hc.raw = raw
	return raw, nil
}

// DialUpstream opens a fresh connection to the request's real origin.
// Connection reuse is deliberately not offered: each Passthrough dispatch
// gets its own connection, closed when the response has been relayed.
func (hc *HandlerContext) DialUpstream(ctx context.Context) (net.Conn, error) {
	return hc.dialUpstream(ctx)
}

// Handler produces the outcome for a matched Request. Returning a non-nil
// Response causes the pipeline to write it to the client; returning a nil
// Response with a nil error means the Handler already took care of the
// client connection itself (Close, Reset, Timeout and Stream do this).
type Handler interface {
	Handle(ctx context.Context, req *Request, hc *HandlerContext) (*Response, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request, hc *HandlerContext) (*Response, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req *Request, hc *HandlerContext) (*Response, error) {
	return f(ctx, req, hc)
}

// Checker decides whether a Rule is still eligible to match, given how many
// times it has already fired. Checkers are consulted after a Matcher
// already returned true; a Checker returning false makes the pipeline skip
// the rule and keep looking, as if it had not matched at all.
type Checker interface {
	ShouldApply(seen int) bool
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(seen int) bool

// ShouldApply implements Checker.
func (f CheckerFunc) ShouldApply(seen int) bool { return f(seen) }

// AlwaysChecker matches on every dispatch, regardless of how many times the
// rule has already fired.
type AlwaysChecker struct{}

// ShouldApply implements Checker.
func (AlwaysChecker) ShouldApply(int) bool { return true }

// TimesChecker matches up to N times, then stops applying.
type TimesChecker struct{ N int }

// ShouldApply implements Checker.
func (c TimesChecker) ShouldApply(seen int) bool { return seen < c.N }

// OnceChecker matches exactly once.
func OnceChecker() Checker { return TimesChecker{N: 1} }

// ThriceChecker matches exactly three times.
func ThriceChecker() Checker { return TimesChecker{N: 3} }

// Rule pairs a Matcher and Handler under a completion Checker. The registry
// orders rules by descending Priority, then by the order they were added;
// the pipeline walks them in that order and dispatches to the first one
// whose Matcher and Checker both agree.
type Rule struct {
	ID        uuid.UUID
	Matcher   Matcher
	Handler   Handler
	Checker   Checker
	CreatedAt time.Time

	// Priority orders rules regardless of insertion order: a higher value
	// is consulted first, so a positive value moves a rule ahead of
	// priority-0 rules and a negative one behind them. Rules of equal
	// priority keep insertion order (first match wins among ties).
	Priority int
}

// RuleOption customizes a Rule at construction time.
type RuleOption func(*Rule)

// WithChecker overrides the default AlwaysChecker.
func WithChecker(c Checker) RuleOption {
	return func(r *Rule) { r.Checker = c }
}

// WithPriority sets the rule's dispatch priority; higher values are tried
// first.
func WithPriority(p int) RuleOption {
	return func(r *Rule) { r.Priority = p }
}

// NewRule builds a Rule from a Matcher and Handler, defaulting to a Checker
// that always applies.
func NewRule(matcher Matcher, handler Handler, opts ...RuleOption) *Rule {
	r := &Rule{
		ID:        uuid.NewV4(),
		Matcher:   matcher,
		Handler:   handler,
		Checker:   AlwaysChecker{},
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
