package proxy

// Justification for whitebox testing: dispatch is unexported because it
// operates on the engine's internal HandlerContext plumbing; exercising
// match order, Checker gating, and event publication directly is much
// clearer than reconstructing them through the full HTTP front-end.

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mockproxy/mockproxy/cert"
)

func newTestProxy(t *testing.T) *Proxy {
	t.Helper()
	ca, err := cert.NewSelfSignCAMemory()
	if err != nil {
		t.Fatalf("new ca: %v", err)
	}
	p, err := NewProxy(Config{Addr: ":0"}, ca)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	return p
}

func newTestRequest(method, rawURL string) *Request {
	u, _ := url.Parse(rawURL)
	return &Request{Method: method, URL: u, Header: Header{}}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	p.AddRule(NewRule(HostnameIs("example.com"), StaticHandler(&Response{StatusCode: 200, Header: Header{}})))
	p.AddRule(NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 418, Header: Header{}})))

	req := newTestRequest("GET", "http://example.com/a")
	resp, err := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, 200)
}

func TestDispatchNoMatchReturns503(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	p.AddRule(NewRule(HostnameIs("only-this.invalid"), StaticHandler(&Response{StatusCode: 200, Header: Header{}})))

	req := newTestRequest("GET", "http://elsewhere.invalid/a")
	resp, err := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, noMatchStatusCode)
}

func TestDispatchOnceCheckerStopsAfterFirstMatch(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	rule := NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}}), WithChecker(OnceChecker()))
	p.AddRule(rule)
	p.AddRule(NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 418, Header: Header{}})))

	req := newTestRequest("GET", "http://example.com/a")

	resp1, _ := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})
	resp2, _ := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(resp1.StatusCode, qt.Equals, 200)
	c.Assert(resp2.StatusCode, qt.Equals, 418)
}

func TestResetReplaysOnceChecker(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	rule := NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}}), WithChecker(OnceChecker()))
	p.AddRule(rule)

	req := newTestRequest("GET", "http://example.com/a")
	_, _ = p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})
	p.Reset()
	resp, _ := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(resp.StatusCode, qt.Equals, 200)
}

func TestPriorityOrdersAheadOfInsertion(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	p.AddRule(NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 418, Header: Header{}})))
	p.AddRule(NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}}), WithPriority(10)))

	req := newTestRequest("GET", "http://example.com/a")
	resp, _ := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(resp.StatusCode, qt.Equals, 200)
}

func TestMockedEndpointsReportsSeenCount(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)

	rule := NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}}))
	p.AddRule(rule)

	req := newTestRequest("GET", "http://example.com/a")
	_, _ = p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})
	_, _ = p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	endpoints := p.MockedEndpoints()
	c.Assert(endpoints, qt.HasLen, 1)
	c.Assert(endpoints[0].Seen, qt.Equals, 2)
}

func TestSubscribeReceivesRequestAndResponseEvents(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)
	p.AddRule(NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}})))

	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	req := newTestRequest("GET", "http://example.com/a")
	_, _ = p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	// Two EventRequestReceived fire per dispatch: a headers-received view
	// before the body is forced, then a completed-request view once the
	// body is known, immediately before the outcome event.
	first := <-events
	second := <-events
	third := <-events

	c.Assert(first.Kind, qt.Equals, EventRequestReceived)
	c.Assert(second.Kind, qt.Equals, EventRequestReceived)
	c.Assert(third.Kind, qt.Equals, EventResponseCompleted)
}

func TestDispatchHandlerErrorAbortsWith500(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)
	boom := errors.New("callback exploded")
	p.AddRule(NewRule(AnyRequest(), HandlerFunc(func(context.Context, *Request, *HandlerContext) (*Response, error) {
		return nil, boom
	})))

	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	req := newTestRequest("GET", "http://example.com/a")
	resp, err := p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusInternalServerError)

	<-events // headers-received
	<-events // completed-request
	outcome := <-events
	c.Assert(outcome.Kind, qt.Equals, EventRequestAborted)
}

func TestRecordMatchKeepsSeenRequests(t *testing.T) {
	c := qt.New(t)
	p := newTestProxy(t)
	rule := NewRule(AnyRequest(), StaticHandler(&Response{StatusCode: 200, Header: Header{}}))
	p.AddRule(rule)

	req := newTestRequest("GET", "http://example.com/foo")
	_, _ = p.dispatch(context.Background(), req, &HandlerContext{dialUpstream: noDial})

	endpoints := p.MockedEndpoints()
	c.Assert(endpoints, qt.HasLen, 1)
	c.Assert(endpoints[0].SeenRequests, qt.HasLen, 1)
	c.Assert(endpoints[0].SeenRequests[0].Method, qt.Equals, "GET")
	c.Assert(endpoints[0].SeenRequests[0].URL.Path, qt.Equals, "/foo")
}

func noDial(context.Context) (net.Conn, error) {
	return nil, nil
}
