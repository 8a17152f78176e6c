package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// noMatchResponse is what the pipeline writes when no rule matches a
// request. 503 rather than 404 or 502: the proxy isn't saying the target
// doesn't exist or is unreachable, it's saying none of the configured
// mocks apply, which is closer in meaning to "service unavailable" than
// any other stock status.
const noMatchStatusCode = 503

// dispatch walks the registry snapshot in order and runs the first rule
// whose Matcher and Checker both accept req. It returns the Response to
// write to the client, or nil if the matched Handler already dealt with the
// client itself (Close/Reset/Timeout take over the raw connection, Stream
// writes through hc.Writer). A panic inside the Handler is recovered and
// treated like a Handler error.
//
// Two EventRequestReceived events fire per request: the first as soon as
// the request line and headers are parsed, with the body not yet read; the
// second after rule selection, once the body has been buffered (up to its
// limit), right before the matched (or unmatched) response is produced.
// The body is buffered for every request, whether or not the chosen rule
// looks at it.
func (p *Proxy) dispatch(ctx context.Context, req *Request, hc *HandlerContext) (*Response, error) {
	req.Timing.RequestStart = time.Now()
	p.events.Publish(Event{Kind: EventRequestReceived, Request: req})

	var matched *Rule
	for _, rule := range p.registry.Snapshot() {
		if !rule.Matcher.Matches(req) {
			continue
		}
		seen := p.registry.Seen(rule.ID)
		if !rule.Checker.ShouldApply(seen) {
			continue
		}
		matched = rule
		break
	}

	_, _ = req.Body.Buffer()
	p.events.Publish(Event{Kind: EventRequestReceived, Request: req})

	if matched == nil {
		resp := &Response{
			StatusCode: noMatchStatusCode,
			Header:     Header{},
			Body:       []byte("no mock rule matched this request"),
		}
		p.events.Publish(Event{Kind: EventResponseCompleted, Request: req, Response: resp})
		return resp, nil
	}

	p.registry.RecordMatch(matched.ID, req)
	req.Timing.RequestEnd = time.Now()

	resp, err := func() (resp *Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("proxy: handler panicked: %v", r)
			}
		}()
		return matched.Handler.Handle(ctx, req, hc)
	}()
	req.Timing.ResponseEnd = time.Now()

	if err != nil {
		p.logger.Error("handler error", "error", err, "rule", matched.ID)
		p.events.Publish(Event{Kind: EventRequestAborted, Request: req})
		return &Response{
			StatusCode: http.StatusInternalServerError,
			Header:     Header{},
			Body:       []byte(err.Error()),
		}, nil
	}
	if resp != nil {
		p.events.Publish(Event{Kind: EventResponseCompleted, Request: req, Response: resp})
	} else {
		p.events.Publish(Event{Kind: EventRequestAborted, Request: req})
	}
	return resp, nil
}
