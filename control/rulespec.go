package control

import "github.com/mockproxy/mockproxy/proxy"

// RuleSpec is the wire-serializable description of a Rule, sent by
// addRule mutations. The engine's Matcher/Handler/Checker are Go
// interfaces with no natural JSON encoding, so the control channel
// exposes only the handful of declarative shapes a remote client
// actually needs; anything requiring a Go callback (CustomMatcher,
// CallbackHandler, StreamHandler) stays in-process only.
type RuleSpec struct {
	Priority int         `json:"priority"`
	Matcher  MatcherSpec `json:"matcher"`
	Handler  HandlerSpec `json:"handler"`
	Checker  CheckerSpec `json:"checker"`
}

type MatcherSpec struct {
	Method   string `json:"method,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Path     string `json:"path,omitempty"`
}

// HandlerKind enumerates the Handler constructors reachable over the
// wire protocol.
type HandlerKind string

const (
	HandlerKindStatic HandlerKind = "static"
	HandlerKindClose  HandlerKind = "close"
	HandlerKindReset  HandlerKind = "reset"
)

type HandlerSpec struct {
	Kind     HandlerKind   `json:"kind"`
	Response *ResponseSpec `json:"response,omitempty"`
}

type ResponseSpec struct {
	StatusCode int                 `json:"statusCode"`
	Header     map[string][]string `json:"header,omitempty"`
	Body       []byte              `json:"body,omitempty"`
}

// CheckerKind enumerates the Checker constructors reachable over the
// wire protocol.
type CheckerKind string

const (
	CheckerKindAlways CheckerKind = "always"
	CheckerKindTimes  CheckerKind = "times"
)

type CheckerSpec struct {
	Kind CheckerKind `json:"kind"`
	N    int         `json:"n,omitempty"`
}

func (m MatcherSpec) toMatcher() proxy.Matcher {
	var matchers []proxy.Matcher
	if m.Method != "" {
		matchers = append(matchers, proxy.MethodIs(m.Method))
	}
	if m.Hostname != "" {
		matchers = append(matchers, proxy.HostnameIs(m.Hostname))
	}
	if m.Path != "" {
		matchers = append(matchers, proxy.PathMatches(m.Path))
	}
	if len(matchers) == 0 {
		return proxy.AnyRequest()
	}
	if len(matchers) == 1 {
		return matchers[0]
	}
	return proxy.AllOf(matchers...)
}

func (h HandlerSpec) toHandler() (proxy.Handler, error) {
	switch h.Kind {
	case HandlerKindStatic:
		resp := &proxy.Response{Header: proxy.Header{}}
		if h.Response != nil {
			resp.StatusCode = h.Response.StatusCode
			resp.Body = h.Response.Body
			for k, v := range h.Response.Header {
				resp.Header[k] = v
			}
		}
		return proxy.StaticHandler(resp), nil
	case HandlerKindClose:
		return proxy.CloseHandler(), nil
	case HandlerKindReset:
		return proxy.ResetHandler(), nil
	default:
		return nil, errUnknownHandlerKind
	}
}

func (c CheckerSpec) toChecker() proxy.Checker {
	switch c.Kind {
	case CheckerKindTimes:
		return proxy.TimesChecker{N: c.N}
	default:
		return proxy.AlwaysChecker{}
	}
}

// toRule builds a *proxy.Rule from the wire spec.
func (s RuleSpec) toRule() (*proxy.Rule, error) {
	handler, err := s.Handler.toHandler()
	if err != nil {
		return nil, err
	}
	return proxy.NewRule(s.Matcher.toMatcher(), handler,
		proxy.WithPriority(s.Priority),
		proxy.WithChecker(s.Checker.toChecker()),
	), nil
}
