package proxycontext

import (
	"context"
	"net/http"

	"github.com/mockproxy/mockproxy/proxy/internal/session"
)

type proxyContextKey string

// Private context keys.
var (
	connContextKey proxyContextKey = "connContext"
	proxyReqCtxKey proxyContextKey = "proxyReq"
)

// WithConnContext adds a connection context to the given context.
func WithConnContext(ctx context.Context, connCtx *session.Context) context.Context {
	return context.WithValue(ctx, connContextKey, connCtx)
}

// GetConnContext retrieves the connection context from the given context.
func GetConnContext(ctx context.Context) (*session.Context, bool) {
	connCtx, ok := ctx.Value(connContextKey).(*session.Context)
	return connCtx, ok
}

// WithProxyRequest adds the original proxy request to the given context.
func WithProxyRequest(ctx context.Context, req *http.Request) context.Context {
	return context.WithValue(ctx, proxyReqCtxKey, req)
}

// GetProxyRequest retrieves the original proxy request from the given context.
func GetProxyRequest(ctx context.Context) (*http.Request, bool) {
	req, ok := ctx.Value(proxyReqCtxKey).(*http.Request)
	return req, ok
}
