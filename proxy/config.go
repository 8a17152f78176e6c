package proxy

import "log/slog"

// Config holds the proxy engine's configuration.
type Config struct {
	// Addr is the address the HTTP front-end listens on, e.g. ":8080".
	// Binds to exactly this address, failing if it's already in use. If
	// empty, Start instead allocates a free port from [StartPort, EndPort)
	// via the port allocator.
	Addr string

	// StartPort and EndPort bound the range Start scans for a free port
	// when Addr is empty. NewProxy replaces a zero or negative value with
	// 8000 and 9000 respectively.
	StartPort int
	EndPort   int

	// StreamLargeBodies caps how many bytes of a request body are buffered
	// into memory; a larger request body is left unbuffered and can still
	// be read through Body.AsStream. Response bodies are not limited by it.
	// Defaults to 5MB.
	StreamLargeBodies int64

	// InsecureSkipVerify disables TLS certificate verification when
	// dialing upstream origins or an upstream proxy.
	InsecureSkipVerify bool

	// Upstream, if set, is a static upstream proxy URL every Passthrough
	// dial goes through (overridden per-request by SetUpstreamProxy).
	Upstream string

	// InstanceName labels this engine instance in logs; defaults to
	// "proxy-<port>" if empty. The instance ID is generated independently
	// of it.
	InstanceName string

	// Logger, if set, is used instead of an instance-scoped default
	// logger built from Addr/InstanceName.
	Logger *slog.Logger

	// LogFilePath, if set, routes the instance-scoped default logger's
	// output to this file (JSON-encoded) instead of the global slog
	// logger, useful when several instances run in one process. Ignored
	// if Logger is set.
	LogFilePath string
}
