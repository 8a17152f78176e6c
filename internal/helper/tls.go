package helper

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// tlsKeyLogWriter backs GetTLSKeyLogWriter: set once, the first time it's
// asked for, from SSLKEYLOGFILE — so a terminated CONNECT tunnel's traffic
// can be decrypted in Wireshark for debugging.
var tlsKeyLogWriter io.Writer
var tlsKeyLogOnce sync.Once

// GetTLSKeyLogWriter returns the writer terminateTLS's tls.Config uses as
// KeyLogWriter, or nil if SSLKEYLOGFILE isn't set.
func GetTLSKeyLogWriter() io.Writer {
	tlsKeyLogOnce.Do(func() {
		logfile := os.Getenv("SSLKEYLOGFILE")
		if logfile == "" {
			return
		}

		writer, err := os.OpenFile(logfile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			slog.Debug("getTlsKeyLogWriter OpenFile error", "error", err)
			return
		}

		tlsKeyLogWriter = writer
	})
	return tlsKeyLogWriter
}
