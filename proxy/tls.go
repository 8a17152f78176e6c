package proxy

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/mockproxy/mockproxy/cert"
	"github.com/mockproxy/mockproxy/internal/helper"
)

// terminateTLS performs the server side of a TLS handshake over raw,
// minting a leaf certificate for whatever SNI name the client requests.
// The returned *tls.Conn replaces raw for the remainder of the CONNECT
// tunnel; hello is retained so the engine can record which hostname the
// client asked for even if the decrypted request later targets something
// else (e.g. a stale Host header).
func terminateTLS(raw net.Conn, ca cert.CA) (*tls.Conn, *tls.ClientHelloInfo, error) {
	var hello *tls.ClientHelloInfo

	cfg := &tls.Config{
		GetCertificate: func(info *tls.ClientHelloInfo) (*tls.Certificate, error) {
			hello = info
			name := info.ServerName
			leaf, err := ca.GetCert(name)
			if err != nil {
				return nil, fmt.Errorf("proxy: mint leaf for %q: %w", name, err)
			}
			return leaf, nil
		},
		// Set only when SSLKEYLOGFILE is in the environment, so a session
		// run under Wireshark can decrypt the terminated TLS traffic.
		KeyLogWriter: helper.GetTLSKeyLogWriter(),
	}

	tlsConn := tls.Server(raw, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, hello, fmt.Errorf("proxy: tls handshake: %w", err)
	}
	return tlsConn, hello, nil
}
