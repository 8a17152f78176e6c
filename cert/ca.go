// Package cert implements the dynamic certificate authority used to
// terminate TLS for intercepted connections. A single root key/certificate
// pair is loaded (or generated) once; leaf certificates are minted on demand
// for whatever hostname a client's ClientHello asks for, and cached for the
// life of the instance.
package cert

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// CA mints TLS certificates for intercepted hostnames.
type CA interface {
	// GetRootCA returns the instance's root certificate, e.g. so it can be
	// installed into a client trust store for tests.
	GetRootCA() *x509.Certificate

	// GetCert returns a leaf certificate for commonName, generating and
	// caching one on first use.
	GetCert(commonName string) (*tls.Certificate, error)
}

const (
	leafValidityBefore = 24 * time.Hour
	leafValidityAfter  = 365 * 24 * time.Hour
	rootValidityAfter  = 10 * 365 * 24 * time.Hour
	rootKeyBits        = 2048
	leafKeyBits        = 2048
	wildcardInvalid    = "*.invalid"
	leafCacheSize      = 4096 // effectively unbounded for a test-lifetime instance
)

// hostnameRe matches the characters GetCert will accept in a hostname or SNI
// value. Anything else falls back to a wildcard certificate for *.invalid
// rather than failing the handshake.
var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9.\-*]+$`)

// SelfSignCA is a CA backed by a self-signed root certificate, generated (or
// loaded from disk) once at construction time.
type SelfSignCA struct {
	path string // storage directory; "" disables persistence

	rootCert *x509.Certificate
	rootKey  *rsa.PrivateKey
	rootPEM  []byte // PEM-encoded root certificate, for saveTo/export

	cache     *lru.Cache
	cacheMu   sync.Mutex
	inflight  singleflight.Group
	serialCtr atomic.Uint64
}

// NewSelfSignCA loads a root CA from path, generating and persisting one if
// none exists yet. An empty path uses a default per-user store directory.
func NewSelfSignCA(path string) (CA, error) {
	storePath, err := getStorePath(path)
	if err != nil {
		return nil, fmt.Errorf("cert: resolve store path: %w", err)
	}

	ca := &SelfSignCA{path: storePath, cache: lru.New(leafCacheSize)}

	if err := ca.loadOrGenerateRoot(); err != nil {
		return nil, fmt.Errorf("cert: load or generate root: %w", err)
	}
	return ca, nil
}

// NewSelfSignCAMemory generates a fresh root CA entirely in memory, without
// touching disk. Intended for short-lived test instances.
func NewSelfSignCAMemory() (CA, error) {
	ca := &SelfSignCA{cache: lru.New(leafCacheSize)}
	if err := ca.generateRoot(); err != nil {
		return nil, fmt.Errorf("cert: generate root: %w", err)
	}
	return ca, nil
}

func (ca *SelfSignCA) GetRootCA() *x509.Certificate {
	return ca.rootCert
}

// GetCert returns a cached leaf certificate for commonName, minting one if
// this is the first request for that name. Concurrent requests for the same
// name are deduplicated via singleflight so certificate generation (which
// happens off the cache lock) only runs once.
func (ca *SelfSignCA) GetCert(commonName string) (*tls.Certificate, error) {
	name := commonName
	if !hostnameRe.MatchString(name) || name == "" {
		name = wildcardInvalid
	}

	ca.cacheMu.Lock()
	if v, ok := ca.cache.Get(name); ok {
		ca.cacheMu.Unlock()
		leaf, ok := v.(*tls.Certificate)
		if !ok {
			return nil, errors.New("cert: cached value is not a tls.Certificate")
		}
		return leaf, nil
	}
	ca.cacheMu.Unlock()

	v, err := ca.inflight.Do(name, func() (any, error) {
		return ca.mintLeaf(name)
	})
	if err != nil {
		return nil, err
	}
	leaf, ok := v.(*tls.Certificate)
	if !ok {
		return nil, errors.New("cert: minted value is not a tls.Certificate")
	}

	ca.cacheMu.Lock()
	ca.cache.Add(name, leaf)
	ca.cacheMu.Unlock()

	return leaf, nil
}

func (ca *SelfSignCA) nextSerial() *big.Int {
	n := ca.serialCtr.Add(1)
	// Mix in randomness so restarts of the generator can't collide with an
	// earlier instance's serials on disk.
	r, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		r = big.NewInt(0)
	}
	return new(big.Int).Add(r, big.NewInt(int64(n)))
}

func (ca *SelfSignCA) mintLeaf(name string) (*tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return nil, fmt.Errorf("cert: generate leaf key: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: ca.nextSerial(),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    now.Add(-leafValidityBefore),
		NotAfter:     now.Add(leafValidityAfter),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(name); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	} else {
		tmpl.DNSNames = []string{name}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.rootCert, &key.PublicKey, ca.rootKey)
	if err != nil {
		return nil, fmt.Errorf("cert: sign leaf: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, ca.rootCert.Raw},
		PrivateKey:  key,
		Leaf:        ca.rootCert,
	}, nil
}

func (ca *SelfSignCA) generateRoot() error {
	key, err := rsa.GenerateKey(rand.Reader, rootKeyBits)
	if err != nil {
		return fmt.Errorf("generate root key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate root serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "mockproxy root CA", Organization: []string{"mockproxy"}},
		NotBefore:             now.Add(-leafValidityBefore),
		NotAfter:              now.Add(rootValidityAfter),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create root certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("parse root certificate: %w", err)
	}

	ca.rootCert = cert
	ca.rootKey = key
	ca.rootPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return nil
}

// loadOrGenerateRoot loads a root cert/key pair from ca.path if present,
// otherwise generates and persists a new one.
func (ca *SelfSignCA) loadOrGenerateRoot() error {
	certPath := ca.caFile()
	keyPath := ca.keyFile()

	certPEM, certErr := os.ReadFile(certPath)
	keyPEM, keyErr := os.ReadFile(keyPath)
	if certErr == nil && keyErr == nil {
		return ca.loadFromPEM(certPEM, keyPEM)
	}

	if err := ca.generateRoot(); err != nil {
		return err
	}
	return ca.persist()
}

func (ca *SelfSignCA) loadFromPEM(certPEM, keyPEM []byte) error {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return errors.New("cert: malformed root certificate PEM")
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return errors.New("cert: malformed root key PEM")
	}

	parsedCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse root certificate: %w", err)
	}
	parsedKey, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return fmt.Errorf("parse root key: %w", err)
	}

	ca.rootCert = parsedCert
	ca.rootKey = parsedKey
	ca.rootPEM = certPEM
	return nil
}

func (ca *SelfSignCA) persist() error {
	if ca.path == "" {
		return nil
	}
	if err := os.MkdirAll(ca.path, 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	var buf bytes.Buffer
	if err := ca.saveTo(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(ca.caFile(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write root certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(ca.rootKey)})
	if err := os.WriteFile(ca.keyFile(), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write root key: %w", err)
	}
	return nil
}

// saveTo writes the PEM-encoded root certificate to w.
func (ca *SelfSignCA) saveTo(w io.Writer) error {
	_, err := w.Write(ca.rootPEM)
	return err
}

func (ca *SelfSignCA) caFile() string {
	return filepath.Join(ca.path, "mockproxy-ca-cert.pem")
}

func (ca *SelfSignCA) keyFile() string {
	return filepath.Join(ca.path, "mockproxy-ca-key.pem")
}

// getStorePath resolves path to a usable store directory, defaulting to a
// per-user config directory when path is empty.
func getStorePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mockproxy"), nil
}
