package proxy_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/mockproxy/mockproxy/cert"
	"github.com/mockproxy/mockproxy/proxy"
)

func TestNewProxyAcceptsUnsetStreamLargeBodies(t *testing.T) {
	c := qt.New(t)

	ca, err := cert.NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	p, err := proxy.NewProxy(proxy.Config{Addr: ":0"}, ca)

	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.IsNotNil)
}

func TestNewProxyAcceptsExplicitStreamLargeBodies(t *testing.T) {
	c := qt.New(t)

	ca, err := cert.NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	p, err := proxy.NewProxy(proxy.Config{Addr: ":0", StreamLargeBodies: 1024, Upstream: "http://127.0.0.1:9"}, ca)

	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.IsNotNil)
}

func TestNewProxyAcceptsEmptyConfig(t *testing.T) {
	c := qt.New(t)

	ca, err := cert.NewSelfSignCAMemory()
	c.Assert(err, qt.IsNil)

	p, err := proxy.NewProxy(proxy.Config{}, ca)

	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.IsNotNil)
}
