package session_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	uuid "github.com/satori/go.uuid"

	"github.com/mockproxy/mockproxy/proxy/internal/session"
)

func TestNewClientConnCreatesInstanceWithID(t *testing.T) {
	c := qt.New(t)

	client := session.NewClientConn(nil)

	c.Assert(client, qt.IsNotNil)
	c.Assert(client.ID, qt.Not(qt.Equals), uuid.UUID{})
	c.Assert(client.TLS, qt.IsFalse)
}

func TestNewContextCreatesContextWithClientConn(t *testing.T) {
	c := qt.New(t)

	client := session.NewClientConn(nil)
	connCtx := session.NewContext(client)

	c.Assert(connCtx, qt.IsNotNil)
	c.Assert(connCtx.ClientConn, qt.Equals, client)
	c.Assert(connCtx.ID(), qt.Equals, client.ID)
}

func TestContextFlowCountStartsAtZero(t *testing.T) {
	c := qt.New(t)

	client := session.NewClientConn(nil)
	connCtx := session.NewContext(client)

	c.Assert(connCtx.FlowCount.Load(), qt.Equals, uint32(0))
}

func TestContextFlowCountCanIncrement(t *testing.T) {
	c := qt.New(t)

	client := session.NewClientConn(nil)
	connCtx := session.NewContext(client)

	connCtx.FlowCount.Store(5)

	c.Assert(connCtx.FlowCount.Load(), qt.Equals, uint32(5))
}
