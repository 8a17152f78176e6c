package control

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mockproxy/mockproxy/proxy"
)

// concurrentConn serializes writes to a single websocket connection
// (gorilla's Conn forbids concurrent writers) while the read loop and the
// event-forwarding goroutine both want to send frames independently.
type concurrentConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger

	engine *proxy.Proxy
}

func newConn(c *websocket.Conn, engine *proxy.Proxy, logger *slog.Logger) *concurrentConn {
	return &concurrentConn{conn: c, engine: engine, logger: logger}
}

func (c *concurrentConn) writeMessage(m *message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, m.toBytes()); err != nil {
		c.logger.Debug("write control message failed", "error", err)
	}
}

func (c *concurrentConn) writeEvent(ev proxy.Event) {
	var t messageType
	var payload any

	switch ev.Kind {
	case proxy.EventRequestReceived:
		t, payload = typeEventRequestReceived, ev.Request
	case proxy.EventResponseCompleted:
		t, payload = typeEventResponseCompleted, struct {
			Request  *proxy.Request  `json:"request"`
			Response *proxy.Response `json:"response"`
		}{ev.Request, ev.Response}
	case proxy.EventRequestAborted:
		t, payload = typeEventRequestAborted, ev.Request
	case proxy.EventFailedTLSRequest:
		t, payload = typeEventFailedTLSRequest, ev.TLSFailure
	default:
		return
	}

	msg, err := newMessage(t, 0, payload)
	if err != nil {
		c.logger.Debug("encode event failed", "error", err)
		return
	}
	c.writeMessage(msg)
}

func (c *concurrentConn) replyError(requestID uint32, err error) {
	msg, encErr := newMessage(typeErrorReply, requestID, map[string]string{"error": err.Error()})
	if encErr != nil {
		return
	}
	c.writeMessage(msg)
}

func (c *concurrentConn) replyOK(requestID uint32, v any) {
	msg, err := newMessage(typeReply, requestID, v)
	if err != nil {
		c.replyError(requestID, err)
		return
	}
	c.writeMessage(msg)
}

// readloop handles queries and mutations until the connection closes.
// Events are pushed independently by the Server's subscription forwarder.
func (c *concurrentConn) readloop() {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug("read control message failed", "error", err)
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		msg, err := parseMessage(data)
		if err != nil {
			c.logger.Debug("parse control message failed", "error", err)
			continue
		}

		c.handle(msg)
	}
}

func (c *concurrentConn) handle(msg *message) {
	switch msg.mType {
	case typeQueryMockedEndpoints:
		c.replyOK(msg.requestID, c.engine.MockedEndpoints())

	case typeQueryMockedEndpoint:
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.payload, &req); err != nil {
			c.replyError(msg.requestID, errInvalidMessage)
			return
		}
		id, err := parseUUID(req.ID)
		if err != nil {
			c.replyError(msg.requestID, err)
			return
		}
		endpoint, ok := c.engine.MockedEndpoint(id)
		if !ok {
			c.replyError(msg.requestID, errEndpointNotFound)
			return
		}
		c.replyOK(msg.requestID, endpoint)

	case typeMutationAddRule:
		var spec RuleSpec
		if err := json.Unmarshal(msg.payload, &spec); err != nil {
			c.replyError(msg.requestID, errInvalidMessage)
			return
		}
		rule, err := spec.toRule()
		if err != nil {
			c.replyError(msg.requestID, err)
			return
		}
		c.engine.AddRule(rule)
		c.replyOK(msg.requestID, map[string]string{"id": rule.ID.String()})

	case typeMutationReset:
		c.engine.Reset()
		c.replyOK(msg.requestID, map[string]bool{"ok": true})

	default:
		c.replyError(msg.requestID, errInvalidMessage)
	}
}
