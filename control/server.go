package control

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"

	"github.com/mockproxy/mockproxy/proxy"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server exposes a Proxy engine's rule registry and event stream over the
// remote-control wire protocol. It implements http.Handler; mount it at
// whatever path a harness wants the control websocket to live at.
type Server struct {
	engine *proxy.Proxy
	logger *slog.Logger
}

// NewServer builds a control Server fronting engine. logger defaults to
// slog.Default() if nil.
func NewServer(engine *proxy.Proxy, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// ServeHTTP upgrades the request to a websocket and serves it until the
// client disconnects: queries and mutations are handled inline, while a
// second goroutine forwards the engine's event stream to the same
// connection for the lifetime of the session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("control websocket upgrade failed", "error", err)
		return
	}
	defer wsConn.Close()

	conn := newConn(wsConn, s.engine, s.logger)

	events, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.readloop()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.writeEvent(ev)
		case <-done:
			return
		}
	}
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.FromString(s)
}
