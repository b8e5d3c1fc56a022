package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// TransportConfig tunes the websocket transport.
type TransportConfig struct {
	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64

	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration

	// PingInterval is how often the server pings the client; the read
	// deadline is a bit over twice this.
	PingInterval time.Duration
}

// DefaultTransportConfig returns the standard transport tuning.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxMessageSize: 2 << 20,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// Transport serves the hub over websocket connections. Each connection
// gets one reader and one writer goroutine; the writer drains the
// session outbox so hub broadcasts never touch the socket directly.
type Transport struct {
	hub      *Hub
	cfg      TransportConfig
	upgrader websocket.Upgrader
}

// NewTransport creates a websocket transport for the hub. Origin checks
// are left to the CORS layer in front of the upgrade route.
func NewTransport(h *Hub, cfg TransportConfig) *Transport {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultTransportConfig().MaxMessageSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultTransportConfig().WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultTransportConfig().PingInterval
	}
	return &Transport{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and runs the session until the transport
// closes. The principal must already be authenticated by the caller.
func (t *Transport) Serve(c echo.Context, userID, username string) error {
	conn, err := t.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s := t.hub.Connect(userID, username)
	go t.writeLoop(conn, s)
	t.readLoop(c, conn, s)
	return nil
}

// readLoop consumes inbound frames and dispatches them until the
// connection errors or closes, then performs leave exactly once.
func (t *Transport) readLoop(c echo.Context, conn *websocket.Conn, s *Session) {
	defer func() {
		t.hub.Disconnect(s)
		conn.Close()
	}()

	readDeadline := t.cfg.PingInterval*2 + 10*time.Second
	conn.SetReadLimit(t.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	ctx := c.Request().Context()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.hub.log.WithError(err).WithField("session_id", s.ID).Debug("websocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		t.dispatch(ctx, s, &msg)
	}
}

// dispatch routes one inbound message. Malformed or unexpected messages
// produce an error reply without terminating the session.
func (t *Transport) dispatch(ctx context.Context, s *Session, msg *Message) {
	switch msg.Kind {
	case KindJoinDocument:
		if msg.DocumentID == "" {
			s.send(errorMessage("documentId is required"))
			return
		}
		t.hub.Join(ctx, s, msg.DocumentID)
	case KindLeaveDocument:
		t.hub.LeaveRoom(s)
	case KindCursorUpdate:
		t.hub.UpdateCursor(s, msg.Position, msg.Selection, msg.Username)
	case KindTypingStart:
		t.hub.SetTyping(s, true)
	case KindTypingStop:
		t.hub.SetTyping(s, false)
	case KindDocumentChange:
		if msg.Change == nil {
			s.send(errorMessage("change payload is required"))
			return
		}
		t.hub.BroadcastContent(ctx, s, msg.Change.NewContent)
	default:
		s.send(errorMessage("unknown message kind: " + msg.Kind))
	}
}

// RoomCount reports the number of live rooms, for health details.
func (t *Transport) RoomCount() int {
	return t.hub.RoomCount()
}

// writeLoop drains the session outbox onto the socket and keeps the
// connection alive with pings. It exits when the outbox closes.
func (t *Transport) writeLoop(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.Outbox():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				t.hub.log.WithError(err).WithField("session_id", s.ID).Debug("websocket write failed")
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout)); err != nil {
				conn.Close()
				return
			}
		}
	}
}
