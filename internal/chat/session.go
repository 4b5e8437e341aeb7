package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/neuroscan-api/internal/model"
)

// Session is one authenticated websocket connection. Its fields never change
// after NewSession; room membership lives in the Hub.
type Session struct {
	ID       string
	Identity model.Identity
	send     chan []byte
}

func NewSession(identity model.Identity, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultConfig().SendBuffer
	}
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, buffer),
	}
}

// Serve runs the session until the peer goes away. The read pump runs on the
// calling goroutine; the write pump gets its own.
func (s *Service) Serve(ctx context.Context, conn *websocket.Conn, sess *Session) {
	s.hub.Register(sess)
	s.log.Debug("Chat session opened", "session", sess.ID, "email", sess.Identity.Email)

	go s.writePump(conn, sess)
	s.readPump(ctx, conn, sess)

	s.hub.Unregister(sess)
	s.log.Debug("Chat session closed", "session", sess.ID, "email", sess.Identity.Email)
}

func (s *Service) readPump(ctx context.Context, conn *websocket.Conn, sess *Session) {
	defer conn.Close()

	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Chat connection closed unexpectedly", "session", sess.ID, "error", err.Error())
			}
			return
		}
		s.Handle(ctx, sess, data)
	}
}

func (s *Service) writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-sess.send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
