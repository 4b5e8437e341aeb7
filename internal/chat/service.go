// Package chat implements two-person doctor/patient rooms over websockets.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	apperrors "github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

// Frame events.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

const saveTimeout = 10 * time.Second

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type sendPayload struct {
	Room        string `json:"room"`
	MessageText string `json:"message_text"`
}

// EncodeMessage builds the receive_message frame for msg.
func EncodeMessage(msg *model.ChatMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat message: %w", err)
	}
	return json.Marshal(Frame{Event: EventReceiveMessage, Data: data})
}

type Config struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	// HistoryLimit caps History to the newest messages of a room. Zero
	// returns the whole room.
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:      64,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageBytes: 8 << 10,
	}
}

type Service struct {
	hub      *Hub
	messages repository.ChatRepository
	relay    Relay
	cfg      Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService wires the chat service. A nil relay delivers locally.
func NewService(hub *Hub, messages repository.ChatRepository, relay Relay, cfg Config, l *logger.Logger, m *metrics.Metrics) *Service {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if relay == nil {
		relay = NewLocalRelay(hub)
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if l == nil {
		l = logger.FromGlobal()
	}
	return &Service{
		hub:      hub,
		messages: messages,
		relay:    relay,
		cfg:      cfg,
		log:      l.Named("chat"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Config() Config { return s.cfg }

// NewSession creates a session sized by the service's buffer setting.
func (s *Service) NewSession(identity model.Identity) *Session {
	return NewSession(identity, s.cfg.SendBuffer)
}

// Handle dispatches one client frame. Malformed frames are ignored.
func (s *Service) Handle(ctx context.Context, sess *Session, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.log.Debug("Ignoring malformed frame", "session", sess.ID)
		return
	}

	switch f.Event {
	case EventJoinRoom:
		var p roomPayload
		if json.Unmarshal(f.Data, &p) == nil {
			s.Join(sess, p.Room)
		}
	case EventLeaveRoom:
		var p roomPayload
		if json.Unmarshal(f.Data, &p) == nil {
			s.Leave(sess, p.Room)
		}
	case EventSendMessage:
		var p sendPayload
		if json.Unmarshal(f.Data, &p) != nil {
			return
		}
		if _, err := s.Send(ctx, sess, p.Room, p.MessageText); err != nil {
			s.log.Error(err, "Failed to send chat message", "session", sess.ID, "room", p.Room)
		}
	default:
		s.log.Debug("Ignoring unknown event", "session", sess.ID, "event", f.Event)
	}
}

// Join adds the session to room when its caller is a participant. Anyone
// else is dropped without a reply.
func (s *Service) Join(sess *Session, room string) bool {
	r, ok := s.authorize(sess, room, EventJoinRoom)
	if !ok {
		return false
	}
	s.hub.Join(sess, r.String())
	return true
}

func (s *Service) Leave(sess *Session, room string) {
	s.hub.Leave(sess, room)
}

// Send persists text and relays it to the room. Non-participants get a nil
// message and nil error; nothing is written for them.
func (s *Service) Send(ctx context.Context, sess *Session, room, text string) (*model.ChatMessage, error) {
	r, ok := s.authorize(sess, room, EventSendMessage)
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	msg := &model.ChatMessage{
		Room:        r.String(),
		SenderEmail: sess.Identity.Email,
		SenderType:  sess.Identity.Role,
		MessageText: text,
		Timestamp:   s.now(),
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.messages.Save(saveCtx, msg); err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	s.metrics.ChatMessages.Inc()

	if err := s.relay.Publish(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// History returns the room's messages, oldest first.
func (s *Service) History(ctx context.Context, caller model.Identity, room string) ([]*model.ChatMessage, error) {
	r, err := ParseRoom(room)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid room id", err)
	}
	if !r.Has(caller.Email) {
		return nil, apperrors.Forbidden("You are not a participant in this room")
	}

	msgs, err := s.messages.History(ctx, r.String(), s.cfg.HistoryLimit)
	if errors.Is(err, repository.ErrNotFound) {
		return []*model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, repository.Classify(err)
	}
	return msgs, nil
}

func (s *Service) authorize(sess *Session, room, event string) (Room, bool) {
	r, err := ParseRoom(room)
	if err == nil && r.Has(sess.Identity.Email) {
		return r, true
	}
	s.metrics.ChatDeniedRequests.WithLabelValues(event).Inc()
	s.log.Warn("Denied chat request",
		"session", sess.ID,
		"email", sess.Identity.Email,
		"event", event,
		"room", room,
	)
	return Room{}, false
}
