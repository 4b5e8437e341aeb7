package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/messaging"
)

// Relay fans a persisted message out to every instance's hub.
type Relay interface {
	Publish(ctx context.Context, msg *model.ChatMessage) error
}

// LocalRelay delivers straight to this process's hub.
type LocalRelay struct {
	hub *Hub
}

func NewLocalRelay(hub *Hub) *LocalRelay {
	return &LocalRelay{hub: hub}
}

func (r *LocalRelay) Publish(_ context.Context, msg *model.ChatMessage) error {
	frame, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	r.hub.Deliver(msg.Room, frame)
	return nil
}

// RedisRelay publishes messages on a shared channel and delivers whatever
// arrives on it, including its own publications, to the local hub.
type RedisRelay struct {
	broker  messaging.Broker
	channel string
	hub     *Hub
	log     *logger.Logger
}

func NewRedisRelay(broker messaging.Broker, channel string, hub *Hub, l *logger.Logger) *RedisRelay {
	return &RedisRelay{
		broker:  broker,
		channel: channel,
		hub:     hub,
		log:     l.Named("chat-relay"),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, msg *model.ChatMessage) error {
	if err := messaging.PublishJSON(ctx, r.broker, r.channel, msg); err != nil {
		return fmt.Errorf("failed to relay chat message: %w", err)
	}
	return nil
}

// Start subscribes and delivers until ctx is cancelled. It returns once the
// subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context) error {
	ch, err := r.broker.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		for payload := range ch {
			var msg model.ChatMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				r.log.Warn("Dropping undecodable relay payload", "error", err.Error())
				continue
			}
			frame, err := EncodeMessage(&msg)
			if err != nil {
				r.log.Error(err, "Failed to encode relayed message")
				continue
			}
			r.hub.Deliver(msg.Room, frame)
		}
		r.log.Info("Chat relay stopped")
	}()
	return nil
}
