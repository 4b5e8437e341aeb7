package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends an already encoded payload to a subject or channel.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Broker is a Publisher that can also deliver messages published elsewhere.
// The returned channel is closed once ctx is done.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)
}

// PublishJSON encodes v and hands it to p.
func PublishJSON(ctx context.Context, p Publisher, subject string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.Publish(ctx, subject, payload)
}
