package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/neuroscan-api/pkg/messaging"
)

// Publisher publishes domain events on NATS subjects under a common prefix.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *zerolog.Logger
}

var _ messaging.Broker = (*Publisher)(nil)

func Connect(url, prefix string, logger *zerolog.Logger) (*Publisher, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	nc, err := nats.Connect(url,
		nats.Name("neuroscan-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{conn: nc, prefix: prefix, logger: logger}, nil
}

func (p *Publisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

// Publish sends payload and flushes so a broken connection surfaces as an
// error instead of a silently buffered message.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte) error {
	subj := p.subject(subject)
	if err := p.conn.Publish(subj, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subj, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", subj, err)
	}
	p.logger.Debug().Str("subject", subj).Msg("Published event")
	return nil
}

func (p *Publisher) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	out := make(chan []byte, 64)
	msgs := make(chan *nats.Msg, 64)

	sub, err := p.conn.ChanSubscribe(p.subject(subject), msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	go func() {
		defer func() {
			_ = sub.Unsubscribe()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				select {
				case out <- msg.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
