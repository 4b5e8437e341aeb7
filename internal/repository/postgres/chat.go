package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
)

type chatRepository struct {
	BaseRepository
}

func NewChatRepository(base BaseRepository) repository.ChatRepository {
	return &chatRepository{base}
}

func (r *chatRepository) Save(ctx context.Context, msg *model.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	return r.run(ctx, "chat.save", func(ctx context.Context) error {
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO chat_messages (room, sender_email, sender_type, message_text, "timestamp")
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			msg.Room, msg.SenderEmail, msg.SenderType, msg.MessageText, msg.Timestamp,
		).Scan(&msg.ID)
		if err != nil {
			return fmt.Errorf("failed to save chat message: %w", err)
		}
		return nil
	})
}

// History returns the messages of room, oldest first. A positive limit keeps
// only the most recent limit messages.
func (r *chatRepository) History(ctx context.Context, room string, limit int) ([]*model.ChatMessage, error) {
	query := `
		SELECT id, room, sender_email, sender_type, message_text, "timestamp"
		FROM chat_messages
		WHERE room = $1
		ORDER BY "timestamp" ASC, id ASC`
	args := []interface{}{room}
	if limit > 0 {
		query = `
		SELECT id, room, sender_email, sender_type, message_text, "timestamp" FROM (
			SELECT id, room, sender_email, sender_type, message_text, "timestamp"
			FROM chat_messages
			WHERE room = $1
			ORDER BY "timestamp" DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY "timestamp" ASC, id ASC`
		args = append(args, limit)
	}

	messages := []*model.ChatMessage{}
	err := r.run(ctx, "chat.history", func(ctx context.Context) error {
		if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
			return fmt.Errorf("failed to load chat history: %w", err)
		}
		return nil
	})
	return messages, err
}
