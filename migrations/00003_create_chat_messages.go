package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCreateChatMessages, downCreateChatMessages)
}

func upCreateChatMessages(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			room TEXT NOT NULL,
			sender_email TEXT NOT NULL,
			sender_type TEXT NOT NULL,
			message_text TEXT NOT NULL,
			"timestamp" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages (room, "timestamp", id);
	`)
	return err
}

func downCreateChatMessages(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS chat_messages;`)
	return err
}
