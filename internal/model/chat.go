package model

import "time"

type ChatMessage struct {
	ID          int64     `db:"id" json:"id"`
	Room        string    `db:"room" json:"room"`
	SenderEmail string    `db:"sender_email" json:"sender_email"`
	SenderType  Role      `db:"sender_type" json:"sender_type"`
	MessageText string    `db:"message_text" json:"message_text"`
	Timestamp   time.Time `db:"timestamp" json:"timestamp"`
}
