package types

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message owned by a user.
// UserID is set from the authenticated identity at creation and is
// never reassigned afterwards.
type Message struct {
	// ID is the unique identifier of the message.
	ID uuid.UUID `json:"message_id" db:"message_id"`

	// ChatID groups messages into a conversation.
	ChatID uuid.UUID `json:"chat_id" db:"chat_id"`

	// UserID is the owning user. Immutable after creation.
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// Content is the message text.
	Content string `json:"content" db:"content"`

	// Rating is a caller-supplied integer score for the message.
	Rating int `json:"rating" db:"rating"`

	// Role tags the author side of the exchange (e.g. "user", "ai").
	Role string `json:"role" db:"role"`

	// SentAt is when the message was sent. Defaults to creation time.
	SentAt time.Time `json:"sent_at" db:"sent_at"`
}
