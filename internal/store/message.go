package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/relaychat/apiserver/types"
)

// MessageRepository handles persistence for messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message. A zero ID is replaced with a generated
// UUID and a zero SentAt defaults to the current time.
func (r *MessageRepository) Create(ctx context.Context, message types.Message) (types.Message, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}

	const query = `
		INSERT INTO messages (message_id, chat_id, user_id, content, rating, role, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		message.ID,
		message.ChatID,
		message.UserID,
		message.Content,
		message.Rating,
		message.Role,
		message.SentAt,
	)
	if err != nil {
		return types.Message{}, err
	}
	return message, nil
}

// ListByOwner returns every message owned by ownerID, ordered by sent_at
// ascending with message_id as a deterministic tie-breaker.
func (r *MessageRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Message, error) {
	const query = `
		SELECT message_id, chat_id, user_id, content, rating, role, sent_at
		FROM messages
		WHERE user_id = $1
		ORDER BY sent_at ASC, message_id ASC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []types.Message{}
	for rows.Next() {
		var message types.Message
		if err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.UserID,
			&message.Content,
			&message.Rating,
			&message.Role,
			&message.SentAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateOwned mutates content, rating and role of the message matching
// both id and ownerID in a single predicate. A message owned by a
// different user is indistinguishable from a missing one: both yield
// ErrNotFound. chat_id, user_id and sent_at are immutable.
func (r *MessageRepository) UpdateOwned(ctx context.Context, id, ownerID uuid.UUID, content string, rating int, role string) (types.Message, error) {
	const query = `
		UPDATE messages
		SET content = $1,
			rating = $2,
			role = $3
		WHERE message_id = $4 AND user_id = $5
		RETURNING message_id, chat_id, user_id, content, rating, role, sent_at`
	var message types.Message
	err := r.db.QueryRowContext(ctx, query, content, rating, role, id, ownerID).Scan(
		&message.ID,
		&message.ChatID,
		&message.UserID,
		&message.Content,
		&message.Rating,
		&message.Role,
		&message.SentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrNotFound
		}
		return types.Message{}, err
	}
	return message, nil
}
