package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/relaychat/apiserver/types"
)

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, message types.Message) (types.Message, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Message, error)
	UpdateOwned(ctx context.Context, id, ownerID uuid.UUID, content string, rating int, role string) (types.Message, error)
}

// MessageEvents receives fire-and-forget notifications about message
// writes. Implementations must not block the request path on broker
// errors.
type MessageEvents interface {
	MessageCreated(ctx context.Context, message types.Message)
	MessageUpdated(ctx context.Context, message types.Message)
}

// NewMessage carries the caller-supplied fields of a message to create.
// The owner is never part of it; it comes from the authenticated
// identity.
type NewMessage struct {
	ChatID  uuid.UUID
	Content string
	Rating  int
	Role    string
	SentAt  *time.Time
}

// MessageService enforces ownership scoping on message operations.
type MessageService struct {
	repo   MessageRepository
	events MessageEvents
}

// NewMessageService constructs a MessageService. events may be nil to
// disable publishing.
func NewMessageService(repo MessageRepository, events MessageEvents) *MessageService {
	return &MessageService{repo: repo, events: events}
}

// Send persists a message owned by ownerID. SentAt defaults to the
// current time when the caller did not supply one.
func (s *MessageService) Send(ctx context.Context, ownerID uuid.UUID, input NewMessage) (types.Message, error) {
	message := types.Message{
		ChatID:  input.ChatID,
		UserID:  ownerID,
		Content: input.Content,
		Rating:  input.Rating,
		Role:    input.Role,
	}
	if input.SentAt != nil {
		message.SentAt = *input.SentAt
	}

	created, err := s.repo.Create(ctx, message)
	if err != nil {
		return types.Message{}, err
	}
	if s.events != nil {
		s.events.MessageCreated(ctx, created)
	}
	return created, nil
}

// ListForOwner returns the caller's messages ordered by sent_at
// ascending. An empty slice is a valid result, not an error.
func (s *MessageService) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Message, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Update mutates content, rating and role of a message the caller owns.
// A message owned by someone else returns store.ErrNotFound, exactly as
// a nonexistent id does.
func (s *MessageService) Update(ctx context.Context, messageID, ownerID uuid.UUID, content string, rating int, role string) (types.Message, error) {
	updated, err := s.repo.UpdateOwned(ctx, messageID, ownerID, content, rating, role)
	if err != nil {
		return types.Message{}, err
	}
	if s.events != nil {
		s.events.MessageUpdated(ctx, updated)
	}
	return updated, nil
}
