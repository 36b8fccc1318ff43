package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaychat/apiserver/types"
)

// MemoryUserRepository is an in-memory UserRepository used by tests.
// It honors the same contracts as the SQL implementation.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[uuid.UUID]types.User)}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = user
	return user, nil
}

// Delete removes a user. Tests use it to simulate an account removed
// after a token was issued.
func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// MemoryMessageRepository is an in-memory MessageRepository used by tests.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]types.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[uuid.UUID]types.Message)}
}

func (r *MemoryMessageRepository) Create(ctx context.Context, message types.Message) (types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	r.messages[message.ID] = message
	return message, nil
}

func (r *MemoryMessageRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]types.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := []types.Message{}
	for _, message := range r.messages {
		if message.UserID == ownerID {
			messages = append(messages, message)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].ID.String() < messages[j].ID.String()
		}
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
	return messages, nil
}

func (r *MemoryMessageRepository) UpdateOwned(ctx context.Context, id, ownerID uuid.UUID, content string, rating int, role string) (types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.messages[id]
	if !ok || message.UserID != ownerID {
		return types.Message{}, ErrNotFound
	}
	message.Content = content
	message.Rating = rating
	message.Role = role
	r.messages[id] = message
	return message, nil
}
