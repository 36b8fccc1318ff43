package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/relaychat/apiserver/internal/auth"
	"github.com/relaychat/apiserver/internal/store"
	"github.com/relaychat/apiserver/types"
)

// ErrEmailTaken is returned by Register when the email is already bound
// to an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidCredentials is returned by Login for an unknown email and
// for a wrong password alike. Callers must not be able to tell the two
// apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// AuthService orchestrates registration and login.
type AuthService struct {
	users  UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService

	// dummyHash is compared against on unknown-email logins so that
	// branch costs the same as a wrong-password login.
	dummyHash string
}

func NewAuthService(users UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService) *AuthService {
	dummyHash, _ := hasher.Hash("dummy-credential-for-timing")
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummyHash,
	}
}

// Register creates a new account. The email must be unused; a conflict
// yields ErrEmailTaken with no partial writes.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	})
	if err != nil {
		// Races with a concurrent registration land here.
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns a signed access token. Unknown
// email and wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return s.CreateAccessToken(user)
}

// CreateAccessToken issues a token bound to the user's id. Register
// uses it to log the new account in immediately.
func (s *AuthService) CreateAccessToken(user types.User) (string, error) {
	return s.tokens.Issue(user.ID.String())
}
