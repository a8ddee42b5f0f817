// Package services contains the server-side business logic: accounts,
// the character registry, and the conversation controller.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/server/auth"
	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/repositories/repomanager"
)

// UserService handles registration and login, minting session credentials
// on success.
type UserService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	identity *auth.Provider
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, identity *auth.Provider) *UserService {
	return &UserService{db: db, repos: repos, identity: identity}
}

// Register creates an account and returns it with a fresh credential.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return nil, "", common.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repos.Users(s.db).Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	token, err := s.identity.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue credential: %w", err)
	}

	return user, token, nil
}

// Login verifies the password and returns the user with a fresh credential.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, "", common.ErrUnauthenticated
		}
		return nil, "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, "", common.ErrUnauthenticated
	}

	token, err := s.identity.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue credential: %w", err)
	}

	return user, token, nil
}
