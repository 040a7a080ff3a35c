package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/telemetry"
)

const minPasswordLen = 8

type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Register creates a local account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || len(password) < minPasswordLen {
		return User{}, ErrInvalidInput
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return User{}, ErrInvalidInput
		}
	}

	if _, err := s.Repo.GetByUsername(ctx, username); err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Provider:     ProviderLocal,
		CreatedAt:    s.now(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return user, nil
}

// Login verifies the password and issues a signed token for the account.
func (s *Service) Login(ctx context.Context, username, password string) (string, User, error) {
	if s == nil || s.Repo == nil {
		return "", User{}, errors.New("users service not configured")
	}
	user, err := s.Repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, err
	}
	if user.PasswordHash == "" {
		return "", User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", User{}, err
	}
	if err := s.Repo.TouchLogin(ctx, user.ID, s.now()); err != nil {
		telemetry.Warn("user.touch_login_failed", map[string]any{"user_id": user.ID, "error": err})
	}
	return token, user, nil
}

// UpsertFromProvider persists an identity from an external provider and
// issues a token for it.
func (s *Service) UpsertFromProvider(ctx context.Context, user User) (string, User, error) {
	if s == nil || s.Repo == nil {
		return "", User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(user.Provider) == "" || strings.TrimSpace(user.ProviderSub) == "" {
		return "", User{}, ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stored, err := s.Repo.UpsertProvider(ctx, user)
	if err != nil {
		return "", User{}, err
	}
	token, err := s.issueToken(stored)
	if err != nil {
		return "", User{}, err
	}
	if err := s.Repo.TouchLogin(ctx, stored.ID, s.now()); err != nil {
		telemetry.Warn("user.touch_login_failed", map[string]any{"user_id": stored.ID, "error": err})
	}
	return token, stored, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) issueToken(user User) (string, error) {
	name := user.Name
	if name == "" {
		name = user.Username
	}
	return auth.SignJWT(auth.Claims{
		Email:            user.Email,
		Name:             name,
		Picture:          user.PictureURL,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	})
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
