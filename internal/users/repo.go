package users

import (
	"context"
	"time"
)

// Repo persists user accounts.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	// UpsertProvider creates or refreshes an account keyed by (provider, provider_sub)
	// and returns the stored record.
	UpsertProvider(ctx context.Context, user User) (User, error)
	TouchLogin(ctx context.Context, userID string, at time.Time) error
}
