package users

import "time"

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is an account that owns documents.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	PictureURL   string     `json:"pictureUrl"`
	Provider     string     `json:"provider"`
	ProviderSub  string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}
