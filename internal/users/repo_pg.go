package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, username, email, password_hash, name, picture_url, provider, provider_sub, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var username, email, passwordHash, name, pictureURL, providerSub sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&username,
		&email,
		&passwordHash,
		&name,
		&pictureURL,
		&user.Provider,
		&providerSub,
		&user.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Username = username.String
	user.Email = email.String
	user.PasswordHash = passwordHash.String
	user.Name = name.String
	user.PictureURL = pictureURL.String
	user.ProviderSub = providerSub.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, username, email, password_hash, name, picture_url, provider, provider_sub, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	provider := user.Provider
	if provider == "" {
		provider = ProviderLocal
	}
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.Username),
		nullableString(user.Email),
		nullableString(user.PasswordHash),
		nullableString(user.Name),
		nullableString(user.PictureURL),
		provider,
		nullableString(user.ProviderSub),
		createdAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUsernameTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE lower(username) = lower($1)
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, username))
}

func (r *PGRepo) UpsertProvider(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, email, name, picture_url, provider, provider_sub, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (provider, provider_sub) WHERE provider_sub IS NOT NULL DO UPDATE SET
  email = EXCLUDED.email,
  name = EXCLUDED.name,
  picture_url = EXCLUDED.picture_url
RETURNING ` + userColumns
	return scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		nullableString(user.Email),
		nullableString(user.Name),
		nullableString(user.PictureURL),
		user.Provider,
		user.ProviderSub,
	))
}

func (r *PGRepo) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE users SET last_login_at = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, at.UTC(), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
