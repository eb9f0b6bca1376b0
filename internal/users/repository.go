package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playbookhq/playbooks/internal/shared"
)

// ErrNotFound indicates that the requested user does not exist.
var ErrNotFound = fmt.Errorf("users: %w", shared.ErrNotFound)

const (
	preferenceCategoryDisplay = "display_settings"
	preferenceNameFormat      = "name_format"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, nickname, first_name, last_name, roles, delete_at`

// UserByID returns a single user.
func (r *Repository) UserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Nickname, &u.FirstName, &u.LastName, &u.Roles, &u.DeleteAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: get %s: %w", id, err)
	}
	return u, nil
}

// UsersByUsernames returns the users whose usernames are listed. Matching is
// case-insensitive; unknown usernames are skipped.
func (r *Repository) UsersByUsernames(ctx context.Context, usernames []string) ([]User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = ANY($1)`, foldAll(usernames))
	if err != nil {
		return nil, fmt.Errorf("users: query by usernames: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Nickname, &u.FirstName, &u.LastName, &u.Roles, &u.DeleteAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w", err)
	}
	return out, nil
}

// NameDisplay returns the user's name display preference, or "" when unset.
func (r *Repository) NameDisplay(ctx context.Context, userID string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM preferences WHERE user_id = $1 AND category = $2 AND name = $3`,
		userID, preferenceCategoryDisplay, preferenceNameFormat,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("users: name display preference: %w", err)
	}
	return value, nil
}
