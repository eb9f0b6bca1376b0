package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playbookhq/playbooks/internal/shared"
)

// ErrNotFound indicates that the user is not a member of the team.
var ErrNotFound = fmt.Errorf("teams: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Member returns the membership of userID in teamID.
func (r *Repository) Member(ctx context.Context, teamID, userID string) (Member, error) {
	m := Member{TeamID: teamID, UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT roles, delete_at FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	).Scan(&m.Roles, &m.DeleteAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("teams: member %s/%s: %w", teamID, userID, err)
	}
	return m, nil
}
