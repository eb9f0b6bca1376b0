package playbooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/platform/db"
	"github.com/playbookhq/playbooks/internal/shared"
)

// ErrNotFound indicates that the playbook does not exist or was archived.
var ErrNotFound = fmt.Errorf("playbooks: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the playbook with its members, read from one snapshot.
func (r *Repository) Get(ctx context.Context, id string) (permissions.Playbook, error) {
	pb := permissions.Playbook{ID: id}
	err := db.ReadSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT title, public, team_id, default_member_role FROM playbooks WHERE id = $1 AND delete_at = 0`, id,
		).Scan(&pb.Title, &pb.Public, &pb.TeamID, &pb.DefaultMemberRole)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("playbooks: get %s: %w", id, err)
		}

		rows, err := tx.Query(ctx,
			`SELECT user_id, scheme_roles FROM playbook_members WHERE playbook_id = $1 ORDER BY user_id`, id)
		if err != nil {
			return fmt.Errorf("playbooks: members of %s: %w", id, err)
		}
		pb.Members, err = pgx.CollectRows(rows, pgx.RowToStructByPos[permissions.Member])
		if err != nil {
			return fmt.Errorf("playbooks: scan members of %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return permissions.Playbook{}, err
	}
	return pb, nil
}
