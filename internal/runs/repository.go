package runs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playbookhq/playbooks/internal/platform/db"
	"github.com/playbookhq/playbooks/internal/shared"
	"github.com/playbookhq/playbooks/internal/timeline"
)

// ErrNotFound indicates that the run does not exist.
var ErrNotFound = fmt.Errorf("runs: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the run with its live timeline events, oldest first, and all
// of its status posts, read from one snapshot.
func (r *Repository) Get(ctx context.Context, id string) (Snapshot, error) {
	var s Snapshot
	err := db.ReadSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT id, name, playbook_id, team_id, owner_user_id, create_at, end_at FROM runs WHERE id = $1`, id,
		).Scan(&s.ID, &s.Name, &s.PlaybookID, &s.TeamID, &s.OwnerUserID, &s.CreateAt, &s.EndAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("runs: get %s: %w", id, err)
		}
		if s.Events, err = events(ctx, tx, id); err != nil {
			return err
		}
		s.StatusPosts, err = statusPosts(ctx, tx, id)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func events(ctx context.Context, tx pgx.Tx, runID string) ([]timeline.Event, error) {
	rows, err := tx.Query(ctx, `
SELECT id, run_id, create_at, delete_at, event_at, event_type, summary, details,
       post_id, subject_user_id, creator_user_id
FROM timeline_events
WHERE run_id = $1 AND delete_at = 0
ORDER BY event_at, create_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("runs: timeline of %s: %w", runID, err)
	}
	defer rows.Close()
	var out []timeline.Event
	for rows.Next() {
		var e timeline.Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.CreateAt, &e.DeleteAt, &e.EventAt, &e.EventType, &e.Summary,
			&e.Details, &e.PostID, &e.SubjectUserID, &e.CreatorUserID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func statusPosts(ctx context.Context, tx pgx.Tx, runID string) ([]timeline.StatusPost, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, create_at, delete_at FROM status_posts WHERE run_id = $1 ORDER BY create_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("runs: status posts of %s: %w", runID, err)
	}
	defer rows.Close()
	var out []timeline.StatusPost
	for rows.Next() {
		var p timeline.StatusPost
		if err := rows.Scan(&p.ID, &p.CreateAt, &p.DeleteAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
