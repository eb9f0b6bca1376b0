package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, display_name, permissions, scheme_managed, built_in, updated_at`

// RolesByNames returns the roles whose names are listed. Unknown names are
// skipped, so the result may be shorter than the input.
func (r *Repository) RolesByNames(ctx context.Context, names []string) ([]Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = ANY($1) AND delete_at = 0`, names)
	if err != nil {
		return nil, fmt.Errorf("roles: query by names: %w", err)
	}
	return collectRoles(rows)
}

// ListRoles returns all active roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE delete_at = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Permissions, &role.SchemeManaged, &role.BuiltIn, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: rows: %w", err)
	}
	return out, nil
}
