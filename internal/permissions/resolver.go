package permissions

import (
	"context"

	"github.com/playbookhq/playbooks/internal/observability"
	"github.com/playbookhq/playbooks/internal/roles"
)

// RoleStore is the read side of the role cache. GetRole never blocks;
// LoadRolesIfNeeded schedules a load and returns immediately.
type RoleStore interface {
	GetRole(name string) (roles.Role, bool)
	LoadRolesIfNeeded(ctx context.Context, names []string)
}

// TeamChecker reports whether the actor holds permission through team-wide
// or system-wide roles.
type TeamChecker interface {
	HasTeamPermission(ctx context.Context, teamID, actorID, permission string) bool
}

// Resolver decides playbook capabilities for an actor.
type Resolver struct {
	roles   RoleStore
	team    TeamChecker
	metrics *observability.DomainMetrics
}

// NewResolver constructs a Resolver. team and metrics may be nil.
func NewResolver(roles RoleStore, team TeamChecker, metrics *observability.DomainMetrics) *Resolver {
	return &Resolver{roles: roles, team: team, metrics: metrics}
}

// HasPermission reports whether actorID holds capability on playbook.
// Team grants short-circuit playbook roles. Roles that are not loaded yet
// grant nothing; their load is triggered and the caller re-evaluates later.
func (r *Resolver) HasPermission(ctx context.Context, capability Capability, playbook *Playbook, actorID string) bool {
	allowed := r.hasPermission(ctx, capability, playbook, actorID)
	r.metrics.Decision(string(capability), allowed)
	return allowed
}

func (r *Resolver) hasPermission(ctx context.Context, capability Capability, playbook *Playbook, actorID string) bool {
	specific := Specific(capability, playbook != nil && playbook.Public)
	if specific == "" {
		return false
	}
	teamID := ""
	if playbook != nil {
		teamID = playbook.TeamID
	}
	if r.team != nil && r.team.HasTeamPermission(ctx, teamID, actorID, specific) {
		return true
	}
	if playbook == nil {
		return false
	}
	return grants(ctx, r.roles, playbook.EffectiveRoles(actorID), specific)
}

// Permissions evaluates every known capability.
func (r *Resolver) Permissions(ctx context.Context, playbook *Playbook, actorID string) map[Capability]bool {
	out := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		out[c] = r.HasPermission(ctx, c, playbook, actorID)
	}
	return out
}

// grants resolves names through store and reports whether any loaded role
// contains permission. A single load is requested for the whole set.
func grants(ctx context.Context, store RoleStore, names []string, permission string) bool {
	if len(names) == 0 || store == nil {
		return false
	}
	store.LoadRolesIfNeeded(ctx, names)
	for _, name := range names {
		role, ok := store.GetRole(name)
		if ok && role.Has(permission) {
			return true
		}
	}
	return false
}
