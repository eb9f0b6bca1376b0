package permissions

import (
	"context"

	"github.com/playbookhq/playbooks/internal/teams"
	"github.com/playbookhq/playbooks/internal/users"
)

// UserLookup returns cached users.
type UserLookup interface {
	GetUserByID(id string) (users.User, bool)
}

// MemberLookup returns cached team memberships.
type MemberLookup interface {
	GetMember(teamID, userID string) (teams.Member, bool)
}

// TeamRoles grants permissions held through the actor's system roles and,
// when a team is given, the actor's active membership roles in that team.
type TeamRoles struct {
	Roles   RoleStore
	Users   UserLookup
	Members MemberLookup
}

// HasTeamPermission implements TeamChecker. Users and memberships are read
// from cache only; an uncached actor holds no team roles.
func (t TeamRoles) HasTeamPermission(ctx context.Context, teamID, actorID, permission string) bool {
	if actorID == "" || permission == "" {
		return false
	}
	var names []string
	if t.Users != nil {
		if u, ok := t.Users.GetUserByID(actorID); ok && u.DeleteAt == 0 {
			names = append(names, u.Roles...)
		}
	}
	if teamID != "" && t.Members != nil {
		if m, ok := t.Members.GetMember(teamID, actorID); ok && m.Active() {
			names = append(names, m.Roles...)
		}
	}
	return grants(ctx, t.Roles, names, permission)
}
