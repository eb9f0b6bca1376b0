package permissions

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/playbookhq/playbooks/internal/shared"
)

// ErrInvalidPlaybook reports a malformed playbook snapshot.
var ErrInvalidPlaybook = fmt.Errorf("permissions: invalid playbook: %w", shared.ErrValidation)

var validate = validator.New()

// Member is a user listed on a playbook together with the scheme roles it
// holds there.
type Member struct {
	UserID      string   `json:"user_id" validate:"required"`
	SchemeRoles []string `json:"scheme_roles,omitempty"`
}

// Playbook is the membership snapshot a permission decision is made on.
type Playbook struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Public            bool     `json:"public"`
	TeamID            string   `json:"team_id" validate:"required"`
	DefaultMemberRole string   `json:"default_playbook_member_role"`
	Members           []Member `json:"members" validate:"unique=UserID,dive"`
}

// Validate checks the snapshot, in particular that no user is listed twice.
func (p *Playbook) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlaybook, err)
	}
	return nil
}

// Member returns the membership entry for userID.
func (p *Playbook) Member(userID string) (Member, bool) {
	if p == nil {
		return Member{}, false
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// EffectiveRoles returns the playbook-scoped roles userID holds: its scheme
// roles when listed, the default member role on a public playbook, and
// nothing otherwise.
func (p *Playbook) EffectiveRoles(userID string) []string {
	if p == nil {
		return nil
	}
	if m, ok := p.Member(userID); ok {
		return m.SchemeRoles
	}
	if p.Public && p.DefaultMemberRole != "" {
		return []string{p.DefaultMemberRole}
	}
	return nil
}
