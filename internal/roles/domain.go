package roles

import (
	"slices"
	"time"
)

// Built-in role names seeded for every installation.
const (
	SystemUser     = "system_user"
	SystemAdmin    = "system_admin"
	TeamUser       = "team_user"
	TeamAdmin      = "team_admin"
	PlaybookMember = "playbook_member"
	PlaybookAdmin  = "playbook_admin"
	RunMember      = "run_member"
	RunAdmin       = "run_admin"
)

// Role is a named bundle of permission keys.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name"`
	Permissions   []string  `json:"permissions"`
	SchemeManaged bool      `json:"scheme_managed"`
	BuiltIn       bool      `json:"built_in"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Has reports whether the role grants the permission key.
func (r Role) Has(permission string) bool {
	if permission == "" {
		return false
	}
	return slices.Contains(r.Permissions, permission)
}
