package teams

// Member is a user's membership in a team.
type Member struct {
	TeamID   string   `json:"team_id"`
	UserID   string   `json:"user_id"`
	Roles    []string `json:"roles"`
	DeleteAt int64    `json:"delete_at"`
}

// Active reports whether the membership still grants its roles.
func (m Member) Active() bool {
	return m.DeleteAt == 0
}
