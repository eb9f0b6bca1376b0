package users

import "strings"

// Name display preference values.
const (
	DisplayNicknameFullName = "nickname_full_name"
	DisplayFullName         = "full_name"
	DisplayUsername         = "username"
)

// DefaultNameDisplay applies when the user never chose a preference.
const DefaultNameDisplay = DisplayUsername

// User is the subset of a user profile the playbooks views need.
type User struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Nickname  string   `json:"nickname"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
	DeleteAt  int64    `json:"delete_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
