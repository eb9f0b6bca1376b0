package runs

import "github.com/playbookhq/playbooks/internal/timeline"

// Run is the run metadata needed to serve its timeline.
type Run struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlaybookID  string `json:"playbook_id"`
	TeamID      string `json:"team_id"`
	OwnerUserID string `json:"owner_user_id"`
	CreateAt    int64  `json:"create_at"`
	EndAt       int64  `json:"end_at"`
}

// Snapshot is a run together with its raw timeline.
type Snapshot struct {
	Run
	timeline.Input
}
