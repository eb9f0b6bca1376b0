package jobs

import (
	"encoding/json"
	"slices"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRolesWarm refreshes the shared Redis role cache from Postgres.
	TaskRolesWarm = "roles:warm"
)

// RoleWarmPayload lists the roles to refresh. An empty list refreshes every
// role and bumps the cache version.
type RoleWarmPayload struct {
	Names []string `json:"names,omitempty"`
}

// NewRoleWarmTask constructs an Asynq task. Names are sorted so identical
// requests share a uniqueness key.
func NewRoleWarmTask(names []string) (*asynq.Task, error) {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	data, err := json.Marshal(RoleWarmPayload{Names: sorted})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRolesWarm, data), nil
}
