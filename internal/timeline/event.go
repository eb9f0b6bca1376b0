package timeline

import "encoding/json"

// EventType names the kind of occurrence recorded on a run timeline.
type EventType string

const (
	RunCreated             EventType = "incident_created"
	TaskStateModified      EventType = "task_state_modified"
	StatusUpdated          EventType = "status_updated"
	StatusUpdateSnoozed    EventType = "status_update_snoozed"
	StatusUpdateRequested  EventType = "status_update_requested"
	OwnerChanged           EventType = "owner_changed"
	AssigneeChanged        EventType = "assignee_changed"
	RanSlashCommand        EventType = "ran_slash_command"
	EventFromPost          EventType = "event_from_post"
	UserJoinedLeft         EventType = "user_joined_left"
	ParticipantsChanged    EventType = "participants_changed"
	PublishedRetrospective EventType = "published_retrospective"
	CanceledRetrospective  EventType = "canceled_retrospective"
	RunFinished            EventType = "run_finished"
	RunRestored            EventType = "run_restored"
	StatusUpdatesEnabled   EventType = "status_updates_enabled"
	StatusUpdatesDisabled  EventType = "status_updates_disabled"
)

var eventTypes = []EventType{
	RunCreated,
	TaskStateModified,
	StatusUpdated,
	StatusUpdateSnoozed,
	StatusUpdateRequested,
	OwnerChanged,
	AssigneeChanged,
	RanSlashCommand,
	EventFromPost,
	UserJoinedLeft,
	ParticipantsChanged,
	PublishedRetrospective,
	CanceledRetrospective,
	RunFinished,
	RunRestored,
	StatusUpdatesEnabled,
	StatusUpdatesDisabled,
}

// EventTypes lists every known event type.
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	copy(out, eventTypes)
	return out
}

// Known reports whether t is one of the known event types.
func (t EventType) Known() bool {
	for _, known := range eventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// statusUpdateGroup lists the types shown under the "status updates" toggle
// in addition to status_updated itself.
var statusUpdateGroup = map[EventType]struct{}{
	StatusUpdateRequested: {},
	RunCreated:            {},
	RunFinished:           {},
	RunRestored:           {},
}

// Event is a raw timeline record as stored for a run.
type Event struct {
	ID            string    `json:"id"`
	RunID         string    `json:"playbook_run_id"`
	CreateAt      int64     `json:"create_at"`
	DeleteAt      int64     `json:"delete_at"`
	EventAt       int64     `json:"event_at"`
	EventType     EventType `json:"event_type"`
	Summary       string    `json:"summary"`
	Details       string    `json:"details"`
	PostID        string    `json:"post_id"`
	SubjectUserID string    `json:"subject_user_id"`
	CreatorUserID string    `json:"creator_user_id"`
}

// EnrichedEvent annotates an Event with display fields.
type EnrichedEvent struct {
	Event
	SubjectDisplayName   string `json:"subject_display_name"`
	RequesterDisplayName string `json:"requester_display_name"`
	StatusDeleteAt       int64  `json:"status_delete_at"`
}

// StatusPost is a status update post of a run. DeleteAt is 0 while the post
// exists.
type StatusPost struct {
	ID       string `json:"id"`
	CreateAt int64  `json:"create_at"`
	DeleteAt int64  `json:"delete_at"`
}

// Input is the snapshot one assembly pass works on. Events are oldest first.
type Input struct {
	Events      []Event
	StatusPosts []StatusPost
}

// DeletionIndex maps post IDs to their deletion time, for deleted posts only.
func DeletionIndex(posts []StatusPost) map[string]int64 {
	index := make(map[string]int64)
	for _, p := range posts {
		if p.DeleteAt != 0 {
			index[p.ID] = p.DeleteAt
		}
	}
	return index
}

type eventDetails struct {
	Requester string `json:"requester"`
}

// requester extracts the requesting username from an event's details.
// Empty or malformed details have no requester.
func requester(details string) string {
	if details == "" {
		return ""
	}
	var d eventDetails
	if err := json.Unmarshal([]byte(details), &d); err != nil {
		return ""
	}
	return d.Requester
}
