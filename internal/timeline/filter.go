package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEventType reports a filter key that names no event type.
var ErrUnknownEventType = errors.New("timeline: unknown event type")

// FilterAll is the option value of the master toggle.
const FilterAll = "all"

// Filter selects which event types a timeline shows. Every known type has an
// explicit flag. While All is set every type is shown.
type Filter struct {
	All   bool
	flags map[EventType]bool
}

// NewFilter builds a filter from flag values keyed by "all" or an event
// type name. Types not mentioned are off.
func NewFilter(values map[string]bool) (Filter, error) {
	f := Filter{flags: make(map[EventType]bool, len(eventTypes))}
	for _, t := range eventTypes {
		f.flags[t] = false
	}
	for key, on := range values {
		if key == FilterAll {
			f.All = on
			continue
		}
		t := EventType(key)
		if !t.Known() {
			return Filter{}, fmt.Errorf("%w: %q", ErrUnknownEventType, key)
		}
		f.flags[t] = on
	}
	return f, nil
}

// DefaultFilter returns the filter a timeline starts with.
func DefaultFilter() Filter {
	f, _ := NewFilter(map[string]bool{
		string(OwnerChanged):      true,
		string(StatusUpdated):     true,
		string(EventFromPost):     true,
		string(TaskStateModified): true,
		string(AssigneeChanged):   true,
		string(RanSlashCommand):   true,
	})
	return f
}

// Enabled reports the stored flag of t, ignoring All.
func (f Filter) Enabled(t EventType) bool {
	return f.flags[t]
}

// Shows reports whether events of type t pass the filter.
func (f Filter) Shows(t EventType) bool {
	if f.All || f.flags[t] {
		return true
	}
	_, grouped := statusUpdateGroup[t]
	return grouped && f.flags[StatusUpdated]
}

// Option is one entry of the filter menu.
type Option struct {
	Label    string `json:"display"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
}

var toggleable = []struct {
	label string
	value EventType
}{
	{"Role changes", OwnerChanged},
	{"Status updates", StatusUpdated},
	{"Saved messages", EventFromPost},
	{"Task state changes", TaskStateModified},
	{"Task assignments", AssigneeChanged},
	{"Slash commands", RanSlashCommand},
}

// Options returns the filter menu: the master toggle followed by the
// user-facing categories.
func (f Filter) Options() []Option {
	out := make([]Option, 0, len(toggleable)+1)
	out = append(out, Option{Label: "All events", Value: FilterAll, Selected: f.All})
	for _, item := range toggleable {
		out = append(out, Option{
			Label:    item.label,
			Value:    string(item.value),
			Selected: f.All || f.flags[item.value],
			Disabled: f.All,
		})
	}
	return out
}

// SelectOption sets one toggle. While All is set only the master toggle can
// change; other values are ignored.
func (f *Filter) SelectOption(value string, checked bool) error {
	if value == FilterAll {
		f.All = checked
		return nil
	}
	t := EventType(value)
	if !t.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, value)
	}
	if f.All {
		return nil
	}
	if f.flags == nil {
		f.flags = make(map[EventType]bool, len(eventTypes))
	}
	f.flags[t] = checked
	return nil
}

// Reset restores the default filter.
func (f *Filter) Reset() {
	*f = DefaultFilter()
}

// Values returns the filter as flag values accepted by NewFilter.
func (f Filter) Values() map[string]bool {
	out := make(map[string]bool, len(eventTypes)+1)
	out[FilterAll] = f.All
	for _, t := range eventTypes {
		out[string(t)] = f.flags[t]
	}
	return out
}

// MarshalJSON encodes the filter as a flat object of flags.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Values())
}

// UnmarshalJSON decodes a flat object of flags, rejecting unknown keys.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var values map[string]bool
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	parsed, err := NewFilter(values)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Apply keeps the events that pass f, preserving order.
func Apply(events []EnrichedEvent, f Filter) []EnrichedEvent {
	out := make([]EnrichedEvent, 0, len(events))
	for _, e := range events {
		if f.Shows(e.EventType) {
			out = append(out, e)
		}
	}
	return out
}
