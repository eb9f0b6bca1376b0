package runs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/shared"
	"github.com/playbookhq/playbooks/internal/timeline"
)

const filterScopePrefix = "timeline_filter:"

// Source loads run snapshots.
type Source interface {
	Get(ctx context.Context, id string) (Snapshot, error)
}

// Authorizer checks a capability on a playbook.
type Authorizer interface {
	Authorize(ctx context.Context, playbookID, actorID string, capability permissions.Capability) error
}

// Preferences reads the actor's name display setting.
type Preferences interface {
	NameDisplay(ctx context.Context, userID string) string
}

// FilterStore persists per-actor filter state.
type FilterStore interface {
	Load(ctx context.Context, actorID, scope string, dest any) (bool, error)
	Save(ctx context.Context, actorID, scope string, value any) error
	Delete(ctx context.Context, actorID, scope string) error
}

// ServiceConfig collects Service dependencies. Authorizer may be nil, in
// which case any authenticated actor may read a timeline.
type ServiceConfig struct {
	Source      Source
	Assembler   *timeline.Assembler
	Authorizer  Authorizer
	Preferences Preferences
	Filters     FilterStore
	Logger      *slog.Logger
}

// Service serves run timelines and the actor's timeline filter.
type Service struct {
	source    Source
	assembler *timeline.Assembler
	authz     Authorizer
	prefs     Preferences
	filters   FilterStore
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:    cfg.Source,
		assembler: cfg.Assembler,
		authz:     cfg.Authorizer,
		prefs:     cfg.Preferences,
		filters:   cfg.Filters,
		logger:    logger,
	}
}

// Timeline returns the run's events newest first, filtered by the actor's
// stored filter.
func (s *Service) Timeline(ctx context.Context, runID, actorID string) ([]timeline.EnrichedEvent, error) {
	snap, err := s.load(ctx, runID, actorID)
	if err != nil {
		return nil, err
	}
	filter := s.filter(ctx, runID, actorID)
	preference := ""
	if s.prefs != nil {
		preference = s.prefs.NameDisplay(ctx, actorID)
	}
	events, err := s.assembler.Assemble(ctx, snap.Input, preference, filter)
	if err != nil {
		return nil, fmt.Errorf("runs: timeline of %s: %w", runID, err)
	}
	return events, nil
}

// FilterOptions returns the actor's filter menu for the run.
func (s *Service) FilterOptions(ctx context.Context, runID, actorID string) ([]timeline.Option, error) {
	if _, err := s.load(ctx, runID, actorID); err != nil {
		return nil, err
	}
	f := s.filter(ctx, runID, actorID)
	return f.Options(), nil
}

// SelectOption toggles one filter option and persists the result.
func (s *Service) SelectOption(ctx context.Context, runID, actorID, value string, checked bool) ([]timeline.Option, error) {
	if _, err := s.load(ctx, runID, actorID); err != nil {
		return nil, err
	}
	f := s.filter(ctx, runID, actorID)
	if err := f.SelectOption(value, checked); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if s.filters == nil {
		return f.Options(), nil
	}
	if err := s.filters.Save(ctx, actorID, filterScopePrefix+runID, f); err != nil {
		return nil, fmt.Errorf("runs: save filter: %w", err)
	}
	return f.Options(), nil
}

// ResetFilter restores the default filter.
func (s *Service) ResetFilter(ctx context.Context, runID, actorID string) ([]timeline.Option, error) {
	if _, err := s.load(ctx, runID, actorID); err != nil {
		return nil, err
	}
	if s.filters != nil {
		if err := s.filters.Delete(ctx, actorID, filterScopePrefix+runID); err != nil {
			return nil, fmt.Errorf("runs: reset filter: %w", err)
		}
	}
	f := timeline.DefaultFilter()
	return f.Options(), nil
}

func (s *Service) load(ctx context.Context, runID, actorID string) (Snapshot, error) {
	if actorID == "" {
		return Snapshot{}, shared.ErrUnauthenticated
	}
	snap, err := s.source.Get(ctx, runID)
	if err != nil {
		return Snapshot{}, err
	}
	if s.authz != nil {
		// Access follows the playbook; a run without one is visible to nobody.
		if snap.PlaybookID == "" {
			return Snapshot{}, fmt.Errorf("runs: run %s has no playbook: %w", runID, shared.ErrForbidden)
		}
		if err := s.authz.Authorize(ctx, snap.PlaybookID, actorID, permissions.CapabilityView); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// filter returns the stored filter, or the default when none is stored or
// the stored one cannot be read.
func (s *Service) filter(ctx context.Context, runID, actorID string) timeline.Filter {
	if s.filters == nil {
		return timeline.DefaultFilter()
	}
	var f timeline.Filter
	ok, err := s.filters.Load(ctx, actorID, filterScopePrefix+runID, &f)
	if err != nil {
		s.logger.Warn("runs: load filter", slog.String("run_id", runID), slog.Any("error", err))
		return timeline.DefaultFilter()
	}
	if !ok {
		return timeline.DefaultFilter()
	}
	return f
}
