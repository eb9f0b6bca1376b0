package timeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playbookhq/playbooks/internal/observability"
	"github.com/playbookhq/playbooks/internal/users"
)

const defaultConcurrency = 8

// UserStore is the user cache the assembler reads and populates.
type UserStore interface {
	GetUserByID(id string) (users.User, bool)
	GetUserByUsername(username string) (users.User, bool)
	FetchUserByID(ctx context.Context, id string) (users.User, error)
	FetchUsersByUsernames(ctx context.Context, usernames []string) error
}

// Config collects Assembler dependencies.
type Config struct {
	Users       UserStore
	Logger      *slog.Logger
	Metrics     *observability.DomainMetrics
	Concurrency int
}

// Assembler turns raw run timelines into display-ready event lists.
type Assembler struct {
	users       UserStore
	logger      *slog.Logger
	metrics     *observability.DomainMetrics
	concurrency int
}

// NewAssembler constructs an Assembler.
func NewAssembler(cfg Config) *Assembler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Assembler{users: cfg.Users, logger: logger, metrics: cfg.Metrics, concurrency: concurrency}
}

// Assemble enriches in and returns the events that pass filter, newest
// first.
func (a *Assembler) Assemble(ctx context.Context, in Input, preference string, filter Filter) ([]EnrichedEvent, error) {
	events, err := a.Enrich(ctx, in, preference)
	if err != nil {
		return nil, err
	}
	return Apply(events, filter), nil
}

// Enrich annotates every event of in and returns them newest first. Events
// whose subject user cannot be fetched are dropped. The only error is the
// cancellation of ctx.
func (a *Assembler) Enrich(ctx context.Context, in Input, preference string) ([]EnrichedEvent, error) {
	start := time.Now()
	defer a.metrics.ObserveAssemble(start)

	deleted := DeletionIndex(in.StatusPosts)
	a.prefetchRequesters(ctx, in.Events)

	results := make([]*EnrichedEvent, len(in.Events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range in.Events {
		g.Go(func() error {
			enriched, err := a.enrich(gctx, in.Events[i], preference, deleted)
			if err != nil {
				return err
			}
			results[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]EnrichedEvent, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] != nil {
			out = append(out, *results[i])
		}
	}
	a.metrics.EventsDropped(len(results) - len(out))
	return out, nil
}

// prefetchRequesters loads every requester username the cache cannot
// resolve with one batched call.
func (a *Assembler) prefetchRequesters(ctx context.Context, events []Event) {
	seen := make(map[string]struct{})
	var unknown []string
	for _, e := range events {
		name := requester(e.Details)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := a.users.GetUserByUsername(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return
	}
	if err := a.users.FetchUsersByUsernames(ctx, unknown); err != nil {
		a.logger.Warn("timeline: fetch requesters", slog.Int("count", len(unknown)), slog.Any("error", err))
	}
}

// enrich returns nil without error when the event must be dropped.
func (a *Assembler) enrich(ctx context.Context, e Event, preference string, deleted map[string]int64) (*EnrichedEvent, error) {
	subject, ok := a.users.GetUserByID(e.SubjectUserID)
	if !ok {
		var err error
		subject, err = a.users.FetchUserByID(ctx, e.SubjectUserID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Debug("timeline: drop event",
				slog.String("event_id", e.ID),
				slog.String("subject_user_id", e.SubjectUserID),
				slog.Any("error", err))
			return nil, nil
		}
	}

	requesterName := ""
	if name := requester(e.Details); name != "" {
		requesterName = name
		if u, ok := a.users.GetUserByUsername(name); ok {
			requesterName = users.DisplayName(&u, preference, true)
		}
	}

	return &EnrichedEvent{
		Event:                e,
		SubjectDisplayName:   users.DisplayName(&subject, preference, true),
		RequesterDisplayName: requesterName,
		StatusDeleteAt:       deleted[e.PostID],
	}, nil
}
