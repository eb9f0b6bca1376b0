package playbooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/shared"
	"github.com/playbookhq/playbooks/internal/teams"
	"github.com/playbookhq/playbooks/internal/users"
)

// Source loads playbook snapshots.
type Source interface {
	Get(ctx context.Context, id string) (permissions.Playbook, error)
}

// UserFetcher warms the user cache.
type UserFetcher interface {
	FetchUserByID(ctx context.Context, id string) (users.User, error)
}

// MemberFetcher warms the team membership cache.
type MemberFetcher interface {
	Fetch(ctx context.Context, teamID, userID string) (teams.Member, error)
}

// RoleLoader synchronously loads roles that are not cached yet.
type RoleLoader interface {
	Ensure(ctx context.Context, names []string) error
}

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Source   Source
	Resolver *permissions.Resolver
	Users    UserFetcher
	Members  MemberFetcher
	Roles    RoleLoader
	Logger   *slog.Logger
}

// Service answers permission questions about stored playbooks.
type Service struct {
	source   Source
	resolver *permissions.Resolver
	users    UserFetcher
	members  MemberFetcher
	roles    RoleLoader
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   cfg.Source,
		resolver: cfg.Resolver,
		users:    cfg.Users,
		members:  cfg.Members,
		roles:    cfg.Roles,
		logger:   logger,
	}
}

// Decision is the answer for one capability.
type Decision struct {
	Capability permissions.Capability `json:"capability"`
	Permission string                 `json:"permission"`
	Allowed    bool                   `json:"allowed"`
}

// Permissions evaluates every capability of actorID on the playbook.
func (s *Service) Permissions(ctx context.Context, playbookID, actorID string) (map[permissions.Capability]bool, error) {
	pb, err := s.snapshot(ctx, playbookID, actorID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Permissions(ctx, pb, actorID), nil
}

// HasPermission evaluates a single capability.
func (s *Service) HasPermission(ctx context.Context, playbookID, actorID string, capability permissions.Capability) (Decision, error) {
	pb, err := s.snapshot(ctx, playbookID, actorID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Capability: capability,
		Permission: permissions.Specific(capability, pb.Public),
		Allowed:    s.resolver.HasPermission(ctx, capability, pb, actorID),
	}, nil
}

// Authorize returns shared.ErrForbidden unless actorID holds capability.
func (s *Service) Authorize(ctx context.Context, playbookID, actorID string, capability permissions.Capability) error {
	d, err := s.HasPermission(ctx, playbookID, actorID, capability)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("playbooks: %s on %s: %w", capability, playbookID, shared.ErrForbidden)
	}
	return nil
}

// snapshot loads and validates the playbook, then warms every cache the
// resolver reads for actorID. Warm-up failures are logged and degrade to
// denial.
func (s *Service) snapshot(ctx context.Context, playbookID, actorID string) (*permissions.Playbook, error) {
	if actorID == "" {
		return nil, shared.ErrUnauthenticated
	}
	pb, err := s.source.Get(ctx, playbookID)
	if err != nil {
		return nil, err
	}
	if err := pb.Validate(); err != nil {
		return nil, err
	}

	names := append([]string(nil), pb.EffectiveRoles(actorID)...)
	if s.users != nil {
		u, err := s.users.FetchUserByID(ctx, actorID)
		switch {
		case err == nil:
			names = append(names, u.Roles...)
		case !errors.Is(err, users.ErrNotFound):
			s.logger.Warn("playbooks: fetch actor", slog.String("user_id", actorID), slog.Any("error", err))
		}
	}
	if s.members != nil {
		m, err := s.members.Fetch(ctx, pb.TeamID, actorID)
		switch {
		case err == nil:
			names = append(names, m.Roles...)
		case !errors.Is(err, teams.ErrNotFound):
			s.logger.Warn("playbooks: fetch team member", slog.String("team_id", pb.TeamID), slog.Any("error", err))
		}
	}
	if s.roles != nil && len(names) > 0 {
		if err := s.roles.Ensure(ctx, names); err != nil {
			s.logger.Warn("playbooks: load roles", slog.Any("roles", names), slog.Any("error", err))
		}
	}
	return &pb, nil
}
