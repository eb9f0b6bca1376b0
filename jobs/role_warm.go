package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/playbookhq/playbooks/internal/jobs"
	"github.com/playbookhq/playbooks/internal/roles"
)

// RoleSource reads roles from durable storage.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]roles.Role, error)
	RolesByNames(ctx context.Context, names []string) ([]roles.Role, error)
}

// RoleCache is the shared role cache the job writes to.
type RoleCache interface {
	Put(ctx context.Context, roles []roles.Role) error
	Bump(ctx context.Context) error
}

// RoleWarmJob copies roles from Postgres into the shared Redis cache.
type RoleWarmJob struct {
	Source  RoleSource
	Cache   RoleCache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRoleWarmJob wires dependencies for the warm-up handler. logger and
// metrics may be nil.
func NewRoleWarmJob(source RoleSource, cache RoleCache, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleWarmJob {
	return &RoleWarmJob{Source: source, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRolesWarm tasks. A full warm-up bumps the cache
// version first so every process drops its in-memory roles.
func (j *RoleWarmJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil || j.Cache == nil {
		return errors.New("roles warm: handler not configured")
	}
	var payload RoleWarmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	started := time.Now()
	defer func() {
		j.Metrics.Observe(TaskRolesWarm, started, resultErr)
	}()

	logger := j.logger().With(slog.Int("requested", len(payload.Names)))

	var (
		loaded []roles.Role
		err    error
	)
	if len(payload.Names) == 0 {
		loaded, err = j.Source.ListRoles(ctx)
	} else {
		loaded, err = j.Source.RolesByNames(ctx, payload.Names)
	}
	if err != nil {
		logger.Error("load roles", slog.Any("error", err))
		return err
	}

	if len(payload.Names) == 0 {
		if err := j.Cache.Bump(ctx); err != nil {
			logger.Error("bump role cache", slog.Any("error", err))
			return err
		}
	}
	if err := j.Cache.Put(ctx, loaded); err != nil {
		logger.Error("write role cache", slog.Any("error", err))
		return err
	}
	j.Metrics.RolesWarmed(len(loaded))
	logger.Info("roles warmed", slog.Int("count", len(loaded)))
	return nil
}

func (j *RoleWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
