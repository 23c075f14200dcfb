package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/csaptu/flow/scheduling/common/errors"
)

const (
	recomputeLockPrefix = "scheduling:lock:"
	scheduleCachePrefix = "scheduling:latest:"
	eventsChannel       = "scheduling:events"

	scheduleCacheTTL = time.Hour
)

// ErrRecomputeInProgress is returned when another recompute holds the
// project lock
var ErrRecomputeInProgress = errors.New(errors.ErrConflict, "a recompute is already in progress for this project", 409)

// ProjectLocker serializes recomputes per project with a Redis lock. The
// TTL bounds how long a crashed computation can block a project.
type ProjectLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProjectLocker creates a locker with the given lock TTL
func NewProjectLocker(client *redis.Client, ttl time.Duration) *ProjectLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ProjectLocker{client: client, ttl: ttl}
}

// Acquire takes the per-project recompute lock and returns a release
// function. Returns ErrRecomputeInProgress when the lock is held.
func (l *ProjectLocker) Acquire(ctx context.Context, projectID uuid.UUID) (func(), error) {
	key := recomputeLockPrefix + projectID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "acquire recompute lock")
	}
	if !ok {
		return nil, ErrRecomputeInProgress
	}

	release := func() {
		// Only delete our own lock; an expired lock may have been re-acquired
		held, err := l.client.Get(context.Background(), key).Result()
		if err == nil && held == token {
			_ = l.client.Del(context.Background(), key).Err()
		}
	}
	return release, nil
}

// ScheduleCache keeps the latest stored schedule per project in Redis so
// reads skip Postgres on the hot path.
type ScheduleCache struct {
	client *redis.Client
}

// NewScheduleCache creates a schedule cache
func NewScheduleCache(client *redis.Client) *ScheduleCache {
	return &ScheduleCache{client: client}
}

// Set caches the stored schedule
func (c *ScheduleCache) Set(ctx context.Context, projectID uuid.UUID, stored *StoredSchedule) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "marshal cached schedule")
	}
	key := scheduleCachePrefix + projectID.String()
	return c.client.Set(ctx, key, payload, scheduleCacheTTL).Err()
}

// Get returns the cached schedule, or ErrNotFound on a miss
func (c *ScheduleCache) Get(ctx context.Context, projectID uuid.UUID) (*StoredSchedule, error) {
	key := scheduleCachePrefix + projectID.String()
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read cached schedule")
	}

	var stored StoredSchedule
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached schedule")
	}
	return &stored, nil
}

// Invalidate drops the cached schedule for the project
func (c *ScheduleCache) Invalidate(ctx context.Context, projectID uuid.UUID) {
	key := scheduleCachePrefix + projectID.String()
	_ = c.client.Del(ctx, key).Err()
}

// ScheduleEvent notifies subscribers that a project's schedule changed
type ScheduleEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	Kind      string    `json:"kind"` // computed, resolved, restored
	Duration  int       `json:"duration"`
	Conflicts int       `json:"conflicts"`
	At        time.Time `json:"at"`
}

// Notifier publishes schedule events on a Redis channel for the upstream
// apps (Gantt views, dashboards) to react to.
type Notifier struct {
	client *redis.Client
}

// NewNotifier creates a notifier
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// Publish sends one event; failures are non-fatal for the caller
func (n *Notifier) Publish(ctx context.Context, event ScheduleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	return n.client.Publish(ctx, eventsChannel, payload).Err()
}
