// Package baseline snapshots computed schedules for later comparison and
// restoration. Baselines are immutable once saved: there is no update
// operation, only create, read, and restore.
package baseline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
)

// Store persists baselines. The storage mechanism is an external
// collaborator; the engine only requires create/read semantics.
type Store interface {
	Save(ctx context.Context, b *models.Baseline) error
	Get(ctx context.Context, id uuid.UUID) (*models.Baseline, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Baseline, error)
}

// Manager implements the save/compare/restore operations over a Store
type Manager struct {
	store Store
}

// NewManager creates a baseline manager backed by the given store
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Save snapshots the schedule and the task list it was computed from
// under a caller-chosen label. The copies are deep: later recomputations
// cannot reach back into a saved baseline.
func (m *Manager) Save(ctx context.Context, label string, schedule *models.ScheduleResult, tasks []models.Task) (*models.Baseline, error) {
	taskCopies := make([]models.Task, len(tasks))
	for i := range tasks {
		taskCopies[i] = tasks[i].Clone()
	}

	b := &models.Baseline{
		ID:        uuid.New(),
		ProjectID: schedule.ProjectID,
		Label:     label,
		Schedule:  schedule.Clone(),
		Tasks:     taskCopies,
		CreatedAt: time.Now(),
	}

	if err := m.store.Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "save baseline")
	}
	return b, nil
}

// Restore returns a copy of the baseline's schedule result. It does not
// mutate the live task set; pushing restored attributes back into the
// owning domain is the caller's explicit, auditable action.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID) (*models.ScheduleResult, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.Schedule.Clone(), nil
}

// Compare reports per-task drift between a saved baseline and the current
// schedule, ordered by the current schedule's task order. Tasks present
// on only one side are skipped; drift is meaningless for them.
func (m *Manager) Compare(ctx context.Context, id uuid.UUID, current *models.ScheduleResult) ([]models.TaskDelta, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	deltas := make([]models.TaskDelta, 0, len(current.Order))
	for _, taskID := range current.Order {
		cur := current.Tasks[taskID]
		base, ok := b.Schedule.Tasks[taskID]
		if !ok {
			continue
		}
		deltas = append(deltas, models.TaskDelta{
			TaskID:        taskID,
			StartDrift:    cur.Start - base.Start,
			FinishDrift:   cur.Finish - base.Finish,
			DurationDrift: (cur.Finish - cur.Start) - (base.Finish - base.Start),
		})
	}
	return deltas, nil
}

// List returns the project's saved baselines
func (m *Manager) List(ctx context.Context, projectID uuid.UUID) ([]*models.Baseline, error) {
	return m.store.List(ctx, projectID)
}
