package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskSchedule holds the computed schedule values for one task.
// ES/EF/LS/LF are the CPM values; Start/Finish are the scheduled times
// after resource leveling (equal to ES/EF when leveling shifted nothing).
type TaskSchedule struct {
	TaskID      uuid.UUID `json:"task_id"`
	ES          int       `json:"earliest_start"`
	EF          int       `json:"earliest_finish"`
	LS          int       `json:"latest_start"`
	LF          int       `json:"latest_finish"`
	Start       int       `json:"start"`
	Finish      int       `json:"finish"`
	TotalFloat  int       `json:"total_float"`
	FreeFloat   int       `json:"free_float"`
	IsCritical  bool      `json:"is_critical"`
	IsMilestone bool      `json:"is_milestone"`
}

// Clone returns a copy of the task schedule
func (ts *TaskSchedule) Clone() *TaskSchedule {
	c := *ts
	return &c
}

// ScheduleResult is the immutable output of one computation pass.
// It is never mutated in place, only replaced by a new pass.
type ScheduleResult struct {
	ProjectID    uuid.UUID                   `json:"project_id"`
	Tasks        map[uuid.UUID]*TaskSchedule `json:"tasks"`
	Order        []uuid.UUID                 `json:"order"` // topological order used for the passes
	CriticalPath []uuid.UUID                 `json:"critical_path"`
	Duration     int                         `json:"duration"`
	Assignments  []Assignment                `json:"assignments,omitempty"`
	Conflicts    []Conflict                  `json:"conflicts,omitempty"`
	ComputedAt   time.Time                   `json:"computed_at"`
}

// Clone returns a deep copy of the schedule result
func (r *ScheduleResult) Clone() *ScheduleResult {
	c := &ScheduleResult{
		ProjectID:  r.ProjectID,
		Duration:   r.Duration,
		ComputedAt: r.ComputedAt,
		Tasks:      make(map[uuid.UUID]*TaskSchedule, len(r.Tasks)),
	}
	for id, ts := range r.Tasks {
		c.Tasks[id] = ts.Clone()
	}
	c.Order = append([]uuid.UUID(nil), r.Order...)
	c.CriticalPath = append([]uuid.UUID(nil), r.CriticalPath...)
	c.Assignments = append([]Assignment(nil), r.Assignments...)
	c.Conflicts = append([]Conflict(nil), r.Conflicts...)
	return c
}

// Conflict is one detected scheduling problem and its resolution state
type Conflict struct {
	ID         uuid.UUID      `json:"id"`
	Type       ConflictType   `json:"type"`
	Status     ConflictStatus `json:"status"`
	TaskIDs    []uuid.UUID    `json:"task_ids"`
	ResourceID *uuid.UUID     `json:"resource_id,omitempty"`
	TimeUnit   *int           `json:"time_unit,omitempty"`
	Detail     string         `json:"detail"`
	Suggestion string         `json:"suggestion,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}

// NewConflict creates a conflict record in the detected state
func NewConflict(conflictType ConflictType, taskIDs []uuid.UUID, detail string) Conflict {
	return Conflict{
		ID:         uuid.New(),
		Type:       conflictType,
		Status:     ConflictDetected,
		TaskIDs:    taskIDs,
		Detail:     detail,
		DetectedAt: time.Now(),
	}
}

// Transition moves the conflict to a terminal state. Only conflicts in the
// detected state may transition.
func (c *Conflict) Transition(to ConflictStatus) bool {
	if c.Status != ConflictDetected {
		return false
	}
	switch to {
	case ConflictAutoResolved, ConflictPendingManual, ConflictDismissed:
		c.Status = to
		return true
	}
	return false
}

// Baseline is a named, timestamped, immutable snapshot of a schedule
// result plus the task list it was computed from
type Baseline struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ProjectID uuid.UUID       `json:"project_id" db:"project_id"`
	Label     string          `json:"label" db:"label"`
	Schedule  *ScheduleResult `json:"schedule"`
	Tasks     []Task          `json:"tasks"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TaskDelta describes per-task drift between a baseline and a current schedule
type TaskDelta struct {
	TaskID        uuid.UUID `json:"task_id"`
	StartDrift    int       `json:"start_drift"`
	FinishDrift   int       `json:"finish_drift"`
	DurationDrift int       `json:"duration_drift"`
}
