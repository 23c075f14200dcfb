package models

import (
	"github.com/google/uuid"
)

// Task is the scheduling engine's view of a single unit of work.
// The engine treats tasks as read-only input for one computation pass;
// mutation (progress, actual cost) belongs to the owning domain.
type Task struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Duration     int          `json:"duration" db:"duration"` // in whole time units (days)
	DurationMode DurationMode `json:"duration_mode" db:"duration_mode"`
	Status       Status       `json:"status" db:"status"`

	// Progress tracking, supplied by the upstream system
	PercentComplete float64 `json:"percent_complete" db:"percent_complete"` // 0-100
	BudgetedCost    float64 `json:"budgeted_cost" db:"budgeted_cost"`
	ActualCost      float64 `json:"actual_cost" db:"actual_cost"`

	// Hard external constraints, in time units from project start
	FixedStart   *int `json:"fixed_start,omitempty" db:"fixed_start"`
	MustFinishBy *int `json:"must_finish_by,omitempty" db:"must_finish_by"`

	// ResourceDemands maps resource id to units demanded per time unit
	ResourceDemands map[uuid.UUID]int `json:"resource_demands,omitempty" db:"resource_demands"`
}

// IsMilestone returns true if the task has zero duration
func (t *Task) IsMilestone() bool {
	return t.Duration == 0
}

// ActualFraction returns the actual percent complete as a 0-1 fraction,
// clamped to the valid range
func (t *Task) ActualFraction() float64 {
	pct := t.PercentComplete
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct / 100
}

// Clone returns a deep copy of the task
func (t *Task) Clone() Task {
	c := *t
	if t.FixedStart != nil {
		v := *t.FixedStart
		c.FixedStart = &v
	}
	if t.MustFinishBy != nil {
		v := *t.MustFinishBy
		c.MustFinishBy = &v
	}
	if t.ResourceDemands != nil {
		c.ResourceDemands = make(map[uuid.UUID]int, len(t.ResourceDemands))
		for k, v := range t.ResourceDemands {
			c.ResourceDemands[k] = v
		}
	}
	return c
}

// Dependency is an ordered precedence relation between two tasks.
// Lag is signed; negative lag expresses lead time.
type Dependency struct {
	PredecessorID uuid.UUID      `json:"predecessor_id" db:"predecessor_id"`
	SuccessorID   uuid.UUID      `json:"successor_id" db:"successor_id"`
	Type          DependencyType `json:"dependency_type" db:"dependency_type"`
	Lag           int            `json:"lag" db:"lag"`
}

// Calendar marks non-working time units for a resource. A nil calendar
// means every time unit is working.
type Calendar struct {
	NonWorking map[int]bool `json:"non_working,omitempty"`
}

// IsWorking reports whether the given time unit is a working period
func (c *Calendar) IsWorking(unit int) bool {
	if c == nil {
		return true
	}
	return !c.NonWorking[unit]
}

// Resource is a constrained capacity pool tasks draw from
type Resource struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Capacity int       `json:"capacity" db:"capacity"` // units available per time unit
	Calendar *Calendar `json:"calendar,omitempty"`
}

// Assignment places a task's demand on a resource over a time window.
// Assignments are derived from tasks and resources by the leveling pass,
// never created independently.
type Assignment struct {
	TaskID     uuid.UUID `json:"task_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Demand     int       `json:"demand"`
	Start      int       `json:"start"`  // inclusive
	Finish     int       `json:"finish"` // exclusive
}
