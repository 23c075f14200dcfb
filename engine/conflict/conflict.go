// Package conflict scans a leveled schedule for problems the earlier
// passes should have prevented or that hard external constraints make
// unavoidable, and optionally resolves what can be fixed without touching
// the critical path.
package conflict

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

// Detector runs the independent conflict checks over one schedule
type Detector struct {
	logger zerolog.Logger
}

// NewDetector creates a conflict detector
func NewDetector(logger zerolog.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect scans for residual resource overlaps and date-constraint
// violations. It runs after leveling: any overlap found here means
// leveling failed its contract, which is logged and surfaced as a defect,
// never silently swallowed.
func (d *Detector) Detect(g *graph.Graph, schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource) []models.Conflict {
	var conflicts []models.Conflict
	conflicts = append(conflicts, d.detectOverlaps(schedule, resources)...)
	conflicts = append(conflicts, d.detectDateViolations(g, schedule)...)
	return conflicts
}

// detectOverlaps verifies the post-leveling capacity invariant for every
// resource and time unit.
func (d *Detector) detectOverlaps(schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource) []models.Conflict {
	type slot struct {
		resID uuid.UUID
		unit  int
	}
	usage := make(map[slot]int)
	holders := make(map[slot][]uuid.UUID)

	for _, a := range schedule.Assignments {
		for unit := a.Start; unit < a.Finish; unit++ {
			s := slot{resID: a.ResourceID, unit: unit}
			usage[s] += a.Demand
			holders[s] = append(holders[s], a.TaskID)
		}
	}

	slots := make([]slot, 0, len(usage))
	for s := range usage {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].resID != slots[j].resID {
			return slots[i].resID.String() < slots[j].resID.String()
		}
		return slots[i].unit < slots[j].unit
	})

	var conflicts []models.Conflict
	for _, s := range slots {
		res, ok := resources[s.resID]
		if !ok {
			continue
		}
		demand := usage[s]
		capacity := res.Capacity
		if !res.Calendar.IsWorking(s.unit) {
			capacity = 0
		}
		if demand <= capacity {
			continue
		}

		resID := s.resID
		unit := s.unit
		taskIDs := append([]uuid.UUID(nil), holders[s]...)

		d.logger.Error().
			Str("resource_id", resID.String()).
			Int("time_unit", unit).
			Int("demand", demand).
			Int("capacity", capacity).
			Msg("residual resource overlap after leveling")

		c := models.NewConflict(models.ConflictResourceOverlap, taskIDs,
			fmt.Sprintf("resource overbooked at time unit %d: demand %d exceeds capacity %d", unit, demand, capacity))
		c.ResourceID = &resID
		c.TimeUnit = &unit
		conflicts = append(conflicts, c)
	}
	return conflicts
}

// detectDateViolations checks each task's scheduled window against its
// hard external constraints.
func (d *Detector) detectDateViolations(g *graph.Graph, schedule *models.ScheduleResult) []models.Conflict {
	var conflicts []models.Conflict
	for _, id := range schedule.Order {
		task := g.Tasks[id]
		ts := schedule.Tasks[id]

		if task.MustFinishBy != nil && ts.Finish > *task.MustFinishBy {
			c := models.NewConflict(models.ConflictDateConstraint, []uuid.UUID{id},
				fmt.Sprintf("task finishes at %d but must finish by %d", ts.Finish, *task.MustFinishBy))
			conflicts = append(conflicts, c)
		}
		if task.FixedStart != nil && ts.Start < *task.FixedStart {
			c := models.NewConflict(models.ConflictDateConstraint, []uuid.UUID{id},
				fmt.Sprintf("task starts at %d before its fixed start %d", ts.Start, *task.FixedStart))
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// FromCycle builds the conflict record for a detected dependency cycle,
// including the suggested edge to break.
func FromCycle(g *graph.Graph, cycle []uuid.UUID) models.Conflict {
	c := models.NewConflict(models.ConflictCircularDependency, append([]uuid.UUID(nil), cycle...),
		fmt.Sprintf("dependency cycle across %d tasks", len(cycle)))
	if g != nil {
		if dep, ok := g.BreakSuggestion(cycle); ok {
			c.Suggestion = fmt.Sprintf("remove the dependency %s -> %s (most recently added edge on the cycle)",
				dep.PredecessorID, dep.SuccessorID)
		}
	}
	return c
}
