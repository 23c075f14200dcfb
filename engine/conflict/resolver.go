package conflict

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

// Resolver applies the opt-in auto-resolution policy: shift non-critical
// tasks within their float first; critical-path changes (which alter
// overall duration) are only ever suggested for human confirmation, never
// applied.
type Resolver struct {
	logger zerolog.Logger
}

// NewResolver creates a conflict resolver
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve attempts to fix the detected conflicts and returns the adjusted
// schedule plus the conflicts with their final states. The input schedule
// is not modified. Resolution is only performed when the caller explicitly
// asks for it; it is never applied silently by the computation pipeline.
func (r *Resolver) Resolve(g *graph.Graph, schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource, conflicts []models.Conflict) (*models.ScheduleResult, []models.Conflict) {
	result := schedule.Clone()
	out := make([]models.Conflict, len(conflicts))
	copy(out, conflicts)

	for i := range out {
		c := &out[i]
		if c.Status != models.ConflictDetected {
			continue
		}

		switch c.Type {
		case models.ConflictDateConstraint:
			r.resolveDateConflict(g, result, resources, c)
		case models.ConflictResourceOverlap:
			// A residual overlap is a leveling defect; re-placing tasks here
			// would mask it instead of surfacing it.
			c.Suggestion = "re-run the computation; if the overlap persists, report it as an engine defect"
			c.Transition(models.ConflictPendingManual)
		case models.ConflictCircularDependency:
			// Cycles are structural: breaking an edge changes the input, which
			// only the owning domain may do.
			c.Transition(models.ConflictPendingManual)
		}
	}

	return result, out
}

// resolveDateConflict tries to pull the violating task to an earlier,
// capacity-feasible start that satisfies its must-finish-by constraint.
func (r *Resolver) resolveDateConflict(g *graph.Graph, result *models.ScheduleResult, resources map[uuid.UUID]*models.Resource, c *models.Conflict) {
	if len(c.TaskIDs) != 1 {
		c.Transition(models.ConflictPendingManual)
		return
	}
	id := c.TaskIDs[0]
	task := g.Tasks[id]
	ts := result.Tasks[id]

	if task.MustFinishBy == nil || ts.Finish <= *task.MustFinishBy {
		// Fixed-start violations cannot be fixed by delaying further
		c.Transition(models.ConflictPendingManual)
		return
	}

	latestStart := *task.MustFinishBy - task.Duration
	lb := predecessorBound(g, result, id)

	if ts.IsCritical || latestStart < lb {
		c.Suggestion = fmt.Sprintf(
			"no float-preserving fix exists: relax the must-finish-by constraint or shorten the task (needs start <= %d, earliest feasible %d)",
			latestStart, lb)
		c.Transition(models.ConflictPendingManual)
		return
	}

	usage := buildUsage(result, id)
	for start := lb; start <= latestStart; start++ {
		if fitsAt(task, resources, usage, start) {
			shift := start - ts.Start
			ts.Start = start
			ts.Finish = start + task.Duration
			for j := range result.Assignments {
				if result.Assignments[j].TaskID == id {
					result.Assignments[j].Start = start
					result.Assignments[j].Finish = start + task.Duration
				}
			}
			r.logger.Info().
				Str("task_id", id.String()).
				Int("shift", shift).
				Msg("date conflict auto-resolved within float")
			c.Suggestion = fmt.Sprintf("shifted task start by %d time units", shift)
			c.Transition(models.ConflictAutoResolved)
			return
		}
	}

	c.Suggestion = "no capacity-feasible earlier slot; relax the constraint or add resource capacity"
	c.Transition(models.ConflictPendingManual)
}

// predecessorBound computes the earliest start the task's predecessors
// permit given their scheduled times.
func predecessorBound(g *graph.Graph, result *models.ScheduleResult, id uuid.UUID) int {
	task := g.Tasks[id]
	lb := 0
	if task.FixedStart != nil {
		lb = *task.FixedStart
	}
	for _, edge := range g.RevAdj[id] {
		pred := result.Tasks[edge.From]
		var candidate int
		switch edge.Type {
		case models.DependencySS:
			candidate = pred.Start + edge.Lag
		case models.DependencyFF:
			candidate = pred.Finish + edge.Lag - task.Duration
		case models.DependencySF:
			candidate = pred.Start + edge.Lag - task.Duration
		default: // finish-to-start
			candidate = pred.Finish + edge.Lag
		}
		if candidate > lb {
			lb = candidate
		}
	}
	if lb < 0 {
		lb = 0
	}
	return lb
}

// buildUsage reconstructs per-resource usage from the schedule's
// assignments, excluding the task being moved.
func buildUsage(result *models.ScheduleResult, exclude uuid.UUID) map[uuid.UUID]map[int]int {
	usage := make(map[uuid.UUID]map[int]int)
	for _, a := range result.Assignments {
		if a.TaskID == exclude {
			continue
		}
		if usage[a.ResourceID] == nil {
			usage[a.ResourceID] = make(map[int]int)
		}
		for unit := a.Start; unit < a.Finish; unit++ {
			usage[a.ResourceID][unit] += a.Demand
		}
	}
	return usage
}

func fitsAt(task *models.Task, resources map[uuid.UUID]*models.Resource, usage map[uuid.UUID]map[int]int, start int) bool {
	for resID, demand := range task.ResourceDemands {
		if demand <= 0 {
			continue
		}
		res, ok := resources[resID]
		if !ok {
			return false
		}
		for unit := start; unit < start+task.Duration; unit++ {
			if !res.Calendar.IsWorking(unit) {
				return false
			}
			if usage[resID][unit]+demand > res.Capacity {
				return false
			}
		}
	}
	return true
}
