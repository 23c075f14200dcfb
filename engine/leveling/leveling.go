// Package leveling shifts tasks within and, when unavoidable, beyond their
// float to eliminate resource overallocation. The greedy scheme here is a
// heuristic, not an optimal solver: it may extend the project further than
// a constraint-programming solution would, but it never violates capacity
// or precedence and is deterministic for identical input.
package leveling

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

// GreedyLeveler is the default Strategy: a serial schedule generation
// scheme placing tasks one at a time in priority order (ascending ES,
// descending duration, then task id) at their earliest capacity-feasible
// start.
type GreedyLeveler struct{}

// NewGreedyLeveler creates the default leveling strategy
func NewGreedyLeveler() *GreedyLeveler {
	return &GreedyLeveler{}
}

// Level implements Strategy. It returns a new schedule result; the input
// schedule is not modified.
func (l *GreedyLeveler) Level(g *graph.Graph, schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource) (*models.ScheduleResult, error) {
	if err := validateDemands(g, resources); err != nil {
		return nil, err
	}

	result := schedule.Clone()
	result.Assignments = nil

	usage := make(map[uuid.UUID]map[int]int, len(resources))
	for id := range resources {
		usage[id] = make(map[int]int)
	}

	horizon := searchHorizon(g, schedule, resources)

	placed := make(map[uuid.UUID]bool, len(g.Tasks))
	for len(placed) < len(g.Tasks) {
		id := nextEligible(g, schedule, placed)

		task := g.Tasks[id]
		ts := result.Tasks[id]

		lb := startLowerBound(g, result, placed, id)
		start, err := findStart(task, resources, usage, lb, horizon)
		if err != nil {
			return nil, err
		}

		ts.Start = start
		ts.Finish = start + task.Duration
		place(task, usage, start)
		placed[id] = true

		for _, resID := range sortedDemandIDs(task) {
			result.Assignments = append(result.Assignments, models.Assignment{
				TaskID:     id,
				ResourceID: resID,
				Demand:     task.ResourceDemands[resID],
				Start:      start,
				Finish:     start + task.Duration,
			})
		}
	}

	result.Duration = 0
	for _, ts := range result.Tasks {
		if ts.Finish > result.Duration {
			result.Duration = ts.Finish
		}
	}

	return result, nil
}

// validateDemands fails fast when a task demands an unknown resource or
// more of a resource than its absolute capacity; without this check the
// placement search below would never find a feasible slot.
func validateDemands(g *graph.Graph, resources map[uuid.UUID]*models.Resource) error {
	for _, id := range g.TaskIDs() {
		task := g.Tasks[id]
		for _, resID := range sortedDemandIDs(task) {
			demand := task.ResourceDemands[resID]
			if demand <= 0 {
				continue
			}
			res, ok := resources[resID]
			if !ok {
				return &errors.UnknownResourceError{TaskID: id, ResourceID: resID}
			}
			if demand > res.Capacity {
				return &errors.OverdemandError{
					TaskID:     id,
					ResourceID: resID,
					Demand:     demand,
					Capacity:   res.Capacity,
				}
			}
		}
	}
	return nil
}

// nextEligible picks the highest-priority task whose predecessors are all
// placed. Priority is ascending ES, descending duration, then ascending
// task id; the order is a policy default, not a business rule.
func nextEligible(g *graph.Graph, schedule *models.ScheduleResult, placed map[uuid.UUID]bool) uuid.UUID {
	var eligible []uuid.UUID
	for _, id := range g.TaskIDs() {
		if placed[id] {
			continue
		}
		ready := true
		for _, edge := range g.RevAdj[id] {
			if !placed[edge.From] {
				ready = false
				break
			}
		}
		if ready {
			eligible = append(eligible, id)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := schedule.Tasks[eligible[i]], schedule.Tasks[eligible[j]]
		if a.ES != b.ES {
			return a.ES < b.ES
		}
		da, db := g.Tasks[eligible[i]].Duration, g.Tasks[eligible[j]].Duration
		if da != db {
			return da > db
		}
		return eligible[i].String() < eligible[j].String()
	})

	return eligible[0]
}

// startLowerBound computes the earliest start permitted by already placed
// predecessors, the CPM earliest start, and any fixed-start constraint.
func startLowerBound(g *graph.Graph, result *models.ScheduleResult, placed map[uuid.UUID]bool, id uuid.UUID) int {
	task := g.Tasks[id]
	lb := result.Tasks[id].ES

	for _, edge := range g.RevAdj[id] {
		if !placed[edge.From] {
			continue
		}
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

// findStart scans forward from the lower bound for the first start where
// every demanded resource has capacity and is working across the task's
// whole window.
func findStart(task *models.Task, resources map[uuid.UUID]*models.Resource, usage map[uuid.UUID]map[int]int, lb, horizon int) (int, error) {
	demandIDs := sortedDemandIDs(task)
	if len(demandIDs) == 0 || task.Duration == 0 {
		return lb, nil
	}

	for start := lb; start <= lb+horizon; start++ {
		if fits(task, demandIDs, resources, usage, start) {
			return start, nil
		}
	}

	// Unreachable when validateDemands passed; surfaced rather than looping
	return 0, errors.Wrap(
		fmt.Errorf("no feasible start for task %s within horizon %d", task.ID, horizon),
		"leveling failed",
	)
}

func fits(task *models.Task, demandIDs []uuid.UUID, resources map[uuid.UUID]*models.Resource, usage map[uuid.UUID]map[int]int, start int) bool {
	for _, resID := range demandIDs {
		demand := task.ResourceDemands[resID]
		if demand <= 0 {
			continue
		}
		res := resources[resID]
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

func place(task *models.Task, usage map[uuid.UUID]map[int]int, start int) {
	for resID, demand := range task.ResourceDemands {
		if demand <= 0 {
			continue
		}
		if usage[resID] == nil {
			usage[resID] = make(map[int]int)
		}
		for unit := start; unit < start+task.Duration; unit++ {
			usage[resID][unit] += demand
		}
	}
}

// searchHorizon bounds the placement scan. Serially scheduling every task
// after all others plus skipping every non-working unit is always feasible,
// so a start below this bound must exist.
func searchHorizon(g *graph.Graph, schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource) int {
	horizon := schedule.Duration
	for _, task := range g.Tasks {
		horizon += task.Duration
	}
	for _, res := range resources {
		if res.Calendar != nil {
			horizon += len(res.Calendar.NonWorking)
		}
	}
	return horizon + 1
}

func sortedDemandIDs(task *models.Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(task.ResourceDemands))
	for id := range task.ResourceDemands {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
