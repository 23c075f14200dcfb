// Package cpm implements the classic two-pass critical path method over a
// validated dependency graph. ES/LF values are a fixed point of the
// precedence constraints: strict topological ordering guarantees
// single-pass correctness independent of which valid order is traversed.
package cpm

import (
	"time"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

// Compute runs the forward and backward pass and returns a fresh schedule
// result. The input graph is not modified.
func Compute(projectID uuid.UUID, g *graph.Graph) (*models.ScheduleResult, error) {
	order := g.TopoOrder()

	result := &models.ScheduleResult{
		ProjectID:  projectID,
		Tasks:      make(map[uuid.UUID]*models.TaskSchedule, len(order)),
		Order:      order,
		ComputedAt: time.Now(),
	}

	for _, id := range order {
		result.Tasks[id] = &models.TaskSchedule{
			TaskID:      id,
			IsMilestone: g.Tasks[id].IsMilestone(),
		}
	}

	forwardPass(g, result, order)

	// Total project duration is the latest earliest finish
	for _, ts := range result.Tasks {
		if ts.EF > result.Duration {
			result.Duration = ts.EF
		}
	}

	backwardPass(g, result, order)

	// A task with LS < ES has no feasible slot under the fixed constraints.
	// Report the constraining tasks instead of silently clamping.
	var infeasible []uuid.UUID
	for _, id := range order {
		ts := result.Tasks[id]
		if ts.LS < ts.ES {
			infeasible = append(infeasible, id)
		}
	}
	if len(infeasible) > 0 {
		return nil, &errors.InfeasibleError{TaskIDs: infeasible}
	}

	computeFloats(g, result, order)

	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	return result, nil
}

// forwardPass computes ES and EF in topological order. The earliest start
// is the tightest of all predecessor constraints, the task's fixed-start
// constraint, and the project start.
func forwardPass(g *graph.Graph, result *models.ScheduleResult, order []uuid.UUID) {
	for _, id := range order {
		task := g.Tasks[id]
		ts := result.Tasks[id]

		es := 0
		for _, edge := range g.RevAdj[id] {
			pred := result.Tasks[edge.From]
			candidate := earliestStartFrom(edge, pred, task.Duration)
			if candidate > es {
				es = candidate
			}
		}
		if task.FixedStart != nil && *task.FixedStart > es {
			es = *task.FixedStart
		}

		ts.ES = es
		ts.EF = es + task.Duration
		ts.Start = ts.ES
		ts.Finish = ts.EF
	}
}

// backwardPass computes LF and LS in reverse topological order. Tasks
// without successors finish by the project end, tightened by any
// must-finish-by constraint.
func backwardPass(g *graph.Graph, result *models.ScheduleResult, order []uuid.UUID) {
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		task := g.Tasks[id]
		ts := result.Tasks[id]

		lf := result.Duration
		if task.MustFinishBy != nil && *task.MustFinishBy < lf {
			lf = *task.MustFinishBy
		}
		for _, edge := range g.Adj[id] {
			succ := result.Tasks[edge.To]
			candidate := latestFinishFrom(edge, succ, task.Duration)
			if candidate < lf {
				lf = candidate
			}
		}

		ts.LF = lf
		ts.LS = lf - task.Duration
	}
}

// computeFloats derives total float, free float, and the critical flag.
// Free float bounds how far a task can slip without delaying any
// immediate successor; the leveling optimizer relies on it.
func computeFloats(g *graph.Graph, result *models.ScheduleResult, order []uuid.UUID) {
	for _, id := range order {
		ts := result.Tasks[id]
		ts.TotalFloat = ts.LS - ts.ES
		ts.IsCritical = ts.TotalFloat == 0

		free := result.Duration - ts.EF
		for _, edge := range g.Adj[id] {
			succ := result.Tasks[edge.To]
			slack := successorSlack(edge, ts, succ)
			if slack < free {
				free = slack
			}
		}
		if free < 0 {
			free = 0
		}
		ts.FreeFloat = free
	}
}

// earliestStartFrom translates one dependency edge into the lower bound it
// imposes on the successor's start. Lag may be negative (lead).
func earliestStartFrom(edge graph.Edge, pred *models.TaskSchedule, succDuration int) int {
	var candidate int
	switch edge.Type {
	case models.DependencySS:
		candidate = pred.ES + edge.Lag
	case models.DependencyFF:
		candidate = pred.EF + edge.Lag - succDuration
	case models.DependencySF:
		candidate = pred.ES + edge.Lag - succDuration
	default: // finish-to-start
		candidate = pred.EF + edge.Lag
	}
	if candidate < 0 {
		candidate = 0
	}
	return candidate
}

// latestFinishFrom translates one dependency edge into the upper bound it
// imposes on the predecessor's finish, symmetric to the forward formulas.
func latestFinishFrom(edge graph.Edge, succ *models.TaskSchedule, predDuration int) int {
	switch edge.Type {
	case models.DependencySS:
		return succ.LS - edge.Lag + predDuration
	case models.DependencyFF:
		return succ.LF - edge.Lag
	case models.DependencySF:
		return succ.LF - edge.Lag + predDuration
	default: // finish-to-start
		return succ.LS - edge.Lag
	}
}

// successorSlack measures how far the predecessor may slip before the
// successor's earliest values are violated.
func successorSlack(edge graph.Edge, pred, succ *models.TaskSchedule) int {
	switch edge.Type {
	case models.DependencySS:
		return succ.ES - (pred.ES + edge.Lag)
	case models.DependencyFF:
		return succ.EF - (pred.EF + edge.Lag)
	case models.DependencySF:
		return succ.EF - (pred.ES + edge.Lag)
	default: // finish-to-start
		return succ.ES - (pred.EF + edge.Lag)
	}
}
