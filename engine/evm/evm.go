// Package evm computes earned value metrics and forecasts from a
// time-phased budget and a progress snapshot. Every division guards its
// denominator and reports the indeterminate sentinel instead of NaN or
// Infinity, since dashboards observe these values directly.
package evm

import (
	"time"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/models"
)

// Compute derives a fresh EVM snapshot for the given as-of date. The
// budget for each task is spread uniformly over its scheduled window;
// cancelled tasks contribute nothing to budget, plan, or earnings.
// Snapshots are recomputed whole each call to avoid incremental drift.
func Compute(projectID uuid.UUID, tasks []models.Task, schedule *models.ScheduleResult, asOf int) *models.EVMSnapshot {
	snapshot := &models.EVMSnapshot{
		ProjectID:  projectID,
		AsOf:       asOf,
		ComputedAt: time.Now(),
	}

	for i := range tasks {
		task := &tasks[i]
		if task.Status == models.StatusCancelled {
			continue
		}

		snapshot.BudgetAtCompletion += task.BudgetedCost
		snapshot.PlannedValue += task.BudgetedCost * plannedFraction(task, schedule, asOf)
		snapshot.EarnedValue += task.BudgetedCost * task.ActualFraction()
		snapshot.ActualCost += task.ActualCost
	}

	snapshot.ScheduleVariance = snapshot.EarnedValue - snapshot.PlannedValue
	snapshot.CostVariance = snapshot.EarnedValue - snapshot.ActualCost

	snapshot.SPI = models.Divide(snapshot.EarnedValue, snapshot.PlannedValue)
	snapshot.CPI = models.Divide(snapshot.EarnedValue, snapshot.ActualCost)

	// EAC = BAC / CPI, the "typical" forecasting method: future work is
	// assumed to continue at the observed cost efficiency.
	if snapshot.CPI.Indeterminate || snapshot.CPI.Value == 0 {
		snapshot.EstimateAtCompletion = models.IndeterminateRatio()
		snapshot.EstimateToComplete = models.IndeterminateRatio()
	} else {
		eac := snapshot.BudgetAtCompletion / snapshot.CPI.Value
		snapshot.EstimateAtCompletion = models.RatioOf(eac)
		snapshot.EstimateToComplete = models.RatioOf(eac - snapshot.ActualCost)
	}

	return snapshot
}

// plannedFraction returns how much of the task should be complete by the
// as-of date under a uniform spread of its budget over its scheduled
// window. Milestones are planned complete the moment their date passes.
func plannedFraction(task *models.Task, schedule *models.ScheduleResult, asOf int) float64 {
	ts, ok := schedule.Tasks[task.ID]
	if !ok {
		return 0
	}

	if task.Duration == 0 {
		if asOf >= ts.Start {
			return 1
		}
		return 0
	}

	switch {
	case asOf <= ts.Start:
		return 0
	case asOf >= ts.Finish:
		return 1
	default:
		return float64(asOf-ts.Start) / float64(ts.Finish-ts.Start)
	}
}
