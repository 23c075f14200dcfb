package evm

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/cpm"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

func projectTask(id uuid.UUID, duration int, budget, actual, pct float64) models.Task {
	return models.Task{
		ID:              id,
		Duration:        duration,
		DurationMode:    models.DurationFixed,
		Status:          models.StatusInProgress,
		PercentComplete: pct,
		BudgetedCost:    budget,
		ActualCost:      actual,
	}
}

func schedule(t *testing.T, tasks []models.Task, deps []models.Dependency) *models.ScheduleResult {
	t.Helper()
	g, err := graph.Build(tasks, deps)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	result, err := cpm.Compute(uuid.New(), g)
	if err != nil {
		t.Fatalf("cpm compute failed: %v", err)
	}
	return result
}

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}

func assertRatio(t *testing.T, name string, got models.Ratio, want float64) {
	t.Helper()
	if got.Indeterminate {
		t.Errorf("%s: unexpectedly indeterminate", name)
		return
	}
	if math.Abs(got.Value-want) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", name, want, got.Value)
	}
}

func TestCompute_VariancesAndIndices(t *testing.T) {
	a := uuid.New()
	// Single task, budget 1000, fully planned by the as-of date, 80%
	// complete, 900 spent: PV=1000 EV=800 AC=900
	tasks := []models.Task{projectTask(a, 10, 1000, 900, 80)}
	sched := schedule(t, tasks, nil)

	snap := Compute(uuid.New(), tasks, sched, 10)

	assertFloat(t, "PV", snap.PlannedValue, 1000)
	assertFloat(t, "EV", snap.EarnedValue, 800)
	assertFloat(t, "AC", snap.ActualCost, 900)
	assertFloat(t, "BAC", snap.BudgetAtCompletion, 1000)
	assertFloat(t, "SV", snap.ScheduleVariance, -200)
	assertFloat(t, "CV", snap.CostVariance, -100)
	assertRatio(t, "SPI", snap.SPI, 0.8)
	assertRatio(t, "CPI", snap.CPI, 800.0/900.0)
	assertRatio(t, "EAC", snap.EstimateAtCompletion, 1000/(800.0/900.0))
	assertRatio(t, "ETC", snap.EstimateToComplete, 1000/(800.0/900.0)-900)
}

func TestCompute_UniformSpreadMidWindow(t *testing.T) {
	a := uuid.New()
	tasks := []models.Task{projectTask(a, 10, 500, 0, 0)}
	sched := schedule(t, tasks, nil)

	snap := Compute(uuid.New(), tasks, sched, 4)
	assertFloat(t, "PV at 40% elapsed", snap.PlannedValue, 200)

	snap = Compute(uuid.New(), tasks, sched, 0)
	assertFloat(t, "PV before start", snap.PlannedValue, 0)

	snap = Compute(uuid.New(), tasks, sched, 25)
	assertFloat(t, "PV after finish", snap.PlannedValue, 500)
}

func TestCompute_IndeterminateIndices(t *testing.T) {
	a := uuid.New()
	// Nothing planned yet and nothing spent: both denominators are zero
	tasks := []models.Task{projectTask(a, 10, 1000, 0, 0)}
	sched := schedule(t, tasks, nil)

	snap := Compute(uuid.New(), tasks, sched, 0)

	if !snap.SPI.Indeterminate {
		t.Error("expected SPI indeterminate when PV is zero")
	}
	if !snap.CPI.Indeterminate {
		t.Error("expected CPI indeterminate when AC is zero")
	}
	if !snap.EstimateAtCompletion.Indeterminate {
		t.Error("expected EAC indeterminate when CPI is indeterminate")
	}
	if !snap.EstimateToComplete.Indeterminate {
		t.Error("expected ETC indeterminate when CPI is indeterminate")
	}
}

func TestCompute_ZeroCPIForecastIndeterminate(t *testing.T) {
	a := uuid.New()
	// Money spent but nothing earned: CPI = 0, BAC/CPI is undefined
	tasks := []models.Task{projectTask(a, 10, 1000, 400, 0)}
	sched := schedule(t, tasks, nil)

	snap := Compute(uuid.New(), tasks, sched, 5)

	assertRatio(t, "CPI", snap.CPI, 0)
	if !snap.EstimateAtCompletion.Indeterminate {
		t.Error("expected EAC indeterminate when CPI is zero")
	}
}

func TestCompute_CancelledTasksExcluded(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	cancelled := projectTask(b, 5, 700, 300, 50)
	cancelled.Status = models.StatusCancelled
	tasks := []models.Task{projectTask(a, 10, 1000, 900, 80), cancelled}
	sched := schedule(t, tasks, nil)

	snap := Compute(uuid.New(), tasks, sched, 10)

	assertFloat(t, "BAC", snap.BudgetAtCompletion, 1000)
	assertFloat(t, "PV", snap.PlannedValue, 1000)
	assertFloat(t, "EV", snap.EarnedValue, 800)
	assertFloat(t, "AC", snap.ActualCost, 900)
}

func TestCompute_MilestonePlannedAtItsDate(t *testing.T) {
	a, m := uuid.New(), uuid.New()
	milestone := projectTask(m, 0, 100, 0, 0)
	tasks := []models.Task{projectTask(a, 4, 0, 0, 100), milestone}
	deps := []models.Dependency{{PredecessorID: a, SuccessorID: m, Type: models.DependencyFS}}
	sched := schedule(t, tasks, deps)

	snap := Compute(uuid.New(), tasks, sched, 3)
	assertFloat(t, "PV before milestone date", snap.PlannedValue, 0)

	snap = Compute(uuid.New(), tasks, sched, 4)
	assertFloat(t, "PV at milestone date", snap.PlannedValue, 100)
}

func TestCompute_MultiTaskAggregation(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tasks := []models.Task{
		projectTask(a, 4, 400, 200, 50),
		projectTask(b, 6, 600, 100, 25),
	}
	deps := []models.Dependency{{PredecessorID: a, SuccessorID: b, Type: models.DependencyFS}}
	sched := schedule(t, tasks, deps)

	// a spans [0,4), b spans [4,10); at unit 6 a is fully planned and b is
	// one third planned
	snap := Compute(uuid.New(), tasks, sched, 6)

	assertFloat(t, "PV", snap.PlannedValue, 400+200)
	assertFloat(t, "EV", snap.EarnedValue, 200+150)
	assertFloat(t, "AC", snap.ActualCost, 300)
	assertFloat(t, "BAC", snap.BudgetAtCompletion, 1000)
}
