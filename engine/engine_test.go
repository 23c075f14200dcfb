package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
)

func task(id uuid.UUID, duration int) models.Task {
	return models.Task{
		ID:           id,
		Duration:     duration,
		DurationMode: models.DurationFixed,
		Status:       models.StatusNotStarted,
	}
}

func TestCompute_FullPipeline(t *testing.T) {
	r := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	ta := task(a, 5)
	ta.ResourceDemands = map[uuid.UUID]int{r: 1}
	tb := task(b, 3)
	tb.ResourceDemands = map[uuid.UUID]int{r: 1}
	tc := task(c, 4)

	in := Input{
		ProjectID: uuid.New(),
		Tasks:     []models.Task{ta, tb, tc},
		Dependencies: []models.Dependency{
			{PredecessorID: a, SuccessorID: b, Type: models.DependencyFS},
			{PredecessorID: b, SuccessorID: c, Type: models.DependencyFS},
		},
		Resources: []models.Resource{{ID: r, Name: "crew", Capacity: 1}},
	}

	result, err := New().Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if result.ProjectID != in.ProjectID {
		t.Error("result not stamped with the input project id")
	}
	if result.Duration != 12 {
		t.Errorf("expected duration 12, got %d", result.Duration)
	}
	if len(result.CriticalPath) != 3 {
		t.Errorf("expected 3 critical tasks, got %d", len(result.CriticalPath))
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", result.Conflicts)
	}
	if len(result.Assignments) != 2 {
		t.Errorf("expected 2 assignments, got %d", len(result.Assignments))
	}
}

func TestCompute_CycleFailsWithConflictMaterial(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	in := Input{
		ProjectID: uuid.New(),
		Tasks:     []models.Task{task(a, 1), task(b, 1), task(c, 1)},
		Dependencies: []models.Dependency{
			{PredecessorID: a, SuccessorID: b, Type: models.DependencyFS},
			{PredecessorID: b, SuccessorID: c, Type: models.DependencyFS},
			{PredecessorID: c, SuccessorID: a, Type: models.DependencyFS},
		},
	}

	_, err := New().Compute(in)
	if !errors.Is(err, errors.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}

	var cycleErr *errors.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatal("expected CycleError")
	}

	conflict := CycleConflict(in, cycleErr.Path)
	if conflict.Type != models.ConflictCircularDependency {
		t.Errorf("expected circular_dependency conflict, got %s", conflict.Type)
	}
	if conflict.Suggestion == "" {
		t.Error("expected a break suggestion on the conflict")
	}
}

func TestComputeAndResolve_AttachesFinalStates(t *testing.T) {
	r := uuid.New()
	a, b := uuid.New(), uuid.New()
	deadline := 5

	ta := task(a, 4)
	ta.ResourceDemands = map[uuid.UUID]int{r: 1}
	tb := task(b, 3)
	tb.ResourceDemands = map[uuid.UUID]int{r: 1}
	tb.MustFinishBy = &deadline

	in := Input{
		ProjectID: uuid.New(),
		Tasks:     []models.Task{ta, tb},
		Resources: []models.Resource{{ID: r, Name: "crane", Capacity: 1}},
	}

	result, err := New().ComputeAndResolve(in)
	if err != nil {
		t.Fatalf("compute and resolve failed: %v", err)
	}

	if len(result.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(result.Conflicts))
	}
	c := result.Conflicts[0]
	if c.Type != models.ConflictDateConstraint {
		t.Errorf("expected date_constraint, got %s", c.Type)
	}
	// Single-capacity crane leaves no earlier slot: pending manual review
	if c.Status != models.ConflictPendingManual {
		t.Errorf("expected pending_manual, got %s", c.Status)
	}
}

func TestComputeAndResolve_NoConflictsPassthrough(t *testing.T) {
	a := uuid.New()
	in := Input{ProjectID: uuid.New(), Tasks: []models.Task{task(a, 3)}}

	result, err := New().ComputeAndResolve(in)
	if err != nil {
		t.Fatalf("compute and resolve failed: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", result.Conflicts)
	}
	if result.Duration != 3 {
		t.Errorf("expected duration 3, got %d", result.Duration)
	}
}

func TestAnalyzeEVM_UsesScheduleWindows(t *testing.T) {
	a := uuid.New()
	ta := task(a, 10)
	ta.Status = models.StatusInProgress
	ta.BudgetedCost = 1000
	ta.ActualCost = 900
	ta.PercentComplete = 80

	in := Input{ProjectID: uuid.New(), Tasks: []models.Task{ta}}

	eng := New()
	schedule, err := eng.Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	snap := eng.AnalyzeEVM(in, schedule, 10)
	if snap.ProjectID != in.ProjectID {
		t.Error("snapshot not stamped with the project id")
	}
	if snap.ScheduleVariance != -200 {
		t.Errorf("expected SV -200, got %v", snap.ScheduleVariance)
	}
	if snap.CostVariance != -100 {
		t.Errorf("expected CV -100, got %v", snap.CostVariance)
	}
}

func TestCompute_InputNotMutated(t *testing.T) {
	r := uuid.New()
	a, b := uuid.New(), uuid.New()
	ta := task(a, 4)
	ta.ResourceDemands = map[uuid.UUID]int{r: 1}
	tb := task(b, 3)
	tb.ResourceDemands = map[uuid.UUID]int{r: 1}

	in := Input{
		ProjectID: uuid.New(),
		Tasks:     []models.Task{ta, tb},
		Resources: []models.Resource{{ID: r, Name: "pool", Capacity: 1}},
	}

	if _, err := New().Compute(in); err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if in.Tasks[0].Duration != 4 || in.Tasks[1].Duration != 3 {
		t.Error("compute mutated input task durations")
	}
	for _, task := range in.Tasks {
		for _, demand := range task.ResourceDemands {
			if demand != 1 {
				t.Error("compute mutated input resource demands")
			}
		}
	}
}
