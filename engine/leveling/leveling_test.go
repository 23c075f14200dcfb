package leveling

import (
	"testing"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/cpm"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

func task(id uuid.UUID, duration int, demands map[uuid.UUID]int) models.Task {
	return models.Task{
		ID:              id,
		Duration:        duration,
		DurationMode:    models.DurationFixed,
		Status:          models.StatusNotStarted,
		ResourceDemands: demands,
	}
}

func fsDep(pred, succ uuid.UUID) models.Dependency {
	return models.Dependency{PredecessorID: pred, SuccessorID: succ, Type: models.DependencyFS}
}

func level(t *testing.T, tasks []models.Task, deps []models.Dependency, resources []models.Resource) (*graph.Graph, *models.ScheduleResult) {
	t.Helper()
	g, err := graph.Build(tasks, deps)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	schedule, err := cpm.Compute(uuid.New(), g)
	if err != nil {
		t.Fatalf("cpm compute failed: %v", err)
	}
	leveled, err := NewGreedyLeveler().Level(g, schedule, ResourceMap(resources))
	if err != nil {
		t.Fatalf("leveling failed: %v", err)
	}
	return g, leveled
}

// assertCapacityRespected rebuilds per-unit usage from the assignments and
// checks it never exceeds capacity or lands on a non-working unit.
func assertCapacityRespected(t *testing.T, result *models.ScheduleResult, resources []models.Resource) {
	t.Helper()
	byID := ResourceMap(resources)
	usage := make(map[uuid.UUID]map[int]int)
	for _, a := range result.Assignments {
		if usage[a.ResourceID] == nil {
			usage[a.ResourceID] = make(map[int]int)
		}
		for unit := a.Start; unit < a.Finish; unit++ {
			usage[a.ResourceID][unit] += a.Demand
		}
	}
	for resID, units := range usage {
		res := byID[resID]
		for unit, demand := range units {
			if demand > res.Capacity {
				t.Errorf("resource %s overallocated at unit %d: %d > %d", resID, unit, demand, res.Capacity)
			}
			if !res.Calendar.IsWorking(unit) {
				t.Errorf("resource %s assigned on non-working unit %d", resID, unit)
			}
		}
	}
}

func assertPrecedenceRespected(t *testing.T, g *graph.Graph, result *models.ScheduleResult) {
	t.Helper()
	for from, edges := range g.Adj {
		pred := result.Tasks[from]
		for _, edge := range edges {
			succ := result.Tasks[edge.To]
			var ok bool
			switch edge.Type {
			case models.DependencySS:
				ok = succ.Start >= pred.Start+edge.Lag
			case models.DependencyFF:
				ok = succ.Finish >= pred.Finish+edge.Lag
			case models.DependencySF:
				ok = succ.Finish >= pred.Start+edge.Lag
			default:
				ok = succ.Start >= pred.Finish+edge.Lag
			}
			if !ok {
				t.Errorf("dependency %s -> %s (%s lag %d) violated: pred [%d,%d) succ [%d,%d)",
					edge.From, edge.To, edge.Type, edge.Lag, pred.Start, pred.Finish, succ.Start, succ.Finish)
			}
		}
	}
}

func TestLevel_ShiftsContendingTask(t *testing.T) {
	r := uuid.New()
	a, b := uuid.New(), uuid.New()
	resources := []models.Resource{{ID: r, Name: "crane", Capacity: 2}}
	tasks := []models.Task{
		task(a, 4, map[uuid.UUID]int{r: 2}),
		task(b, 3, map[uuid.UUID]int{r: 1}),
	}

	g, result := level(t, tasks, nil, resources)

	assertCapacityRespected(t, result, resources)
	assertPrecedenceRespected(t, g, result)

	// a wins priority (longer duration), b must wait for capacity
	if got := result.Tasks[a].Start; got != 0 {
		t.Errorf("expected winning task to start at 0, got %d", got)
	}
	if got := result.Tasks[b].Start; got != 4 {
		t.Errorf("expected contending task shifted to 4, got %d", got)
	}
	if result.Duration != 7 {
		t.Errorf("expected leveled duration 7, got %d", result.Duration)
	}
}

func TestLevel_NoContentionKeepsEarliestDates(t *testing.T) {
	r := uuid.New()
	a, b := uuid.New(), uuid.New()
	resources := []models.Resource{{ID: r, Name: "rig", Capacity: 3}}
	tasks := []models.Task{
		task(a, 4, map[uuid.UUID]int{r: 2}),
		task(b, 3, map[uuid.UUID]int{r: 1}),
	}

	_, result := level(t, tasks, nil, resources)

	if result.Tasks[a].Start != 0 || result.Tasks[b].Start != 0 {
		t.Errorf("expected both tasks at earliest start, got %d and %d",
			result.Tasks[a].Start, result.Tasks[b].Start)
	}
	if result.Duration != 4 {
		t.Errorf("expected duration 4, got %d", result.Duration)
	}
}

func TestLevel_PrecedenceUnderContention(t *testing.T) {
	r := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	resources := []models.Resource{{ID: r, Name: "team", Capacity: 1}}
	tasks := []models.Task{
		task(a, 2, map[uuid.UUID]int{r: 1}),
		task(b, 2, map[uuid.UUID]int{r: 1}),
		task(c, 2, map[uuid.UUID]int{r: 1}),
	}
	deps := []models.Dependency{fsDep(a, c)}

	g, result := level(t, tasks, deps, resources)

	assertCapacityRespected(t, result, resources)
	assertPrecedenceRespected(t, g, result)

	if result.Tasks[c].Start < result.Tasks[a].Finish {
		t.Error("successor scheduled before its predecessor finished")
	}
	if result.Duration != 6 {
		t.Errorf("expected serialized duration 6, got %d", result.Duration)
	}
}

func TestLevel_CalendarDelaysPlacement(t *testing.T) {
	r := uuid.New()
	a := uuid.New()
	resources := []models.Resource{{
		ID:       r,
		Name:     "inspector",
		Capacity: 1,
		Calendar: &models.Calendar{NonWorking: map[int]bool{0: true, 1: true}},
	}}
	tasks := []models.Task{task(a, 3, map[uuid.UUID]int{r: 1})}

	_, result := level(t, tasks, nil, resources)

	if got := result.Tasks[a].Start; got != 2 {
		t.Errorf("expected start pushed past non-working units to 2, got %d", got)
	}
	assertCapacityRespected(t, result, resources)
}

func TestLevel_MilestonePlacedWithoutCapacityCheck(t *testing.T) {
	r := uuid.New()
	a, m := uuid.New(), uuid.New()
	resources := []models.Resource{{ID: r, Name: "lab", Capacity: 1}}
	tasks := []models.Task{
		task(a, 5, map[uuid.UUID]int{r: 1}),
		task(m, 0, nil),
	}
	deps := []models.Dependency{fsDep(a, m)}

	_, result := level(t, tasks, deps, resources)

	if got := result.Tasks[m].Start; got != 5 {
		t.Errorf("expected milestone at 5, got %d", got)
	}
}

func TestLevel_UnknownResource(t *testing.T) {
	a := uuid.New()
	ghost := uuid.New()
	tasks := []models.Task{task(a, 2, map[uuid.UUID]int{ghost: 1})}

	g, err := graph.Build(tasks, nil)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	schedule, err := cpm.Compute(uuid.New(), g)
	if err != nil {
		t.Fatalf("cpm compute failed: %v", err)
	}

	_, err = NewGreedyLeveler().Level(g, schedule, nil)
	if !errors.Is(err, errors.ErrUnknownResourceReference) {
		t.Fatalf("expected ErrUnknownResourceReference, got %v", err)
	}
}

func TestLevel_DemandExceedsCapacity(t *testing.T) {
	r := uuid.New()
	a := uuid.New()
	resources := []models.Resource{{ID: r, Name: "dock", Capacity: 1}}
	tasks := []models.Task{task(a, 2, map[uuid.UUID]int{r: 2})}

	g, err := graph.Build(tasks, nil)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	schedule, err := cpm.Compute(uuid.New(), g)
	if err != nil {
		t.Fatalf("cpm compute failed: %v", err)
	}

	_, err = NewGreedyLeveler().Level(g, schedule, ResourceMap(resources))
	if !errors.Is(err, errors.ErrResourceDemandExceedsCapacity) {
		t.Fatalf("expected ErrResourceDemandExceedsCapacity, got %v", err)
	}

	var overErr *errors.OverdemandError
	if !errors.As(err, &overErr) {
		t.Fatal("expected OverdemandError")
	}
	if overErr.Demand != 2 || overErr.Capacity != 1 {
		t.Errorf("expected demand 2 vs capacity 1, got %d vs %d", overErr.Demand, overErr.Capacity)
	}
}

func TestLevel_Deterministic(t *testing.T) {
	r := uuid.New()
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	resources := []models.Resource{{ID: r, Name: "pool", Capacity: 2}}
	var tasks []models.Task
	for _, id := range ids {
		tasks = append(tasks, task(id, 3, map[uuid.UUID]int{r: 1}))
	}

	_, first := level(t, tasks, nil, resources)
	_, second := level(t, tasks, nil, resources)

	for _, id := range ids {
		if first.Tasks[id].Start != second.Tasks[id].Start {
			t.Fatalf("task %s placed at %d then %d across identical runs",
				id, first.Tasks[id].Start, second.Tasks[id].Start)
		}
	}
	if len(first.Assignments) != len(second.Assignments) {
		t.Fatalf("assignment counts differ: %d vs %d", len(first.Assignments), len(second.Assignments))
	}
	for i := range first.Assignments {
		if first.Assignments[i] != second.Assignments[i] {
			t.Fatalf("assignment %d differs between identical runs", i)
		}
	}
}

func TestLevel_DoesNotMutateInputSchedule(t *testing.T) {
	r := uuid.New()
	a, b := uuid.New(), uuid.New()
	resources := []models.Resource{{ID: r, Name: "crew", Capacity: 1}}
	tasks := []models.Task{
		task(a, 4, map[uuid.UUID]int{r: 1}),
		task(b, 3, map[uuid.UUID]int{r: 1}),
	}

	g, err := graph.Build(tasks, nil)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	schedule, err := cpm.Compute(uuid.New(), g)
	if err != nil {
		t.Fatalf("cpm compute failed: %v", err)
	}

	if _, err := NewGreedyLeveler().Level(g, schedule, ResourceMap(resources)); err != nil {
		t.Fatalf("leveling failed: %v", err)
	}

	if schedule.Tasks[b].Start != schedule.Tasks[b].ES {
		t.Error("leveling mutated the input schedule")
	}
	if len(schedule.Assignments) != 0 {
		t.Error("leveling attached assignments to the input schedule")
	}
}
