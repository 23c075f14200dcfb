package graph

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

func fsDep(pred, succ uuid.UUID) models.Dependency {
	return models.Dependency{
		PredecessorID: pred,
		SuccessorID:   succ,
		Type:          models.DependencyFS,
	}
}

func TestBuild_ValidChain(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g, err := Build(
		[]models.Task{task(a, 1), task(b, 2), task(c, 3)},
		[]models.Dependency{fsDep(a, b), fsDep(b, c)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.TaskCount() != 3 {
		t.Errorf("expected 3 tasks, got %d", g.TaskCount())
	}
	if len(g.Roots) != 1 || g.Roots[0] != a {
		t.Errorf("expected roots [%s], got %v", a, g.Roots)
	}
	if len(g.Leaves) != 1 || g.Leaves[0] != c {
		t.Errorf("expected leaves [%s], got %v", c, g.Leaves)
	}
}

func TestBuild_UnknownTaskReference(t *testing.T) {
	a := uuid.New()
	ghost := uuid.New()

	_, err := Build([]models.Task{task(a, 1)}, []models.Dependency{fsDep(a, ghost)})
	if !errors.Is(err, errors.ErrUnknownTaskReference) {
		t.Fatalf("expected ErrUnknownTaskReference, got %v", err)
	}

	var unknownErr *errors.UnknownTaskError
	if !errors.As(err, &unknownErr) {
		t.Fatal("expected UnknownTaskError")
	}
	if unknownErr.TaskID != ghost {
		t.Errorf("expected offending id %s, got %s", ghost, unknownErr.TaskID)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	a := uuid.New()
	_, err := Build([]models.Task{task(a, 1)}, []models.Dependency{fsDep(a, a)})
	if !errors.Is(err, errors.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestBuild_CycleReportsFullPath(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	_, err := Build(
		[]models.Task{task(a, 1), task(b, 1), task(c, 1)},
		[]models.Dependency{fsDep(a, b), fsDep(b, c), fsDep(c, a)},
	)
	if !errors.Is(err, errors.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}

	var cycleErr *errors.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatal("expected CycleError")
	}
	if len(cycleErr.Path) != 3 {
		t.Fatalf("expected cycle of 3 tasks, got %v", cycleErr.Path)
	}

	seen := map[uuid.UUID]bool{}
	for _, id := range cycleErr.Path {
		seen[id] = true
	}
	for _, id := range []uuid.UUID{a, b, c} {
		if !seen[id] {
			t.Errorf("cycle path missing task %s: %v", id, cycleErr.Path)
		}
	}

	// The path must follow actual edges in forward order
	for i, from := range cycleErr.Path {
		to := cycleErr.Path[(i+1)%len(cycleErr.Path)]
		found := false
		for _, pair := range [][2]uuid.UUID{{a, b}, {b, c}, {c, a}} {
			if pair[0] == from && pair[1] == to {
				found = true
			}
		}
		if !found {
			t.Errorf("cycle path contains non-edge %s -> %s", from, to)
		}
	}
}

func TestBreakSuggestion_PicksMostRecentEdge(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g, err := Build(
		[]models.Task{task(a, 1), task(b, 1), task(c, 1)},
		[]models.Dependency{fsDep(a, b), fsDep(b, c), fsDep(c, a)},
	)
	if !errors.Is(err, errors.ErrCyclicDependency) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if g == nil {
		t.Fatal("expected partial graph alongside cycle error")
	}

	var cycleErr *errors.CycleError
	errors.As(err, &cycleErr)

	dep, ok := g.BreakSuggestion(cycleErr.Path)
	if !ok {
		t.Fatal("expected a break suggestion")
	}
	// c -> a was added last
	if dep.PredecessorID != c || dep.SuccessorID != a {
		t.Errorf("expected suggestion to break %s -> %s, got %s -> %s", c, a, dep.PredecessorID, dep.SuccessorID)
	}
}

func TestTopoOrder_RespectsEdges(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	g, err := Build(
		[]models.Task{task(a, 1), task(b, 1), task(c, 1), task(d, 1)},
		[]models.Dependency{fsDep(a, b), fsDep(a, c), fsDep(b, d), fsDep(c, d)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := g.TopoOrder()
	if len(order) != 4 {
		t.Fatalf("expected 4 tasks in order, got %d", len(order))
	}

	pos := make(map[uuid.UUID]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, pair := range [][2]uuid.UUID{{a, b}, {a, c}, {b, d}, {c, d}} {
		if pos[pair[0]] >= pos[pair[1]] {
			t.Errorf("topological order violates edge %s -> %s: %v", pair[0], pair[1], order)
		}
	}
}

func TestTopoOrder_Deterministic(t *testing.T) {
	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = uuid.New()
	}
	tasks := make([]models.Task, len(ids))
	for i, id := range ids {
		tasks[i] = task(id, 1)
	}
	deps := []models.Dependency{fsDep(ids[0], ids[3]), fsDep(ids[1], ids[3]), fsDep(ids[2], ids[4])}

	g1, err := Build(tasks, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g2, err := Build(tasks, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o1, o2 := g1.TopoOrder(), g2.TopoOrder()
	for i := range o1 {
		if o1[i] != o2[i] {
			t.Fatalf("topological order differs between identical builds: %v vs %v", o1, o2)
		}
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tasks := []models.Task{task(a, 5), task(b, 3)}
	tasks[0].ResourceDemands = map[uuid.UUID]int{uuid.New(): 1}

	g, err := Build(tasks, []models.Dependency{fsDep(a, b)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.Tasks[a].Duration = 99
	for id := range g.Tasks[a].ResourceDemands {
		g.Tasks[a].ResourceDemands[id] = 99
	}

	if tasks[0].Duration != 5 {
		t.Error("graph build mutated input task duration")
	}
	for _, v := range tasks[0].ResourceDemands {
		if v != 1 {
			t.Error("graph build shares resource demand map with input")
		}
	}
}
