package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/models"
)

// Edge is one validated dependency between two tasks. Seq preserves the
// insertion order of the dependency list, which the conflict resolver uses
// to pick the least disruptive edge to break in a cycle.
type Edge struct {
	From uuid.UUID
	To   uuid.UUID
	Type models.DependencyType
	Lag  int
	Seq  int
}

// Graph is an adjacency view over a validated task and dependency set.
// It is purely a view: building it has no side effects on the input.
type Graph struct {
	Tasks  map[uuid.UUID]*models.Task
	Adj    map[uuid.UUID][]Edge // outgoing edges, keyed by predecessor
	RevAdj map[uuid.UUID][]Edge // incoming edges, keyed by successor
	Roots  []uuid.UUID          // tasks with no predecessors
	Leaves []uuid.UUID          // tasks with no successors
}

// TaskCount returns the number of tasks in the graph
func (g *Graph) TaskCount() int {
	return len(g.Tasks)
}

// TaskIDs returns all task ids in deterministic (sorted) order
func (g *Graph) TaskIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
