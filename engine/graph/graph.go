package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
)

// Build constructs an adjacency view from tasks and their dependencies.
// Every dependency must reference existing task ids and the dependency set
// must be acyclic; validation failures are reported before any computation
// proceeds on the data.
func Build(tasks []models.Task, deps []models.Dependency) (*Graph, error) {
	g := &Graph{
		Tasks:  make(map[uuid.UUID]*models.Task, len(tasks)),
		Adj:    make(map[uuid.UUID][]Edge),
		RevAdj: make(map[uuid.UUID][]Edge),
	}

	for i := range tasks {
		t := tasks[i].Clone()
		g.Tasks[t.ID] = &t
	}

	for i, d := range deps {
		if _, ok := g.Tasks[d.PredecessorID]; !ok {
			return nil, &errors.UnknownTaskError{TaskID: d.PredecessorID}
		}
		if _, ok := g.Tasks[d.SuccessorID]; !ok {
			return nil, &errors.UnknownTaskError{TaskID: d.SuccessorID}
		}
		if d.PredecessorID == d.SuccessorID {
			return nil, &errors.CycleError{Path: []uuid.UUID{d.PredecessorID}}
		}

		depType := d.Type
		if !depType.IsValid() {
			depType = models.DependencyFS
		}

		edge := Edge{
			From: d.PredecessorID,
			To:   d.SuccessorID,
			Type: depType,
			Lag:  d.Lag,
			Seq:  i,
		}
		g.Adj[edge.From] = append(g.Adj[edge.From], edge)
		g.RevAdj[edge.To] = append(g.RevAdj[edge.To], edge)
	}

	// Sort adjacency lists for deterministic traversal
	for k := range g.Adj {
		sortEdges(g.Adj[k])
	}
	for k := range g.RevAdj {
		sortEdges(g.RevAdj[k])
	}

	for _, id := range g.TaskIDs() {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}

	// The partially built view is returned alongside the error so callers
	// can derive a break suggestion from the cycle.
	if cycle := g.DetectCycle(); cycle != nil {
		return g, &errors.CycleError{Path: cycle}
	}

	return g, nil
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is
// acyclic. Uses DFS with three-color marking: white (unvisited), gray
// (in progress), black (done). The full cycle is reported, not just the
// offending edge, so the conflict resolver can suggest which edge to break.
func (g *Graph) DetectCycle() []uuid.UUID {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[uuid.UUID]int, len(g.Tasks))
	parent := make(map[uuid.UUID]uuid.UUID)

	var dfs func(node uuid.UUID) []uuid.UUID
	dfs = func(node uuid.UUID) []uuid.UUID {
		color[node] = gray
		for _, edge := range g.Adj[node] {
			next := edge.To
			if color[next] == gray {
				// Back-edge to an in-progress node; reconstruct the cycle
				cycle := []uuid.UUID{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				// Reverse to get forward order
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				// Drop the duplicated start node at the end
				return cycle[:len(cycle)-1]
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.TaskIDs() {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// BreakSuggestion returns the dependency on the given cycle whose removal
// is the least disruptive. The most recently added edge is picked by
// default; this is a policy choice, not a correctness requirement.
func (g *Graph) BreakSuggestion(cycle []uuid.UUID) (models.Dependency, bool) {
	if len(cycle) == 0 {
		return models.Dependency{}, false
	}

	var best *Edge
	for i, from := range cycle {
		to := cycle[(i+1)%len(cycle)]
		for j := range g.Adj[from] {
			edge := &g.Adj[from][j]
			if edge.To != to {
				continue
			}
			if best == nil || edge.Seq > best.Seq {
				best = edge
			}
		}
	}
	if best == nil {
		return models.Dependency{}, false
	}
	return models.Dependency{
		PredecessorID: best.From,
		SuccessorID:   best.To,
		Type:          best.Type,
		Lag:           best.Lag,
	}, true
}

// TopoOrder returns the task ids in topological order using Kahn's
// algorithm with a sorted ready queue, so the order is deterministic for
// identical input. The graph must already be validated acyclic.
func (g *Graph) TopoOrder() []uuid.UUID {
	inDegree := make(map[uuid.UUID]int, len(g.Tasks))
	for id := range g.Tasks {
		inDegree[id] = len(g.RevAdj[id])
	}

	queue := append([]uuid.UUID(nil), g.Roots...)

	order := make([]uuid.UUID, 0, len(g.Tasks))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []uuid.UUID
		for _, edge := range g.Adj[node] {
			inDegree[edge.To]--
			if inDegree[edge.To] == 0 {
				newReady = append(newReady, edge.To)
			}
		}
		sortIDs(newReady)
		queue = append(queue, newReady...)
	}

	return order
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].To != edges[j].To {
			return edges[i].To.String() < edges[j].To.String()
		}
		if edges[i].From != edges[j].From {
			return edges[i].From.String() < edges[j].From.String()
		}
		return edges[i].Seq < edges[j].Seq
	})
}
