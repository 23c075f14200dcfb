package leveling

import (
	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/graph"
)

// Strategy produces adjusted start times that respect every dependency
// constraint already enforced by CPM and never exceed resource capacity in
// any time unit, while minimizing total project extension. Output must be
// deterministic for identical input. The greedy implementation below is a
// heuristic; a constraint-programming formulation could replace it without
// changing this contract.
type Strategy interface {
	Level(g *graph.Graph, schedule *models.ScheduleResult, resources map[uuid.UUID]*models.Resource) (*models.ScheduleResult, error)
}

// ResourceMap indexes resources by id for the leveling pass
func ResourceMap(resources []models.Resource) map[uuid.UUID]*models.Resource {
	m := make(map[uuid.UUID]*models.Resource, len(resources))
	for i := range resources {
		m[resources[i].ID] = &resources[i]
	}
	return m
}
