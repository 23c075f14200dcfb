// Package engine runs one full scheduling computation cycle: dependency
// graph construction, critical path analysis, resource leveling, and
// conflict detection. Every operation is a side-effect-free function of
// its input snapshot; the engine holds no shared mutable state, so
// separate projects may be computed concurrently without locking. Within
// one project the caller serializes recomputes against a consistent
// snapshot of the task set.
package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/conflict"
	"github.com/csaptu/flow/scheduling/engine/cpm"
	"github.com/csaptu/flow/scheduling/engine/evm"
	"github.com/csaptu/flow/scheduling/engine/graph"
	"github.com/csaptu/flow/scheduling/engine/leveling"
)

// Input is one read-only project snapshot: the engine never mutates it
type Input struct {
	ProjectID    uuid.UUID           `json:"project_id"`
	Tasks        []models.Task       `json:"tasks"`
	Dependencies []models.Dependency `json:"dependencies"`
	Resources    []models.Resource   `json:"resources"`
}

// Engine wires the computation passes together
type Engine struct {
	leveler  leveling.Strategy
	detector *conflict.Detector
	resolver *conflict.Resolver
	logger   zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithStrategy swaps the leveling strategy. The externally observable
// contract (no capacity violation, precedence respected, deterministic
// output) holds regardless of the strategy.
func WithStrategy(s leveling.Strategy) Option {
	return func(e *Engine) { e.leveler = s }
}

// WithLogger sets the logger used for surfacing engine defects
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.detector = conflict.NewDetector(logger)
		e.resolver = conflict.NewResolver(logger)
	}
}

// New creates an engine with the greedy leveler as the default strategy
func New(opts ...Option) *Engine {
	e := &Engine{
		leveler:  leveling.NewGreedyLeveler(),
		detector: conflict.NewDetector(zerolog.Nop()),
		resolver: conflict.NewResolver(zerolog.Nop()),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs one computation cycle and returns a fresh, immutable
// schedule result. Detected conflicts are attached to the result;
// resolution is not applied unless the caller asks via Resolve.
func (e *Engine) Compute(in Input) (*models.ScheduleResult, error) {
	g, err := graph.Build(in.Tasks, in.Dependencies)
	if err != nil {
		return nil, err
	}

	schedule, err := cpm.Compute(in.ProjectID, g)
	if err != nil {
		return nil, err
	}

	resources := leveling.ResourceMap(in.Resources)
	leveled, err := e.leveler.Level(g, schedule, resources)
	if err != nil {
		return nil, err
	}

	leveled.Conflicts = e.detector.Detect(g, leveled, resources)
	return leveled, nil
}

// ComputeAndResolve runs a computation cycle and then applies the
// auto-resolution policy to the detected conflicts. Critical-path changes
// are only suggested, never applied.
func (e *Engine) ComputeAndResolve(in Input) (*models.ScheduleResult, error) {
	result, err := e.Compute(in)
	if err != nil {
		return nil, err
	}
	if len(result.Conflicts) == 0 {
		return result, nil
	}

	g, err := graph.Build(in.Tasks, in.Dependencies)
	if err != nil {
		return nil, err
	}
	resources := leveling.ResourceMap(in.Resources)

	resolved, conflicts := e.resolver.Resolve(g, result, resources, result.Conflicts)
	resolved.Conflicts = conflicts
	return resolved, nil
}

// AnalyzeEVM computes an earned value snapshot of the input against a
// previously computed schedule as of the given date.
func (e *Engine) AnalyzeEVM(in Input, schedule *models.ScheduleResult, asOf int) *models.EVMSnapshot {
	return evm.Compute(in.ProjectID, in.Tasks, schedule, asOf)
}

// CycleConflict translates a cyclic-dependency failure into a conflict
// record carrying the suggested edge to break. The graph may be the
// partial view returned alongside the build error.
func CycleConflict(in Input, cycle []uuid.UUID) models.Conflict {
	// Build returns the partial view alongside a cycle error, which is all
	// FromCycle needs to recover edge metadata.
	g, _ := graph.Build(in.Tasks, in.Dependencies)
	return conflict.FromCycle(g, cycle)
}
