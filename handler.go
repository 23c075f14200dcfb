package scheduling

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/csaptu/flow/scheduling/common/dto"
	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine"
	"github.com/csaptu/flow/scheduling/pkg/httputil"
	"github.com/csaptu/flow/scheduling/pkg/middleware"
)

// ScheduleHandler handles schedule computation and read endpoints
type ScheduleHandler struct {
	engine    *engine.Engine
	schedules *ScheduleStore
	evm       *EVMStore
	locker    *ProjectLocker
	cache     *ScheduleCache
	notifier  *Notifier
}

// NewScheduleHandler creates a schedule handler
func NewScheduleHandler(eng *engine.Engine, schedules *ScheduleStore, evm *EVMStore, locker *ProjectLocker, cache *ScheduleCache, notifier *Notifier) *ScheduleHandler {
	return &ScheduleHandler{
		engine:    eng,
		schedules: schedules,
		evm:       evm,
		locker:    locker,
		cache:     cache,
		notifier:  notifier,
	}
}

// ComputeRequest is the project snapshot the upstream system sends for one
// computation cycle
type ComputeRequest struct {
	Tasks        []models.Task       `json:"tasks"`
	Dependencies []models.Dependency `json:"dependencies"`
	Resources    []models.Resource   `json:"resources"`
	AutoResolve  bool                `json:"auto_resolve"`
}

// Compute runs one computation cycle for the project and persists the
// result as the latest schedule
func (h *ScheduleHandler) Compute(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	var req ComputeRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(c, "invalid request body")
	}
	if len(req.Tasks) == 0 {
		return httputil.ValidationError(c, "validation failed", map[string]string{
			"tasks": "at least one task required",
		})
	}
	for i := range req.Tasks {
		if req.Tasks[i].Duration < 0 {
			return httputil.ValidationError(c, "validation failed", map[string]string{
				"tasks": "duration must be non-negative",
			})
		}
	}

	release, err := h.locker.Acquire(c.Context(), projectID)
	if err != nil {
		return httputil.Error(c, err)
	}
	defer release()

	in := engine.Input{
		ProjectID:    projectID,
		Tasks:        req.Tasks,
		Dependencies: req.Dependencies,
		Resources:    req.Resources,
	}

	var result *models.ScheduleResult
	if req.AutoResolve {
		result, err = h.engine.ComputeAndResolve(in)
	} else {
		result, err = h.engine.Compute(in)
	}
	if err != nil {
		return h.computeError(c, in, err)
	}

	if previous, perr := h.schedules.GetLatest(c.Context(), projectID); perr == nil {
		touchComputedAt(result, previous.Result.ComputedAt)
	}

	stored := &StoredSchedule{Input: in, Result: result}
	if err := h.schedules.Save(c.Context(), stored); err != nil {
		return httputil.Error(c, err)
	}
	if err := h.cache.Set(c.Context(), projectID, stored); err != nil {
		h.logger(c).Warn().Err(err).Msg("failed to cache schedule")
	}

	kind := "computed"
	if req.AutoResolve {
		kind = "resolved"
	}
	h.notify(c, ScheduleEvent{
		ProjectID: projectID,
		Kind:      kind,
		Duration:  result.Duration,
		Conflicts: len(result.Conflicts),
		At:        result.ComputedAt,
	})

	h.logger(c).Info().
		Str("project_id", projectID.String()).
		Int("tasks", len(req.Tasks)).
		Int("duration", result.Duration).
		Int("conflicts", len(result.Conflicts)).
		Bool("auto_resolve", req.AutoResolve).
		Msg("schedule computed")

	return httputil.Success(c, result)
}

// computeError shapes engine failures. Cycles additionally carry a
// conflict record with the suggested edge to break.
func (h *ScheduleHandler) computeError(c *fiber.Ctx, in engine.Input, err error) error {
	var cycleErr *errors.CycleError
	if errors.As(err, &cycleErr) {
		conflict := engine.CycleConflict(in, cycleErr.Path)
		details := errors.FailureDetails(err)
		details["conflict"] = conflict
		return c.Status(errors.HTTPStatusCode(err)).
			JSON(dto.ErrorWithDetails(errors.FailureCode(err), err.Error(), details))
	}
	return httputil.Error(c, err)
}

// GetLatest returns the latest computed schedule for the project
func (h *ScheduleHandler) GetLatest(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	stored, err := h.loadStored(c, projectID)
	if err != nil {
		return httputil.Error(c, err)
	}
	return httputil.Success(c, stored.Result)
}

// GetGantt projects the latest schedule onto Gantt bars
func (h *ScheduleHandler) GetGantt(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	stored, err := h.loadStored(c, projectID)
	if err != nil {
		return httputil.Error(c, err)
	}

	tasks := make(map[uuid.UUID]*models.Task, len(stored.Input.Tasks))
	for i := range stored.Input.Tasks {
		tasks[stored.Input.Tasks[i].ID] = &stored.Input.Tasks[i]
	}

	return httputil.Success(c, models.ToGanttBars(stored.Result, tasks, stored.Input.Dependencies))
}

// AnalyzeEVM computes an earned value snapshot of the latest schedule as
// of the given date and persists it for trend reporting
func (h *ScheduleHandler) AnalyzeEVM(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	var req struct {
		AsOf int `json:"as_of"`
	}
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(c, "invalid request body")
	}
	if req.AsOf < 0 {
		return httputil.BadRequest(c, "as_of must be non-negative")
	}

	stored, err := h.loadStored(c, projectID)
	if err != nil {
		return httputil.Error(c, err)
	}

	snap := h.engine.AnalyzeEVM(stored.Input, stored.Result, req.AsOf)
	if err := h.evm.Save(c.Context(), snap); err != nil {
		h.logger(c).Warn().Err(err).Msg("failed to persist EVM snapshot")
	}

	return httputil.Success(c, snap)
}

// EVMHistory lists persisted EVM snapshots for the project, newest first
func (h *ScheduleHandler) EVMHistory(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	snapshots, err := h.evm.ListByProject(c.Context(), projectID, limit)
	if err != nil {
		return httputil.Error(c, err)
	}
	return httputil.Success(c, snapshots)
}

// DismissConflict moves a detected conflict to the dismissed state on the
// latest stored schedule
func (h *ScheduleHandler) DismissConflict(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}
	conflictID, err := uuid.Parse(c.Params("conflict_id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid conflict ID")
	}

	stored, err := h.schedules.GetLatest(c.Context(), projectID)
	if err != nil {
		return httputil.Error(c, err)
	}

	found := false
	for i := range stored.Result.Conflicts {
		if stored.Result.Conflicts[i].ID != conflictID {
			continue
		}
		found = true
		if !stored.Result.Conflicts[i].Transition(models.ConflictDismissed) {
			return httputil.Conflict(c, "conflict is not in the detected state")
		}
	}
	if !found {
		return httputil.NotFound(c, "conflict")
	}

	if err := h.schedules.Save(c.Context(), stored); err != nil {
		return httputil.Error(c, err)
	}
	h.cache.Invalidate(c.Context(), projectID)

	return httputil.Success(c, stored.Result)
}

// loadStored reads the latest schedule, cache first
func (h *ScheduleHandler) loadStored(c *fiber.Ctx, projectID uuid.UUID) (*StoredSchedule, error) {
	if stored, err := h.cache.Get(c.Context(), projectID); err == nil {
		return stored, nil
	}

	stored, err := h.schedules.GetLatest(c.Context(), projectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NotFound("schedule")
		}
		return nil, err
	}

	if cerr := h.cache.Set(c.Context(), projectID, stored); cerr != nil {
		h.logger(c).Warn().Err(cerr).Msg("failed to backfill schedule cache")
	}
	return stored, nil
}

func (h *ScheduleHandler) notify(c *fiber.Ctx, event ScheduleEvent) {
	if err := h.notifier.Publish(c.Context(), event); err != nil {
		h.logger(c).Warn().Err(err).Msg("failed to publish schedule event")
	}
}

func (h *ScheduleHandler) logger(c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.LoggerWithFields(c)
	return &logger
}
