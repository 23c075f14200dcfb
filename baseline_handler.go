package scheduling

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine/baseline"
	"github.com/csaptu/flow/scheduling/pkg/httputil"
	"github.com/csaptu/flow/scheduling/pkg/middleware"
)

// BaselineHandler handles baseline endpoints
type BaselineHandler struct {
	manager   *baseline.Manager
	schedules *ScheduleStore
	notifier  *Notifier
}

// NewBaselineHandler creates a baseline handler
func NewBaselineHandler(manager *baseline.Manager, schedules *ScheduleStore, notifier *Notifier) *BaselineHandler {
	return &BaselineHandler{manager: manager, schedules: schedules, notifier: notifier}
}

// BaselineSummary is the list representation of a baseline; the full
// schedule payload is only returned by restore
type BaselineSummary struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Label     string `json:"label"`
	Tasks     int    `json:"tasks"`
	Duration  int    `json:"duration"`
	CreatedAt string `json:"created_at"`
}

// Save snapshots the project's latest schedule under a label
func (h *BaselineHandler) Save(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	var req struct {
		Label string `json:"label"`
	}
	if err := c.BodyParser(&req); err != nil {
		return httputil.BadRequest(c, "invalid request body")
	}
	if req.Label == "" {
		return httputil.ValidationError(c, "validation failed", map[string]string{
			"label": "required",
		})
	}

	stored, err := h.schedules.GetLatest(c.Context(), projectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return httputil.NotFound(c, "schedule")
		}
		return httputil.Error(c, err)
	}

	b, err := h.manager.Save(c.Context(), req.Label, stored.Result, stored.Input.Tasks)
	if err != nil {
		return httputil.Error(c, err)
	}

	logger := middleware.LoggerWithFields(c)
	logger.Info().
		Str("project_id", projectID.String()).
		Str("baseline_id", b.ID.String()).
		Str("label", b.Label).
		Msg("baseline saved")

	return httputil.Created(c, toBaselineSummary(b))
}

// List returns the project's baselines, oldest first
func (h *BaselineHandler) List(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}

	baselines, err := h.manager.List(c.Context(), projectID)
	if err != nil {
		return httputil.Error(c, err)
	}

	summaries := make([]BaselineSummary, 0, len(baselines))
	for _, b := range baselines {
		summaries = append(summaries, toBaselineSummary(b))
	}
	return httputil.Success(c, summaries)
}

// Compare reports per-task drift between a baseline and the latest schedule
func (h *BaselineHandler) Compare(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}
	baselineID, err := uuid.Parse(c.Params("baseline_id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid baseline ID")
	}

	stored, err := h.schedules.GetLatest(c.Context(), projectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return httputil.NotFound(c, "schedule")
		}
		return httputil.Error(c, err)
	}

	deltas, err := h.manager.Compare(c.Context(), baselineID, stored.Result)
	if err != nil {
		return httputil.Error(c, err)
	}
	return httputil.Success(c, deltas)
}

// Restore returns a copy of the baseline's schedule. It does not overwrite
// the latest schedule; applying restored dates back to the live project is
// the upstream system's explicit action.
func (h *BaselineHandler) Restore(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid project ID")
	}
	baselineID, err := uuid.Parse(c.Params("baseline_id"))
	if err != nil {
		return httputil.BadRequest(c, "invalid baseline ID")
	}

	schedule, err := h.manager.Restore(c.Context(), baselineID)
	if err != nil {
		return httputil.Error(c, err)
	}
	if schedule.ProjectID != projectID {
		return httputil.NotFound(c, "baseline")
	}

	if err := h.notifier.Publish(c.Context(), ScheduleEvent{
		ProjectID: projectID,
		Kind:      "restored",
		Duration:  schedule.Duration,
		Conflicts: len(schedule.Conflicts),
		At:        schedule.ComputedAt,
	}); err != nil {
		logger := middleware.LoggerWithFields(c)
		logger.Warn().Err(err).Msg("failed to publish restore event")
	}

	return httputil.Success(c, schedule)
}

func toBaselineSummary(b *models.Baseline) BaselineSummary {
	return BaselineSummary{
		ID:        b.ID.String(),
		ProjectID: b.ProjectID.String(),
		Label:     b.Label,
		Tasks:     len(b.Tasks),
		Duration:  b.Schedule.Duration,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}
