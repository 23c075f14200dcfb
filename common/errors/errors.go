package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Standard error types for the application
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrBadRequest is returned when the request is malformed
	ErrBadRequest = errors.New("bad request")

	// ErrValidation is returned when validation fails
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the user doesn't have permission
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when there's a conflict (e.g., version mismatch)
	ErrConflict = errors.New("conflict")

	// ErrInternal is returned for internal server errors
	ErrInternal = errors.New("internal server error")
)

// Scheduling engine failure kinds. Each is deterministic given the same
// input: recomputation without correcting the input will fail identically,
// so no retries are performed anywhere in the engine.
var (
	// ErrUnknownTaskReference is returned when a dependency or demand
	// references a task id that is not part of the input snapshot
	ErrUnknownTaskReference = errors.New("dependency references unknown task")

	// ErrUnknownResourceReference is returned when a task demands a
	// resource id that is not part of the input snapshot
	ErrUnknownResourceReference = errors.New("task demands unknown resource")

	// ErrCyclicDependency is returned when the dependency set contains a cycle
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrInfeasibleSchedule is returned when fixed constraints admit no schedule
	ErrInfeasibleSchedule = errors.New("schedule infeasible under fixed constraints")

	// ErrResourceDemandExceedsCapacity is returned when a single task demands
	// more of a resource than its absolute capacity
	ErrResourceDemandExceedsCapacity = errors.New("resource demand exceeds capacity")

	// ErrResourceOverlapResidual indicates leveling left a capacity overlap
	// behind. This is an internal invariant violation, logged and surfaced
	// as a defect, never silently swallowed.
	ErrResourceOverlapResidual = errors.New("residual resource overlap after leveling")

	// ErrBaselineNotFound is returned when a baseline id does not exist
	ErrBaselineNotFound = errors.New("baseline not found")
)

// UnknownTaskError reports a dependency edge whose endpoint does not exist
type UnknownTaskError struct {
	TaskID uuid.UUID // the id that was not found
}

// Error implements the error interface
func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("dependency references unknown task %s", e.TaskID)
}

// Unwrap returns the sentinel failure kind
func (e *UnknownTaskError) Unwrap() error { return ErrUnknownTaskReference }

// CycleError carries the full cycle path so callers can surface which
// tasks participate and which edge to break
type CycleError struct {
	Path []uuid.UUID // ordered task ids forming the cycle
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %v", e.Path)
}

// Unwrap returns the sentinel failure kind
func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// InfeasibleError identifies the tasks whose fixed constraints admit no
// schedule (LS < ES after the backward pass)
type InfeasibleError struct {
	TaskIDs []uuid.UUID
}

// Error implements the error interface
func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("schedule infeasible under fixed constraints: %v", e.TaskIDs)
}

// Unwrap returns the sentinel failure kind
func (e *InfeasibleError) Unwrap() error { return ErrInfeasibleSchedule }

// OverdemandError reports a task demanding more of a resource than the
// resource can ever supply in a single time unit
type OverdemandError struct {
	TaskID     uuid.UUID
	ResourceID uuid.UUID
	Demand     int
	Capacity   int
}

// Error implements the error interface
func (e *OverdemandError) Error() string {
	return fmt.Sprintf("task %s demands %d of resource %s (capacity %d)",
		e.TaskID, e.Demand, e.ResourceID, e.Capacity)
}

// Unwrap returns the sentinel failure kind
func (e *OverdemandError) Unwrap() error { return ErrResourceDemandExceedsCapacity }

// UnknownResourceError reports a demand on a resource id that is not in
// the input snapshot
type UnknownResourceError struct {
	TaskID     uuid.UUID
	ResourceID uuid.UUID
}

// Error implements the error interface
func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("task %s demands unknown resource %s", e.TaskID, e.ResourceID)
}

// Unwrap returns the sentinel failure kind
func (e *UnknownResourceError) Unwrap() error { return ErrUnknownResourceReference }

// AppError represents an application error with additional context
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(err error, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    fmt.Sprintf("%s: %v", message, err),
		StatusCode: http.StatusInternalServerError,
	}
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// ValidationError creates a validation error with field details
func ValidationError(message string, fields map[string]string) *AppError {
	details := make(map[string]interface{})
	for k, v := range fields {
		details[k] = v
	}
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Internal creates an internal server error
func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Err:        ErrInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Is reports whether err matches target, delegating to the standard library
func Is(err, target error) bool { return errors.Is(err, target) }

// As delegates to the standard library
func As(err error, target interface{}) bool { return errors.As(err, target) }

// FailureCode maps an engine failure to the stable code callers
// pattern-match on in API responses
func FailureCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTaskReference):
		return "UNKNOWN_TASK_REFERENCE"
	case errors.Is(err, ErrUnknownResourceReference):
		return "UNKNOWN_RESOURCE_REFERENCE"
	case errors.Is(err, ErrCyclicDependency):
		return "CYCLIC_DEPENDENCY"
	case errors.Is(err, ErrInfeasibleSchedule):
		return "INFEASIBLE_SCHEDULE"
	case errors.Is(err, ErrResourceDemandExceedsCapacity):
		return "RESOURCE_DEMAND_EXCEEDS_CAPACITY"
	case errors.Is(err, ErrResourceOverlapResidual):
		return "RESOURCE_OVERLAP_RESIDUAL"
	case errors.Is(err, ErrBaselineNotFound):
		return "BASELINE_NOT_FOUND"
	default:
		return ""
	}
}

// FailureDetails extracts the structured payload of an engine failure so
// the presentation layer can surface cycle paths and constraining tasks
// directly instead of a generic error
func FailureDetails(err error) map[string]interface{} {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		path := make([]string, len(cycleErr.Path))
		for i, id := range cycleErr.Path {
			path[i] = id.String()
		}
		return map[string]interface{}{"cycle": path}
	}

	var infErr *InfeasibleError
	if errors.As(err, &infErr) {
		ids := make([]string, len(infErr.TaskIDs))
		for i, id := range infErr.TaskIDs {
			ids[i] = id.String()
		}
		return map[string]interface{}{"constraining_tasks": ids}
	}

	var odErr *OverdemandError
	if errors.As(err, &odErr) {
		return map[string]interface{}{
			"task_id":     odErr.TaskID.String(),
			"resource_id": odErr.ResourceID.String(),
			"demand":      odErr.Demand,
			"capacity":    odErr.Capacity,
		}
	}

	var utErr *UnknownTaskError
	if errors.As(err, &utErr) {
		return map[string]interface{}{"task_id": utErr.TaskID.String()}
	}

	var urErr *UnknownResourceError
	if errors.As(err, &urErr) {
		return map[string]interface{}{
			"task_id":     urErr.TaskID.String(),
			"resource_id": urErr.ResourceID.String(),
		}
	}

	return nil
}

// HTTPStatusCode returns the appropriate HTTP status code for an error
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBaselineNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnknownTaskReference), errors.Is(err, ErrUnknownResourceReference):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, ErrCyclicDependency):
		return http.StatusConflict
	case errors.Is(err, ErrInfeasibleSchedule), errors.Is(err, ErrResourceDemandExceedsCapacity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
