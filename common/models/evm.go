package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Ratio is a performance index or forecast figure that may be
// indeterminate when its denominator is zero. Dashboards observe these
// values directly, so an explicit sentinel is reported instead of
// NaN or Infinity.
type Ratio struct {
	Value         float64
	Indeterminate bool
}

// RatioOf returns a determinate ratio
func RatioOf(v float64) Ratio {
	return Ratio{Value: v}
}

// IndeterminateRatio returns the sentinel for an undefined ratio
func IndeterminateRatio() Ratio {
	return Ratio{Indeterminate: true}
}

// Divide returns num/den, or the indeterminate sentinel when den is zero
func Divide(num, den float64) Ratio {
	if den == 0 {
		return IndeterminateRatio()
	}
	return RatioOf(num / den)
}

// MarshalJSON renders a determinate ratio as a number and an
// indeterminate one as the string "indeterminate"
func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.Indeterminate {
		return json.Marshal("indeterminate")
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts either a number or the "indeterminate" sentinel
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "indeterminate" {
			*r = IndeterminateRatio()
			return nil
		}
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = RatioOf(v)
	return nil
}

// EVMSnapshot holds earned value metrics and forecasts for a project as
// of a given date. Snapshots are recomputed from scratch, never
// incrementally updated.
type EVMSnapshot struct {
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	AsOf      int       `json:"as_of" db:"as_of"` // time units from project start

	PlannedValue       float64 `json:"planned_value"`
	EarnedValue        float64 `json:"earned_value"`
	ActualCost         float64 `json:"actual_cost"`
	BudgetAtCompletion float64 `json:"budget_at_completion"`

	ScheduleVariance float64 `json:"schedule_variance"`
	CostVariance     float64 `json:"cost_variance"`

	SPI Ratio `json:"spi"`
	CPI Ratio `json:"cpi"`

	EstimateAtCompletion Ratio `json:"estimate_at_completion"`
	EstimateToComplete   Ratio `json:"estimate_to_complete"`

	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}
