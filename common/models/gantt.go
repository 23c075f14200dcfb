package models

import "github.com/google/uuid"

// GanttBar represents one task of a leveled schedule as a Gantt chart bar
type GanttBar struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Start        int      `json:"start"`
	Finish       int      `json:"finish"`
	Progress     float64  `json:"progress"`
	IsCritical   bool     `json:"is_critical"`
	IsMilestone  bool     `json:"is_milestone"`
	Dependencies []string `json:"dependencies"` // predecessor IDs
}

// ToGanttBars projects a schedule result onto Gantt bars, ordered the
// same way the schedule passes ordered the tasks
func ToGanttBars(result *ScheduleResult, tasks map[uuid.UUID]*Task, deps []Dependency) []GanttBar {
	preds := make(map[uuid.UUID][]string)
	for _, d := range deps {
		preds[d.SuccessorID] = append(preds[d.SuccessorID], d.PredecessorID.String())
	}

	bars := make([]GanttBar, 0, len(result.Order))
	for _, id := range result.Order {
		ts := result.Tasks[id]
		if ts == nil {
			continue
		}
		bar := GanttBar{
			ID:           id.String(),
			Start:        ts.Start,
			Finish:       ts.Finish,
			IsCritical:   ts.IsCritical,
			IsMilestone:  ts.IsMilestone,
			Dependencies: preds[id],
		}
		if bar.Dependencies == nil {
			bar.Dependencies = []string{}
		}
		if t, ok := tasks[id]; ok {
			bar.Name = t.Name
			bar.Progress = t.PercentComplete
		}
		bars = append(bars, bar)
	}
	return bars
}
