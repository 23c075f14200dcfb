package models

// Status represents the status of a task in the scheduling domain
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

// DependencyType represents the type of task dependency
type DependencyType string

const (
	DependencyFS DependencyType = "FS" // Finish-to-Start (most common)
	DependencySS DependencyType = "SS" // Start-to-Start
	DependencyFF DependencyType = "FF" // Finish-to-Finish
	DependencySF DependencyType = "SF" // Start-to-Finish
)

// IsValid checks if the dependency type is valid
func (d DependencyType) IsValid() bool {
	switch d {
	case DependencyFS, DependencySS, DependencyFF, DependencySF:
		return true
	}
	return false
}

// DurationMode determines whether a task's duration is a fixed input or
// recalculated from its planned dates
type DurationMode string

const (
	DurationFixed      DurationMode = "fixed"
	DurationCalculated DurationMode = "calculated"
)

// IsValid checks if the duration mode is valid
func (m DurationMode) IsValid() bool {
	return m == DurationFixed || m == DurationCalculated
}

// ConflictType represents the kind of scheduling conflict detected
type ConflictType string

const (
	ConflictCircularDependency ConflictType = "circular_dependency"
	ConflictResourceOverlap    ConflictType = "resource_overlap"
	ConflictDateConstraint     ConflictType = "date_constraint"
)

// IsValid checks if the conflict type is valid
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictCircularDependency, ConflictResourceOverlap, ConflictDateConstraint:
		return true
	}
	return false
}

// ConflictStatus represents the lifecycle state of a conflict record
type ConflictStatus string

const (
	ConflictDetected      ConflictStatus = "detected"
	ConflictAutoResolved  ConflictStatus = "auto_resolved"
	ConflictPendingManual ConflictStatus = "pending_manual"
	ConflictDismissed     ConflictStatus = "dismissed"
)

// IsValid checks if the conflict status is valid
func (s ConflictStatus) IsValid() bool {
	switch s {
	case ConflictDetected, ConflictAutoResolved, ConflictPendingManual, ConflictDismissed:
		return true
	}
	return false
}
