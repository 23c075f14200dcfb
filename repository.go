package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
	"github.com/csaptu/flow/scheduling/engine"
)

// StoredSchedule is the persisted unit for one computation: the input
// snapshot it was computed from plus the resulting schedule. Keeping the
// input alongside the result lets the Gantt and EVM endpoints serve reads
// without the upstream system resending the project.
type StoredSchedule struct {
	Input  engine.Input           `json:"input"`
	Result *models.ScheduleResult `json:"result"`
}

// ScheduleStore persists the latest schedule result per project
type ScheduleStore struct {
	db *pgxpool.Pool
}

// NewScheduleStore creates a schedule store backed by the given pool
func NewScheduleStore(db *pgxpool.Pool) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Save upserts the latest schedule for the project
func (s *ScheduleStore) Save(ctx context.Context, stored *StoredSchedule) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "marshal schedule")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO schedule_results (project_id, payload, computed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (project_id) DO UPDATE SET payload = $2, computed_at = $3`,
		stored.Result.ProjectID, payload, stored.Result.ComputedAt,
	)
	if err != nil {
		return errors.Wrap(err, "save schedule")
	}
	return nil
}

// GetLatest returns the latest stored schedule for the project
func (s *ScheduleStore) GetLatest(ctx context.Context, projectID uuid.UUID) (*StoredSchedule, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		"SELECT payload FROM schedule_results WHERE project_id = $1",
		projectID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load schedule")
	}

	var stored StoredSchedule
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, errors.Wrap(err, "unmarshal schedule")
	}
	return &stored, nil
}

// BaselineStore persists baselines in Postgres. It satisfies the engine's
// baseline store contract.
type BaselineStore struct {
	db *pgxpool.Pool
}

// NewBaselineStore creates a baseline store backed by the given pool
func NewBaselineStore(db *pgxpool.Pool) *BaselineStore {
	return &BaselineStore{db: db}
}

// Save inserts a baseline. Baselines are append-only; duplicates by id are
// rejected.
func (s *BaselineStore) Save(ctx context.Context, b *models.Baseline) error {
	schedule, err := json.Marshal(b.Schedule)
	if err != nil {
		return errors.Wrap(err, "marshal baseline schedule")
	}
	tasks, err := json.Marshal(b.Tasks)
	if err != nil {
		return errors.Wrap(err, "marshal baseline tasks")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO baselines (id, project_id, label, schedule, tasks, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.ProjectID, b.Label, schedule, tasks, b.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "save baseline")
	}
	return nil
}

// Get retrieves a baseline by id
func (s *BaselineStore) Get(ctx context.Context, id uuid.UUID) (*models.Baseline, error) {
	var b models.Baseline
	var schedule, tasks []byte

	err := s.db.QueryRow(ctx,
		"SELECT id, project_id, label, schedule, tasks, created_at FROM baselines WHERE id = $1",
		id,
	).Scan(&b.ID, &b.ProjectID, &b.Label, &schedule, &tasks, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrBaselineNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load baseline")
	}

	if err := json.Unmarshal(schedule, &b.Schedule); err != nil {
		return nil, errors.Wrap(err, "unmarshal baseline schedule")
	}
	if err := json.Unmarshal(tasks, &b.Tasks); err != nil {
		return nil, errors.Wrap(err, "unmarshal baseline tasks")
	}
	return &b, nil
}

// List returns the project's baselines, oldest first
func (s *BaselineStore) List(ctx context.Context, projectID uuid.UUID) ([]*models.Baseline, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, project_id, label, schedule, tasks, created_at
		 FROM baselines WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list baselines")
	}
	defer rows.Close()

	baselines := make([]*models.Baseline, 0)
	for rows.Next() {
		var b models.Baseline
		var schedule, tasks []byte
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Label, &schedule, &tasks, &b.CreatedAt); err != nil {
			continue
		}
		if json.Unmarshal(schedule, &b.Schedule) != nil || json.Unmarshal(tasks, &b.Tasks) != nil {
			continue
		}
		baselines = append(baselines, &b)
	}
	return baselines, nil
}

// EVMStore persists earned value snapshots for trend reporting
type EVMStore struct {
	db *pgxpool.Pool
}

// NewEVMStore creates an EVM snapshot store backed by the given pool
func NewEVMStore(db *pgxpool.Pool) *EVMStore {
	return &EVMStore{db: db}
}

// Save appends one snapshot
func (s *EVMStore) Save(ctx context.Context, snap *models.EVMSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO evm_snapshots (id, project_id, as_of, payload, computed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), snap.ProjectID, snap.AsOf, payload, snap.ComputedAt,
	)
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

// ListByProject returns the project's snapshots, newest first
func (s *EVMStore) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.EVMSnapshot, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT payload FROM evm_snapshots
		 WHERE project_id = $1 ORDER BY computed_at DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	defer rows.Close()

	snapshots := make([]*models.EVMSnapshot, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var snap models.EVMSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			continue
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, nil
}

// touchComputedAt keeps stored timestamps monotonic when two computations
// land within the same clock tick on fast hardware.
func touchComputedAt(result *models.ScheduleResult, previous time.Time) {
	if !result.ComputedAt.After(previous) {
		result.ComputedAt = previous.Add(time.Millisecond)
	}
}
