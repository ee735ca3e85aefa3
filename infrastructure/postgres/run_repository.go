package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
)

// RunRecord is the gorm row backing port.RunRepository. Counters are
// flattened into columns rather than a JSON blob so an operator can
// query "how many runs had Errors > 0" directly in SQL, matching the
// teacher's SyncJob table shape.
type RunRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	StartedAt   time.Time
	CompletedAt *time.Time
	ExitReason  string

	Total         int
	Processed     int
	Successful    int
	Failed        int
	Errors        int
}

func (RunRecord) TableName() string { return "run_records" }

// RunRepositoryImpl persists RunRecords in Postgres. Grounded on the
// teacher's SyncJobRepositoryImpl: thin gorm.DB wrapper, one method per
// lifecycle transition.
type RunRepositoryImpl struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) port.RunRepository {
	return &RunRepositoryImpl{db: db}
}

func (r *RunRepositoryImpl) Start(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	record := RunRecord{ID: id, StartedAt: startedAt, ExitReason: "running"}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *RunRepositoryImpl) Finish(ctx context.Context, id uuid.UUID, completedAt time.Time, exitReason string, counters model.ProgressCounters) error {
	updates := map[string]interface{}{
		"completed_at": completedAt,
		"exit_reason":  exitReason,
		"total":        counters.Total,
		"processed":    counters.Processed,
		"successful":   counters.Successful,
		"failed":       counters.Failed,
		"errors":       counters.Errors,
	}
	return r.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).Updates(updates).Error
}
