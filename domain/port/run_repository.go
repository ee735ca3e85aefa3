package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/foldershare/sharer/domain/model"
)

// RunRecord is a queryable audit row for one engine run. It never drives
// resume — HistoryStore is the sole authority for that — it only lets an
// operator ask "what happened" without grepping log files.
type RunRecord struct {
	ID            uuid.UUID
	StartedAt     time.Time
	CompletedAt   *time.Time
	ExitReason    string
	Counters      model.ProgressCounters
}

// RunRepository persists RunRecords. The Postgres-backed implementation is
// optional infrastructure: a no-op implementation is used whenever
// Postgres.DSN is unset, so the engine works standalone.
type RunRepository interface {
	Start(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, id uuid.UUID, completedAt time.Time, exitReason string, counters model.ProgressCounters) error
}
