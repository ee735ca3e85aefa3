// Package runrepo provides RunRepository implementations for the optional
// run-history audit trail (SPEC_FULL's domain stack addition). The engine
// is fully functional against NoOp; gorm-backed persistence only kicks in
// when Postgres.DSN is configured.
package runrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foldershare/sharer/domain/model"
)

// NoOp discards every call. Used whenever Postgres.DSN is unset so the
// engine runs standalone without a database dependency.
type NoOp struct{}

func (NoOp) Start(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	return nil
}

func (NoOp) Finish(ctx context.Context, id uuid.UUID, completedAt time.Time, exitReason string, counters model.ProgressCounters) error {
	return nil
}
