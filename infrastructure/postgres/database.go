// Package postgres provides the optional run-history audit trail from
// spec's DOMAIN STACK: a gorm-backed RunRepository. It is never the
// resume authority (HistoryStore owns that) — it only lets an operator
// query past runs without grepping log files.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase opens a connection pool against dsn. Callers only do this
// when Postgres.DSN is non-empty; an empty DSN means runrepo.NoOp is used
// instead and this package is never touched.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the run_records table if it does not already exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return fmt.Errorf("migrating run_records: %w", err)
	}
	return nil
}
