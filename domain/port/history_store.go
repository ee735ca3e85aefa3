package port

import "github.com/foldershare/sharer/domain/model"

// HistoryStore persists and restores a single HistorySnapshot. Load must
// never panic or return an error a caller would treat as fatal: a
// corrupted or missing file just means the engine starts fresh.
type HistoryStore interface {
	// Load returns the last saved snapshot, or ok=false if none exists or
	// the file could not be parsed (in which case the failure is logged,
	// not returned as an error).
	Load() (snapshot model.HistorySnapshot, ok bool)

	// Save durably persists snapshot, replacing any prior snapshot.
	Save(snapshot model.HistorySnapshot) error

	// Delete removes the history file. Safe to call when no file exists.
	Delete() error
}
