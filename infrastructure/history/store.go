// Package history implements the JSON-file-backed HistoryStore: the single
// resumability authority described in spec §4.3. One file, whole-file
// rewrite via temp-file-plus-rename, corruption-tolerant load.
package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/pkg/logger"
)

// FileStore persists a HistorySnapshot as a single JSON file.
type FileStore struct {
	path string
}

// New builds a FileStore writing to path.
func New(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (model.HistorySnapshot, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.HistoryError("load_failed", "failed to read history file", err, map[string]interface{}{"path": s.path})
		}
		return model.HistorySnapshot{}, false
	}

	var snapshot model.HistorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.HistoryError("load_parse_failed", "history file is not valid JSON, starting fresh", err, map[string]interface{}{"path": s.path})
		return model.HistorySnapshot{}, false
	}

	if repair := snapshot.ProgressStats.Validate(); repair.Repaired {
		logger.History("load_counters_rejected", "rejecting corrupt counters, keeping processed keys and results", map[string]interface{}{
			"reason": repair.Reason,
		})
		snapshot.ProgressStats = model.ProgressCounters{}
	}

	return snapshot, true
}

// Save whole-file-rewrites snapshot via a temp file in the same directory
// followed by an atomic rename, so a crash mid-write never corrupts the
// previously saved snapshot.
func (s *FileStore) Save(snapshot model.HistorySnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
