package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/foldershare/sharer/domain/model"
)

// ResultsFile is the final summary artifact written on every run exit
// (clean or interrupted), per §6's JSON shape.
type ResultsFile struct {
	Timestamp          time.Time              `json:"timestamp"`
	WorkerConfig       WorkerConfigSummary    `json:"workerConfig"`
	Statistics         Statistics             `json:"statistics"`
	ErrorLog           []string               `json:"errorLog"`
	FailedResults      []model.ShareResult    `json:"failedResults"`
	SuccessfulSummary  []SuccessfulEntry      `json:"successfulSummary"`
}

type WorkerConfigSummary struct {
	PoolSize         int `json:"poolSize"`
	HistoryBatchSize int `json:"historyBatchSize"`
}

type Statistics struct {
	TotalProcessed   int     `json:"totalProcessed"`
	SuccessfulShares int     `json:"successfulShares"`
	FailedShares     int     `json:"failedShares"`
	ErrorCount       int     `json:"errorCount"`
	ProcessingTime   float64 `json:"processingTimeSeconds"`
}

// SuccessfulEntry is the compact per-recipient record for the successful
// summary — no error fields, since there is nothing to report.
type SuccessfulEntry struct {
	Row          int    `json:"row"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	FolderID     string `json:"folderId"`
	PermissionID string `json:"permissionId"`
}

// WriteResults builds and writes the results file for a completed or
// interrupted run.
func WriteResults(path string, shareResults []model.ShareResult, errorLog []string, counters model.ProgressCounters, poolSize, historyBatchSize int, start, end time.Time) error {
	file := ResultsFile{
		Timestamp: end,
		WorkerConfig: WorkerConfigSummary{
			PoolSize:         poolSize,
			HistoryBatchSize: historyBatchSize,
		},
		Statistics: Statistics{
			TotalProcessed:   counters.Processed,
			SuccessfulShares: counters.Successful,
			FailedShares:     counters.Failed,
			ErrorCount:       counters.Errors,
			ProcessingTime:   end.Sub(start).Seconds(),
		},
		ErrorLog: errorLog,
	}

	for _, r := range shareResults {
		if r.Success {
			file.SuccessfulSummary = append(file.SuccessfulSummary, SuccessfulEntry{
				Row:          r.Recipient.Row,
				Name:         r.Recipient.Name,
				Email:        r.Recipient.Email,
				FolderID:     r.FolderID,
				PermissionID: r.PermissionID,
			})
		} else {
			file.FailedResults = append(file.FailedResults, r)
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results file: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results file %s: %w", path, err)
	}
	return nil
}
