// Package engine implements the Coordinator from spec §4.6: the single
// goroutine that owns all mutable run state (counters, results, cell
// updates, history) and drives a WorkerPool to quiescence, exactly the
// "coordinator owns state, workers own only their in-flight task" shape
// from §5 and §9.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/pkg/logger"
)

// checkpointEvery is the default HistoryStore.Save batching cadence (B in
// spec §4.6 step 5), a plain modulo counter rather than a timer.
const checkpointEvery = 10

const (
	flushRetries    = 3
	flushBackoffBase = 250 * time.Millisecond
)

// Config tunes the coordinator beyond its fixed collaborators.
type Config struct {
	DocumentID      string
	SheetTitle      string
	CheckpointEvery int
}

// Engine is the coordinator. It is single-use: build one per run via New,
// call Run once.
type Engine struct {
	matcher port.Matcher
	pool    port.WorkerPool
	remote  port.RemoteClient
	history port.HistoryStore
	events  port.EventEmitter
	runs    port.RunRepository

	cfg Config
}

// New wires the coordinator's collaborators. runs may be a no-op
// implementation when Postgres is not configured.
func New(matcher port.Matcher, pool port.WorkerPool, remote port.RemoteClient, history port.HistoryStore, events port.EventEmitter, runs port.RunRepository, cfg Config) *Engine {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = checkpointEvery
	}
	return &Engine{matcher: matcher, pool: pool, remote: remote, history: history, events: events, runs: runs, cfg: cfg}
}

// Result is everything a caller needs to write the final results file and
// decide the process exit code.
type Result struct {
	Counters     model.ProgressCounters
	ShareResults []model.ShareResult
	ErrorLog     []string
	StartTime    time.Time
	EndTime      time.Time
	// Completed is true when the flush succeeded (or there was nothing to
	// flush) and history deletion was attempted. False means the run was
	// interrupted or the flush failed: history was saved for the next run
	// to resume from.
	Completed bool
}

// Run executes one full lifecycle: load inputs, compute the to-do set,
// drive the pool to quiescence, flush, and finalize. ctx cancellation
// (SIGINT/SIGTERM via the caller) stops accepting new outcomes into
// progress accounting, saves history, and returns without flushing —
// in-flight grants are not cancelled, per spec §5.
func (e *Engine) Run(ctx context.Context, recipients []model.Recipient) (result Result, runErr error) {
	runStart := time.Now()
	runID := uuid.New()

	if err := e.runs.Start(ctx, runID, runStart); err != nil {
		logger.EngineError("run_audit_start_failed", "failed to record run start", err, nil)
	}
	defer func() {
		exitReason := "completed"
		if runErr != nil {
			exitReason = runErr.Error()
		} else if !result.Completed {
			exitReason = "interrupted"
		}
		if err := e.runs.Finish(context.Background(), runID, time.Now(), exitReason, result.Counters); err != nil {
			logger.EngineError("run_audit_finish_failed", "failed to record run finish", err, nil)
		}
	}()

	snapshot, resumed := e.history.Load()
	processedKeys := map[string]struct{}{}
	var shareResults []model.ShareResult
	var cellUpdates []model.CellUpdate
	var errorLog []string
	counters := model.ProgressCounters{}
	startTime := runStart

	if resumed {
		processedKeys = snapshot.ProcessedKeySet()
		shareResults = append(shareResults, snapshot.ShareResults...)
		cellUpdates = append(cellUpdates, snapshot.BatchUpdates...)
		errorLog = append(errorLog, snapshot.ErrorLog...)
		counters = snapshot.ProgressStats
		if !snapshot.StartTime.IsZero() {
			startTime = snapshot.StartTime
		}
		logger.Engine("resumed", "resuming from history snapshot", map[string]interface{}{
			"processed_keys": len(processedKeys),
		})
	}

	// Candidates: recipients the remote document has not already marked
	// shared. This set, not the raw input length, is what "total" counts
	// against (spec §3: isShared recipients are skipped without being
	// added to the processed-keys set at all).
	var candidates []model.Recipient
	for _, r := range recipients {
		if !r.IsShared {
			candidates = append(candidates, r)
		}
	}
	counters.Total = len(candidates)
	counters.WorkerCount = e.pool.Size()

	if err := e.pool.Start(ctx); err != nil {
		return Result{}, fmt.Errorf("starting worker pool: %w", err)
	}

	statusDone := make(chan struct{})
	go e.relayWorkerStatuses(statusDone)
	defer close(statusDone)

	now := time.Now
	var toDispatch []model.Recipient
	for _, r := range candidates {
		if _, done := processedKeys[r.Key()]; done {
			continue
		}
		toDispatch = append(toDispatch, r)
	}

	// Pre-dispatch filter: recipients with no matching folder are resolved
	// immediately, never enqueued.
	var enqueued int
	for _, r := range toDispatch {
		folderID, ok := e.matcher.FindFolderID(r.Name)
		if !ok {
			at := now()
			result := model.ShareResult{
				Recipient: r,
				Success:   false,
				Issue:     model.IssueNoFolder,
				Timestamp: at,
			}
			e.recordOutcome(result, &counters, &shareResults, &cellUpdates, &errorLog, processedKeys, startTime)
			continue
		}
		e.pool.Submit(model.Task{FolderID: folderID, Recipient: r})
		enqueued++
	}

	logger.Engine("dispatch_computed", "computed to-do set", map[string]interface{}{
		"candidates": len(candidates),
		"enqueued":   enqueued,
		"skipped":    len(candidates) - len(toDispatch),
	})

	outcomesSinceCheckpoint := 0
	interrupted := false
	remaining := enqueued

drain:
	for remaining > 0 {
		select {
		case <-ctx.Done():
			interrupted = true
			break drain
		case result, ok := <-e.pool.Outcomes():
			if !ok {
				break drain
			}
			result.Timestamp = now()
			e.recordOutcome(result, &counters, &shareResults, &cellUpdates, &errorLog, processedKeys, startTime)
			remaining--
			outcomesSinceCheckpoint++
			if outcomesSinceCheckpoint >= e.checkpointEvery() {
				e.saveSnapshot(processedKeys, shareResults, cellUpdates, errorLog, counters, startTime)
				outcomesSinceCheckpoint = 0
			}
		}
	}

	if interrupted {
		logger.Engine("interrupted", "stopping on cancellation signal, saving history before exit", nil)
		e.saveSnapshot(processedKeys, shareResults, cellUpdates, errorLog, counters, startTime)
		return Result{
			Counters:     counters,
			ShareResults: shareResults,
			ErrorLog:     errorLog,
			StartTime:    startTime,
			EndTime:      now(),
			Completed:    false,
		}, nil
	}

	e.pool.Terminate()

	if len(cellUpdates) > 0 {
		if err := e.flushWithRetry(ctx, cellUpdates); err != nil {
			logger.EngineError("flush_failed", "batch write failed after retries, preserving history", err, nil)
			e.saveSnapshot(processedKeys, shareResults, cellUpdates, errorLog, counters, startTime)
			return Result{
				Counters:     counters,
				ShareResults: shareResults,
				ErrorLog:     errorLog,
				StartTime:    startTime,
				EndTime:      now(),
				Completed:    false,
			}, fmt.Errorf("flushing cell updates: %w", err)
		}
	}

	if err := e.history.Delete(); err != nil {
		logger.HistoryError("delete_failed", "failed to delete history after clean completion", err, nil)
	}

	endTime := now()
	e.emitFinalStats(counters, startTime, endTime)

	return Result{
		Counters:     counters,
		ShareResults: shareResults,
		ErrorLog:     errorLog,
		StartTime:    startTime,
		EndTime:      endTime,
		Completed:    true,
	}, nil
}

func (e *Engine) checkpointEvery() int {
	if e.cfg.CheckpointEvery <= 0 {
		return checkpointEvery
	}
	return e.cfg.CheckpointEvery
}

// recordOutcome applies one outcome to coordinator-owned state: counters,
// result list, cell updates, processed-keys, and the event stream. It is
// used both for worker-reported outcomes and for pre-dispatch NO_FOLDER
// filtering.
func (e *Engine) recordOutcome(result model.ShareResult, counters *model.ProgressCounters, shareResults *[]model.ShareResult, cellUpdates *[]model.CellUpdate, errorLog *[]string, processedKeys map[string]struct{}, startTime time.Time) {
	*shareResults = append(*shareResults, result)
	processedKeys[result.Recipient.Key()] = struct{}{}

	counters.Processed++
	switch {
	case result.Success:
		counters.Successful++
	case result.Issue == model.IssueNoFolder:
		counters.Errors++
	default:
		counters.Failed++
	}

	if repair := counters.Validate(); repair.Repaired {
		logger.Engine("counters_repaired", "clamped progress counters back into range", map[string]interface{}{
			"reason": repair.Reason,
		})
	}

	row := result.Recipient.Row
	*cellUpdates = append(*cellUpdates, model.NewStatusUpdate(e.cfg.SheetTitle, row, result.Success))
	switch {
	case result.Success:
		*cellUpdates = append(*cellUpdates, model.NewSuccessLogUpdate(e.cfg.SheetTitle, row, result.Timestamp))
	case result.Issue == model.IssueNoFolder:
		*cellUpdates = append(*cellUpdates, model.NewNoFolderLogUpdate(e.cfg.SheetTitle, row, result.Timestamp))
		*errorLog = append(*errorLog, fmt.Sprintf("%s: no folder found for %q", result.Timestamp.Format(time.RFC3339), result.Recipient.Name))
	default:
		*cellUpdates = append(*cellUpdates, model.NewFailureLogUpdate(e.cfg.SheetTitle, row, result.Timestamp))
		*errorLog = append(*errorLog, fmt.Sprintf("%s: %s (%s)", result.Timestamp.Format(time.RFC3339), result.Error, result.ErrorCode))
	}

	e.emitOutcomeEvents(result, *counters, startTime)
}

func (e *Engine) emitOutcomeEvents(result model.ShareResult, counters model.ProgressCounters, startTime time.Time) {
	_ = e.events.EmitPlain(port.TagProgress, fmt.Sprintf("Processed %d / %d (%.0f%%)", counters.Processed, counters.Total, counters.PercentComplete()))
	_ = e.events.EmitPlain(port.TagStatus, fmt.Sprintf("%d successful, %d failed, %d errors", counters.Successful, counters.Failed, counters.Errors))
	_ = e.events.EmitPlain(port.TagWorkers, fmt.Sprintf("%d/%d active, %d in queue", e.pool.ActiveWorkers(), counters.WorkerCount, e.pool.QueueLength()))

	speed, eta := runningSpeed(counters, startTime)
	_ = e.events.EmitPlain(port.TagSpeed, fmt.Sprintf("%.2f per second, ETA: %.0fs", speed, eta))
	_ = e.events.EmitJSON(port.TagSpeedUpdate, speedUpdatePayload(counters, e.pool.ActiveWorkers(), speed, eta))

	if result.Success {
		_ = e.events.EmitPlain(port.TagSuccess, fmt.Sprintf("%s <%s> shared", result.Recipient.Name, result.Recipient.Email))
	} else {
		_ = e.events.EmitPlain(port.TagError, fmt.Sprintf("%s <%s>: %s", result.Recipient.Name, result.Recipient.Email, result.Error))
	}

	_ = e.events.EmitJSON(port.TagResultsUpdate, resultsUpdatePayload(result, counters))
}

// runningSpeed computes the outcomes-per-second rate since startTime and the
// estimated seconds remaining at that rate — the running counterpart to
// emitFinalStats' one-time speed, recomputed after every outcome.
func runningSpeed(counters model.ProgressCounters, startTime time.Time) (speed, eta float64) {
	elapsed := time.Since(startTime).Seconds()
	if elapsed <= 0 || counters.Processed == 0 {
		return 0, 0
	}
	speed = float64(counters.Processed) / elapsed
	remaining := counters.Total - counters.Processed
	if remaining < 0 {
		remaining = 0
	}
	if speed > 0 {
		eta = float64(remaining) / speed
	}
	return speed, eta
}

func speedUpdatePayload(counters model.ProgressCounters, activeWorkers int, speed, eta float64) map[string]interface{} {
	return map[string]interface{}{
		"speed":         speed,
		"unit":          "per_second",
		"processed":     counters.Processed,
		"total":         counters.Total,
		"successful":    counters.Successful,
		"failed":        counters.Failed,
		"activeWorkers": activeWorkers,
		"workerCount":   counters.WorkerCount,
		"eta":           eta,
		"timestamp":     time.Now().Format(time.RFC3339),
	}
}

func resultsUpdatePayload(result model.ShareResult, counters model.ProgressCounters) map[string]interface{} {
	return map[string]interface{}{
		"recipient":  result.Recipient.Name,
		"email":      result.Recipient.Email,
		"success":    result.Success,
		"issue":      result.Issue,
		"errorCode":  result.ErrorCode,
		"processed":  counters.Processed,
		"total":      counters.Total,
		"timestamp":  result.Timestamp.Format(time.RFC3339),
	}
}

// relayWorkerStatuses drains pool.Statuses() for the lifetime of Run and
// turns each idle/working/error transition into a WORKER_STATUS line, the
// per-worker broadcast SPEC_FULL names. Stops when done is closed.
func (e *Engine) relayWorkerStatuses(done <-chan struct{}) {
	for {
		select {
		case status, ok := <-e.pool.Statuses():
			if !ok {
				return
			}
			_ = e.events.EmitJSON(port.TagWorkerStatus, map[string]interface{}{
				"workerId": status.WorkerID,
				"state":    status.State,
				"detail":   status.Detail,
			})
		case <-done:
			return
		}
	}
}

func (e *Engine) emitFinalStats(counters model.ProgressCounters, start, end time.Time) {
	elapsed := end.Sub(start).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(counters.Processed) / elapsed
	}
	_ = e.events.EmitPlain(port.TagFinalStats, fmt.Sprintf(
		"Processed=%d, Successful=%d, Failed=%d, Time=%.0fs, Speed=%.2f/s",
		counters.Processed, counters.Successful, counters.Failed, elapsed, speed,
	))
}

func (e *Engine) saveSnapshot(processedKeys map[string]struct{}, shareResults []model.ShareResult, cellUpdates []model.CellUpdate, errorLog []string, counters model.ProgressCounters, startTime time.Time) {
	keys := make([]string, 0, len(processedKeys))
	for k := range processedKeys {
		keys = append(keys, k)
	}
	snapshot := model.HistorySnapshot{
		Timestamp:             time.Now(),
		ProcessedParticipants: keys,
		ShareResults:          shareResults,
		BatchUpdates:          cellUpdates,
		ErrorLog:              errorLog,
		ProgressStats:         counters,
		StartTime:             startTime,
	}
	if err := e.history.Save(snapshot); err != nil {
		logger.HistoryError("save_failed", "failed to save history snapshot", err, nil)
	}
}

// flushWithRetry resolves the sheet title (case-insensitive match, falling
// back to the first sheet) and calls BatchWriteCells, retrying with
// jittered exponential backoff before giving up.
func (e *Engine) flushWithRetry(ctx context.Context, updates []model.CellUpdate) error {
	sheetTitle, err := e.resolveSheetTitle(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < flushRetries; attempt++ {
		if attempt > 0 {
			backoff := flushBackoffBase * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = e.remote.BatchWriteCells(ctx, e.cfg.DocumentID, sheetTitle, updates)
		if lastErr == nil {
			return nil
		}
		logger.RemoteError("flush_attempt_failed", "batch write attempt failed", lastErr, map[string]interface{}{"attempt": attempt + 1})
	}
	return lastErr
}

func (e *Engine) resolveSheetTitle(ctx context.Context) (string, error) {
	sheets, err := e.remote.ListSheets(ctx, e.cfg.DocumentID)
	if err != nil {
		return "", fmt.Errorf("listing sheets: %w", err)
	}
	if len(sheets) == 0 {
		return e.cfg.SheetTitle, nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s.Title, e.cfg.SheetTitle) {
			return s.Title, nil
		}
	}
	return sheets[0].Title, nil
}
