package engine_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldershare/sharer/application/engine"
	"github.com/foldershare/sharer/application/matcher"
	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/infrastructure/eventstream"
	"github.com/foldershare/sharer/infrastructure/history"
	"github.com/foldershare/sharer/infrastructure/runrepo"
	"github.com/foldershare/sharer/infrastructure/worker"
)

// fakeRemote is an in-memory RemoteClient fake, per spec §9 "Polymorphism".
type fakeRemote struct {
	mu       sync.Mutex
	grants   int
	failFor  map[string]model.ErrorCode
	sheets   []port.SheetInfo
	writes   []model.CellUpdate
	failFlushTimes int
}

func (f *fakeRemote) GrantRead(ctx context.Context, folderID, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants++
	if code, bad := f.failFor[email]; bad {
		return "", &port.RemoteError{Code: code, Message: "simulated failure"}
	}
	return fmt.Sprintf("p%d", f.grants), nil
}

func (f *fakeRemote) ListSheets(ctx context.Context, documentID string) ([]port.SheetInfo, error) {
	if len(f.sheets) == 0 {
		return []port.SheetInfo{{Title: "Sheet1", SheetID: 0}}, nil
	}
	return f.sheets, nil
}

func (f *fakeRemote) BatchWriteCells(ctx context.Context, documentID, sheetTitle string, updates []model.CellUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFlushTimes > 0 {
		f.failFlushTimes--
		return fmt.Errorf("simulated flush failure")
	}
	f.writes = append(f.writes, updates...)
	return nil
}

func newEngine(t *testing.T, folders model.FolderMap, remote port.RemoteClient, historyPath string) (*engine.Engine, *eventstream.MemorySink) {
	t.Helper()
	m := matcher.New(folders)
	pool := worker.New(remote, worker.Config{Size: 4, InitTimeout: 2 * time.Second, CallTimeout: 5 * time.Second, RateLimitSleep: 0})
	sink := eventstream.NewMemorySink()
	emitter := eventstream.New(sink)
	store := history.New(historyPath)
	e := engine.New(m, pool, remote, store, emitter, runrepo.NoOp{}, engine.Config{
		DocumentID: "doc1",
		SheetTitle: "Sheet1",
	})
	return e, sink
}

func TestEngine_S1_HappyPath(t *testing.T) {
	dir := t.TempDir()
	folders := model.FolderMap{"alice": "f1", "bob": "f2"}
	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, filepath.Join(dir, "history.json"))

	recipients := []model.Recipient{
		{Row: 2, Name: "Alice", Email: "a@x"},
		{Row: 3, Name: "Bob", Email: "b@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.Counters.Processed)
	assert.Equal(t, 2, result.Counters.Successful)
	assert.Equal(t, 0, result.Counters.Errors)
	assert.Equal(t, 0, result.Counters.Failed)
	assert.Len(t, result.ShareResults, 2)

	_, ok := history.New(filepath.Join(dir, "history.json")).Load()
	assert.False(t, ok, "history file should be deleted after clean completion")
}

func TestEngine_S2_SkipAlreadyShared(t *testing.T) {
	dir := t.TempDir()
	folders := model.FolderMap{"alice": "f1", "bob": "f2"}
	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, filepath.Join(dir, "history.json"))

	recipients := []model.Recipient{
		{Row: 2, Name: "Alice", Email: "a@x", IsShared: true},
		{Row: 3, Name: "Bob", Email: "b@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Total)
	assert.Equal(t, 1, result.Counters.Processed)
	assert.Len(t, result.ShareResults, 1)
	assert.Equal(t, "Bob", result.ShareResults[0].Recipient.Name)
}

func TestEngine_S3_NoFolder(t *testing.T) {
	dir := t.TempDir()
	folders := model.FolderMap{"alice": "f1"}
	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, filepath.Join(dir, "history.json"))

	recipients := []model.Recipient{
		{Row: 3, Name: "Bob", Email: "b@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Processed)
	assert.Equal(t, 0, result.Counters.Successful)
	assert.Equal(t, 0, result.Counters.Failed)
	assert.Equal(t, 1, result.Counters.Errors)
	require.Len(t, result.ShareResults, 1)
	assert.Equal(t, model.IssueNoFolder, result.ShareResults[0].Issue)
}

func TestEngine_S4_FuzzyMatch(t *testing.T) {
	dir := t.TempDir()
	folders := model.FolderMap{"alice smith, s.e.": "f1"}
	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, filepath.Join(dir, "history.json"))

	recipients := []model.Recipient{
		{Row: 2, Name: "Alice Smith", Email: "a@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Successful)
}

func TestEngine_S5_Resume(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	folders := model.FolderMap{"a": "f1", "b": "f2", "c": "f3", "d": "f4"}

	store := history.New(historyPath)
	require.NoError(t, store.Save(model.HistorySnapshot{
		ProcessedParticipants: []string{"A|a@x", "B|b@x"},
		ProgressStats:         model.ProgressCounters{Total: 4, Processed: 2, Successful: 2},
	}))

	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, historyPath)

	recipients := []model.Recipient{
		{Row: 2, Name: "A", Email: "a@x"},
		{Row: 3, Name: "B", Email: "b@x"},
		{Row: 4, Name: "C", Email: "c@x"},
		{Row: 5, Name: "D", Email: "d@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Counters.Processed)
	assert.Equal(t, 4, result.Counters.Successful)
	assert.True(t, result.Completed)

	_, ok := history.New(historyPath).Load()
	assert.False(t, ok)
}

func TestEngine_S6_CounterRepairOnCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	folders := model.FolderMap{"a": "f1"}

	store := history.New(historyPath)
	require.NoError(t, store.Save(model.HistorySnapshot{
		ProcessedParticipants: []string{"A|a@x"},
		ProgressStats:         model.ProgressCounters{Total: 5, Processed: 10},
	}))

	remote := &fakeRemote{}
	e, _ := newEngine(t, folders, remote, historyPath)

	recipients := []model.Recipient{
		{Row: 2, Name: "A", Email: "a@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counters.Total)
	assert.Equal(t, 0, result.Counters.Processed)
	assert.True(t, result.Completed)
}

func TestEngine_FlushFailurePreservesHistory(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.json")
	folders := model.FolderMap{"alice": "f1"}
	remote := &fakeRemote{failFlushTimes: 10}
	e, _ := newEngine(t, folders, remote, historyPath)

	recipients := []model.Recipient{
		{Row: 2, Name: "Alice", Email: "a@x"},
	}

	result, err := e.Run(context.Background(), recipients)
	assert.Error(t, err)
	assert.False(t, result.Completed)

	_, ok := history.New(historyPath).Load()
	assert.True(t, ok, "history must survive a flush failure")
}
