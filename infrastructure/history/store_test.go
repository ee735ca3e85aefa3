package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldershare/sharer/domain/model"
)

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "history.json"))

	snapshot := model.HistorySnapshot{
		Timestamp:             time.Unix(1000, 0),
		ProcessedParticipants: []string{"alice|a@example.com"},
		ShareResults: []model.ShareResult{
			{Recipient: model.Recipient{Name: "alice", Email: "a@example.com"}, Success: true},
		},
		ProgressStats: model.ProgressCounters{Total: 2, Processed: 1, Successful: 1, WorkerCount: 4},
		StartTime:     time.Unix(900, 0),
	}

	require.NoError(t, store.Save(snapshot))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, snapshot.ProcessedParticipants, loaded.ProcessedParticipants)
	assert.Equal(t, 1, loaded.ProgressStats.Processed)
}

func TestLoad_MissingFileReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "missing.json"))

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestLoad_CorruptJSONReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := New(path)
	_, ok := store.Load()
	assert.False(t, ok)
}

func TestLoad_RejectsCorruptCountersButKeepsKeys(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "history.json"))

	require.NoError(t, store.Save(model.HistorySnapshot{
		ProcessedParticipants: []string{"a|a@example.com", "b|b@example.com"},
		ShareResults:          []model.ShareResult{{Recipient: model.Recipient{Name: "a"}, Success: true}},
		ProgressStats:         model.ProgressCounters{Total: 5, Processed: 10},
	}))

	loaded, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, model.ProgressCounters{}, loaded.ProgressStats)
	assert.Len(t, loaded.ProcessedParticipants, 2)
	assert.Len(t, loaded.ShareResults, 1)
}

func TestDelete_MissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "missing.json"))
	assert.NoError(t, store.Delete())
}

func TestDelete_RemovesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	store := New(path)
	require.NoError(t, store.Save(model.HistorySnapshot{}))

	require.NoError(t, store.Delete())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
