package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
)

type fakeClient struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeClient) GrantRead(ctx context.Context, folderID, email string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.fail[email] {
		return "", &port.RemoteError{Code: model.ErrorPermissionDenied, Message: "denied"}
	}
	return fmt.Sprintf("p%d", n), nil
}

func (f *fakeClient) ListSheets(ctx context.Context, documentID string) ([]port.SheetInfo, error) {
	return nil, nil
}

func (f *fakeClient) BatchWriteCells(ctx context.Context, documentID, sheetTitle string, updates []model.CellUpdate) error {
	return nil
}

func newTestPool(t *testing.T, client port.RemoteClient, size int) *Pool {
	t.Helper()
	cfg := Config{Size: size, InitTimeout: time.Second, CallTimeout: time.Second, RateLimitSleep: 0}
	p := New(client, cfg)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestPool_ProcessesAllTasks(t *testing.T) {
	client := &fakeClient{fail: map[string]bool{}}
	p := newTestPool(t, client, 4)
	defer p.Terminate()

	tasks := []model.Task{
		{FolderID: "f1", Recipient: model.Recipient{Name: "Alice", Email: "a@x", Row: 2}},
		{FolderID: "f2", Recipient: model.Recipient{Name: "Bob", Email: "b@x", Row: 3}},
		{FolderID: "f3", Recipient: model.Recipient{Name: "Carol", Email: "c@x", Row: 4}},
	}
	for _, task := range tasks {
		p.Submit(task)
	}

	got := map[string]model.ShareResult{}
	for len(got) < len(tasks) {
		r := <-p.Outcomes()
		got[r.Recipient.Email] = r
	}

	for _, task := range tasks {
		r, ok := got[task.Recipient.Email]
		require.True(t, ok)
		assert.True(t, r.Success)
	}
	assert.True(t, p.Quiesced())
}

func TestPool_ReportsFailureWithErrorCode(t *testing.T) {
	client := &fakeClient{fail: map[string]bool{"bad@x": true}}
	p := newTestPool(t, client, 2)
	defer p.Terminate()

	p.Submit(model.Task{FolderID: "f1", Recipient: model.Recipient{Name: "Bad", Email: "bad@x", Row: 2}})

	r := <-p.Outcomes()
	assert.False(t, r.Success)
	assert.Equal(t, model.ErrorPermissionDenied, r.ErrorCode)
}

func TestPool_NoWorkerStarvedByAnother(t *testing.T) {
	client := &fakeClient{fail: map[string]bool{}}
	p := newTestPool(t, client, 2)
	defer p.Terminate()

	for i := 0; i < 10; i++ {
		p.Submit(model.Task{FolderID: "f1", Recipient: model.Recipient{Name: fmt.Sprintf("r%d", i), Email: fmt.Sprintf("r%d@x", i), Row: i}})
	}

	count := 0
	for count < 10 {
		<-p.Outcomes()
		count++
	}
	assert.Equal(t, 0, p.QueueLength())
	assert.Equal(t, 0, p.ActiveWorkers())
}
