package port

import (
	"context"

	"github.com/foldershare/sharer/domain/model"
)

// WorkerState is a worker's position in the state machine from spec §4.5.
type WorkerState string

const (
	WorkerUninit  WorkerState = "uninit"
	WorkerIdle    WorkerState = "idle"
	WorkerWorking WorkerState = "working"
	WorkerError   WorkerState = "error"
)

// WorkerStatus is reported whenever a worker changes state, driving the
// WORKER_STATUS event.
type WorkerStatus struct {
	WorkerID int
	State    WorkerState
	Detail   string // e.g. the recipient name it's working on
}

// WorkerPool is a fixed-size pool of workers sharing a task queue. Workers
// only ever suspend on RemoteClient.GrantRead I/O; all other mutable state
// lives with the coordinator that drains Outcomes().
type WorkerPool interface {
	// Start spawns Size() workers and blocks until each has signaled ready
	// or the init timeout elapses, whichever comes first.
	Start(ctx context.Context) error

	// Submit enqueues a task. Safe to call before or after Start.
	Submit(task model.Task)

	// Outcomes returns the channel workers report ShareResults on.
	Outcomes() <-chan model.ShareResult

	// Statuses returns the channel workers report WorkerStatus transitions on.
	Statuses() <-chan WorkerStatus

	// Quiesced reports whether the queue is empty and no worker is active.
	Quiesced() bool

	// ActiveWorkers returns the current count of busy workers.
	ActiveWorkers() int

	// QueueLength returns the number of tasks waiting for a worker.
	QueueLength() int

	// Size returns the configured pool size W.
	Size() int

	// Terminate signals all workers to stop after finishing any in-flight task.
	Terminate()
}
