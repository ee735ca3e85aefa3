// Package worker implements the fixed-size, pull-based WorkerPool from
// spec §4.5: a worker finishing a task immediately receives the next queued
// one, so no worker can be starved by another, and the pool itself owns the
// FIFO queue rather than sharing it with the coordinator.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/pkg/logger"
)

// Config tunes the pool's size and timing.
type Config struct {
	Size            int
	InitTimeout     time.Duration
	CallTimeout     time.Duration
	RateLimitSleep  time.Duration
}

// DefaultConfig mirrors the spec's defaults: 16 workers, 100ms rate-limit
// sleep, a 30s per-call deadline delegated to RemoteClient.
func DefaultConfig() Config {
	return Config{
		Size:           16,
		InitTimeout:    5 * time.Second,
		CallTimeout:    30 * time.Second,
		RateLimitSleep: 100 * time.Millisecond,
	}
}

// Pool is the concrete WorkerPool. All dispatch bookkeeping (queue, idle
// worker ids, active count) is owned by the pool's mutex; the coordinator
// never touches it directly, it only drains Outcomes()/Statuses().
type Pool struct {
	cfg    Config
	client port.RemoteClient

	mu       sync.Mutex
	queue    []model.Task
	idle     []int
	active   int
	states   []port.WorkerState
	taskCh   []chan model.Task

	outcomes chan model.ShareResult
	statuses chan port.WorkerStatus
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a pool talking to client, not yet started.
func New(client port.RemoteClient, cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	return &Pool{
		cfg:      cfg,
		client:   client,
		states:   make([]port.WorkerState, cfg.Size),
		taskCh:   make([]chan model.Task, cfg.Size),
		outcomes: make(chan model.ShareResult, cfg.Size*4),
		statuses: make(chan port.WorkerStatus, cfg.Size*4),
		stopCh:   make(chan struct{}),
	}
}

func (p *Pool) Size() int { return p.cfg.Size }

func (p *Pool) Outcomes() <-chan model.ShareResult  { return p.outcomes }
func (p *Pool) Statuses() <-chan port.WorkerStatus { return p.statuses }

// Start spawns Size() workers and blocks until all have signaled ready or
// InitTimeout elapses; workers that never signal are marked error and
// excluded from dispatch, per spec §4.5.
func (p *Pool) Start(ctx context.Context) error {
	readyCh := make(chan int, p.cfg.Size)

	// Prime the ready workers with any tasks submitted before Start.
	defer func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for len(p.queue) > 0 && len(p.idle) > 0 {
			id, task := p.idle[0], p.queue[0]
			p.idle, p.queue = p.idle[1:], p.queue[1:]
			p.active++
			p.states[id] = port.WorkerWorking
			p.taskCh[id] <- task
		}
	}()

	for i := 0; i < p.cfg.Size; i++ {
		p.taskCh[i] = make(chan model.Task, 1)
		p.wg.Add(1)
		go p.runWorker(ctx, i, readyCh)
	}

	deadline := time.After(p.cfg.InitTimeout)
	readyCount := 0
	for readyCount < p.cfg.Size {
		select {
		case id := <-readyCh:
			p.mu.Lock()
			p.states[id] = port.WorkerIdle
			p.idle = append(p.idle, id)
			p.mu.Unlock()
			readyCount++
		case <-deadline:
			p.mu.Lock()
			for i := 0; i < p.cfg.Size; i++ {
				if p.states[i] != port.WorkerIdle {
					p.states[i] = port.WorkerError
					logger.Warn(logger.CategoryWorker, "init_timeout", "worker failed to initialize in time", map[string]interface{}{"worker_id": i})
				}
			}
			p.mu.Unlock()
			return nil
		}
	}
	return nil
}

func (p *Pool) runWorker(ctx context.Context, id int, readyCh chan<- int) {
	defer p.wg.Done()

	p.emitStatus(id, port.WorkerIdle, "")
	readyCh <- id

	for {
		select {
		case task, ok := <-p.taskCh[id]:
			if !ok {
				return
			}
			p.emitStatus(id, port.WorkerWorking, task.Recipient.Name)
			result, crashed := p.runTask(ctx, id, task)
			if crashed {
				p.onWorkerCrashed(id)
			} else {
				p.onWorkerFinished(id)
			}
			select {
			case p.outcomes <- result:
			case <-p.stopCh:
			}
			if crashed {
				return
			}
		case <-p.stopCh:
			return
		}
	}
}

// runTask performs one grant and recovers from a panic inside it rather
// than letting the worker's goroutine take the whole process down —
// spec §4.5's [working] --unrecoverable--> [error] transition. A crashed
// worker reports a failed outcome for its in-flight task and exits; it is
// never returned to the idle pool.
func (p *Pool) runTask(ctx context.Context, id int, task model.Task) (result model.ShareResult, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(logger.CategoryWorker, "worker_panic", "worker task panicked, worker transitioning to error", map[string]interface{}{
				"worker_id": id,
				"recover":   fmt.Sprintf("%v", r),
			})
			crashed = true
			result = model.ShareResult{
				Recipient: task.Recipient,
				FolderID:  task.FolderID,
				Success:   false,
				Error:     fmt.Sprintf("worker panic: %v", r),
				ErrorCode: model.ErrorUnknown,
			}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	result = model.ShareResult{Recipient: task.Recipient, FolderID: task.FolderID}

	permissionID, err := p.client.GrantRead(callCtx, task.FolderID, task.Recipient.Email)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.ErrorCode = port.CodeOf(err)
	} else {
		result.Success = true
		result.PermissionID = permissionID
	}

	if p.cfg.RateLimitSleep > 0 {
		time.Sleep(p.cfg.RateLimitSleep)
	}

	return result, false
}

func (p *Pool) emitStatus(id int, state port.WorkerState, detail string) {
	select {
	case p.statuses <- port.WorkerStatus{WorkerID: id, State: state, Detail: detail}:
	default:
	}
}

// Submit enqueues task, handing it straight to an idle worker if one is
// waiting, otherwise appending to the FIFO queue.
func (p *Pool) Submit(task model.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) > 0 {
		id := p.idle[0]
		p.idle = p.idle[1:]
		p.active++
		p.states[id] = port.WorkerWorking
		p.taskCh[id] <- task
		return
	}
	p.queue = append(p.queue, task)
}

// onWorkerFinished is the pull-based dispatch step: a worker completing a
// task immediately gets the next queued one, or goes idle.
func (p *Pool) onWorkerFinished(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--

	if len(p.queue) > 0 {
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.active++
		p.states[id] = port.WorkerWorking
		p.taskCh[id] <- task
		return
	}

	p.states[id] = port.WorkerIdle
	p.idle = append(p.idle, id)
	p.emitStatus(id, port.WorkerIdle, "")
}

// onWorkerCrashed retires a worker permanently after a panic: its slot is
// removed from circulation (not re-added to idle, no further tasks ever
// sent to its taskCh) rather than resurrected by the next Submit/
// onWorkerFinished cycle.
func (p *Pool) onWorkerCrashed(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	p.states[id] = port.WorkerError
	p.emitStatus(id, port.WorkerError, "")
}

func (p *Pool) Quiesced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) == 0 && p.active == 0
}

func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Pool) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Terminate signals every worker to stop after finishing any in-flight
// task, then waits for them to exit.
func (p *Pool) Terminate() {
	close(p.stopCh)
	p.wg.Wait()
}
