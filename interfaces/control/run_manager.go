package control

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/foldershare/sharer/application/engine"
	"github.com/foldershare/sharer/domain/model"
	"github.com/foldershare/sharer/domain/port"
	"github.com/foldershare/sharer/pkg/logger"
)

// RunState is the control plane's view of one launched run, updated live
// as RESULTS_UPDATE events pass through the emitter.
type RunState struct {
	Status    string
	Counters  model.ProgressCounters
	Error     string
}

// EngineFactory builds a single-use Engine for runID against folders. The
// factory is responsible for wiring an ObserverSink(manager, runID) into
// that engine's EventEmitter so RunManager can track live progress. The
// returned release func, if non-nil, is called once the run's goroutine
// returns — factories that acquire a lock or start a keepalive loop for
// the run hand back its teardown here instead of leaking it.
type EngineFactory func(runID string, folders model.FolderMap) (*engine.Engine, func(), error)

// RunManager tracks in-flight and completed runs launched through the
// control surface. The CLI's own foreground run never touches this —
// it exists purely for §6's "thin web front-end" collaborator.
type RunManager struct {
	mu      sync.Mutex
	states  map[string]*RunState
	factory EngineFactory
}

func NewRunManager(factory EngineFactory) *RunManager {
	return &RunManager{states: make(map[string]*RunState), factory: factory}
}

// Launch starts a new run in the background and returns its id immediately.
func (m *RunManager) Launch(ctx context.Context, folders model.FolderMap, recipients []model.Recipient) (string, error) {
	runID := uuid.New().String()

	e, release, err := m.factory(runID, folders)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.states[runID] = &RunState{Status: "running"}
	m.mu.Unlock()

	go func() {
		if release != nil {
			defer release()
		}
		result, runErr := e.Run(ctx, recipients)
		m.mu.Lock()
		defer m.mu.Unlock()
		state := m.states[runID]
		if state == nil {
			return
		}
		state.Counters = result.Counters
		if runErr != nil {
			state.Status = "failed"
			state.Error = runErr.Error()
			logger.Warn(logger.CategoryControl, "run_failed", "control-launched run ended in error", map[string]interface{}{"run_id": runID, "error": runErr.Error()})
			return
		}
		if result.Completed {
			state.Status = "completed"
		} else {
			state.Status = "interrupted"
		}
	}()

	return runID, nil
}

func (m *RunManager) Get(runID string) (RunState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[runID]
	if !ok {
		return RunState{}, false
	}
	return *state, true
}

// observeLine lets the manager update live counters from RESULTS_UPDATE
// lines without the Engine knowing the control plane exists — it is
// wired in as an extra Sink alongside stdout/Redis relay.
func (m *RunManager) observeLine(runID, line string) {
	const prefix = "RESULTS_UPDATE: "
	if !strings.HasPrefix(line, prefix) {
		return
	}
	var payload struct {
		Processed int `json:"processed"`
		Total     int `json:"total"`
	}
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, prefix)), &payload); err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[runID]; ok {
		state.Counters.Processed = payload.Processed
		state.Counters.Total = payload.Total
	}
}

// ObserverSink forwards every line to inner, then lets manager update its
// live view of runID's progress from RESULTS_UPDATE lines. Used to splice
// the control plane into an Engine's event stream without the Engine
// knowing the control plane exists.
type ObserverSink struct {
	inner   port.Sink
	manager *RunManager
	runID   string
}

func NewObserverSink(inner port.Sink, manager *RunManager, runID string) *ObserverSink {
	return &ObserverSink{inner: inner, manager: manager, runID: runID}
}

func (s *ObserverSink) EmitLine(line string) error {
	s.manager.observeLine(s.runID, line)
	return s.inner.EmitLine(line)
}
