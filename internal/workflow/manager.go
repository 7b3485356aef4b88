package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"docmill/internal/autoscale"
	"docmill/internal/config"
	"docmill/internal/dispatch"
	"docmill/internal/logging"
	"docmill/internal/pipeline"
	"docmill/internal/services"
)

// CycleFunc runs one pass of a periodic loop.
type CycleFunc func(ctx context.Context) error

// loopState tracks one periodic loop and its most recent outcome.
type loopState struct {
	name     string
	interval time.Duration
	run      CycleFunc
	logger   *slog.Logger

	mu          sync.Mutex
	lastRun     time.Time
	lastOutcome string
	lastErr     error
}

// LoopStatus is a point-in-time snapshot of one loop for status reporting.
type LoopStatus struct {
	Name        string
	Interval    time.Duration
	LastRun     time.Time
	LastOutcome string
	LastError   string
}

// Manager drives the daemon's periodic loops: folder ingestion, autoscaling
// plus dispatch, conversion submission, and conversion polling. Each loop is
// non-overlapping: a pass runs to completion before its next interval starts.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	loops  []*loopState

	retryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the workflow loops over the orchestrator, dispatcher, and
// autoscaler. The autoscaler always evaluates before dispatch within the same
// pass so freshly provisioned capacity is visible to the assignment that
// triggered it.
func NewManager(
	cfg *config.Config,
	orchestrator *pipeline.Orchestrator,
	dispatcher *dispatch.Dispatcher,
	autoscaler *autoscale.Autoscaler,
	logger *slog.Logger,
) *Manager {
	m := &Manager{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
	m.loops = []*loopState{
		newLoop("ingest", cfg.Workflow.IngestInterval, orchestrator.Ingest),
		newLoop("dispatch", cfg.Workflow.DispatchInterval, func(ctx context.Context) error {
			return errors.Join(autoscaler.Cycle(ctx), dispatcher.Cycle(ctx))
		}),
		newLoop("convert", cfg.Workflow.ConvertInterval, orchestrator.ConvertCycle),
		newLoop("check-conversions", cfg.Workflow.ConversionPollInterval, orchestrator.CheckConversions),
	}
	for _, loop := range m.loops {
		loop.logger = m.logger.With(logging.String("loop", loop.name))
	}
	return m
}

func newLoop(name string, intervalSeconds int, run CycleFunc) *loopState {
	return &loopState{
		name:     name,
		interval: time.Duration(intervalSeconds) * time.Second,
		run:      run,
	}
}

// Start launches every loop in its own goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(len(m.loops))
	for _, loop := range m.loops {
		go m.runLoop(runCtx, loop)
	}
	return nil
}

// Stop cancels the loops and waits for in-flight passes to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLoop(ctx context.Context, loop *loopState) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := loop.interval
		err := loop.run(ctx)
		switch {
		case err == nil:
			loop.record("ok", nil)
		case errors.Is(err, context.Canceled):
			return
		case isQuiescent(err):
			// Expected back-pressure: saturation and pending conversions are
			// outcomes of a healthy pass, not failures.
			loop.record("waiting", err)
			loop.logger.Debug("pass ended waiting", logging.Error(err))
		default:
			loop.record("error", err)
			loop.logger.Error("pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "loop_failure"),
			)
			wait = m.retryInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// isQuiescent reports whether an error describes expected idle back-pressure
// rather than a failed pass. A joined error is quiescent only when every
// component is.
func isQuiescent(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, component := range joined.Unwrap() {
			if !isQuiescent(component) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, services.ErrCapacityExhausted) || errors.Is(err, services.ErrNotReady)
}

func (l *loopState) record(outcome string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRun = time.Now()
	l.lastOutcome = outcome
	l.lastErr = err
}

// Status returns a snapshot of every loop in registration order.
func (m *Manager) Status() []LoopStatus {
	statuses := make([]LoopStatus, 0, len(m.loops))
	for _, loop := range m.loops {
		loop.mu.Lock()
		status := LoopStatus{
			Name:        loop.name,
			Interval:    loop.interval,
			LastRun:     loop.lastRun,
			LastOutcome: loop.lastOutcome,
		}
		if loop.lastErr != nil {
			status.LastError = loop.lastErr.Error()
		}
		loop.mu.Unlock()
		statuses = append(statuses, status)
	}
	return statuses
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
