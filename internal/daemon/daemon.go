package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"docmill/internal/autoscale"
	"docmill/internal/config"
	"docmill/internal/contentstore"
	"docmill/internal/dispatch"
	"docmill/internal/fleet"
	"docmill/internal/logging"
	"docmill/internal/pipeline"
	"docmill/internal/registry"
	"docmill/internal/workflow"
)

// Daemon coordinates the background loops and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *registry.Store
	orchestrator *pipeline.Orchestrator
	workflow     *workflow.Manager
	logPath      string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Loops          []workflow.LoopStatus
	RegistryDBPath string
	LockFilePath   string
}

// New constructs a daemon with default collaborators wired from configuration.
func New(cfg *config.Config, store *registry.Store, logger *slog.Logger) (*Daemon, error) {
	content, err := contentstore.NewMinIO(cfg.ContentStore)
	if err != nil {
		return nil, fmt.Errorf("connect content store: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(cfg, store, content, logger)
	dispatcher := dispatch.New(cfg, store, orchestrator, logger)
	autoscaler := autoscale.New(cfg, store, fleet.NewConfiguredGateway(cfg.Fleet), logger)
	manager := workflow.NewManager(cfg, orchestrator, dispatcher, autoscaler, logger)

	return NewWithComponents(cfg, store, orchestrator, manager, logger)
}

// NewWithComponents constructs a daemon around pre-built collaborators (used in tests).
func NewWithComponents(
	cfg *config.Config,
	store *registry.Store,
	orchestrator *pipeline.Orchestrator,
	manager *workflow.Manager,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || store == nil || orchestrator == nil || manager == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, workflow manager, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "docmilld.lock")
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		orchestrator: orchestrator,
		workflow:     manager,
		logPath:      filepath.Join(cfg.Paths.LogDir, "docmill.log"),
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers interrupted documents, and
// launches the workflow loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docmill daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Documents stuck in PROCESSING belong to a previous run; they carry no
	// committed result and are safe to re-queue.
	recovered, err := d.store.ResetStuckProcessing(d.ctx)
	if err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("recover interrupted documents: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("re-queued interrupted documents", logging.Int64("count", recovered))
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseOnStartFailure()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("docmill daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseOnStartFailure() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("docmill daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListDocuments returns documents filtered by optional statuses.
func (d *Daemon) ListDocuments(ctx context.Context, statuses ...registry.DocumentStatus) ([]*registry.Document, error) {
	return d.store.ListDocuments(ctx, statuses...)
}

// ListProcessors returns processors filtered by optional statuses.
func (d *Daemon) ListProcessors(ctx context.Context, statuses ...registry.ProcessorStatus) ([]*registry.Processor, error) {
	return d.store.ListProcessors(ctx, statuses...)
}

// DocumentCounts returns per-status document totals.
func (d *Daemon) DocumentCounts(ctx context.Context) (registry.DocumentStats, error) {
	return d.store.DocumentCounts(ctx)
}

// ProcessorCounts returns per-status processor totals.
func (d *Daemon) ProcessorCounts(ctx context.Context) (registry.ProcessorStats, error) {
	return d.store.ProcessorCounts(ctx)
}

// ResetStuck re-queues documents left in PROCESSING.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// ViewURL resolves a temporary view link for a converted document.
func (d *Daemon) ViewURL(ctx context.Context, processedFileID string) (string, error) {
	return d.orchestrator.ResolveViewURL(ctx, processedFileID)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		Loops:          d.workflow.Status(),
		RegistryDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
	}
}
