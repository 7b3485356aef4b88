package pipeline

import (
	"context"
	"log/slog"
	"time"

	"docmill/internal/config"
	"docmill/internal/contentstore"
	"docmill/internal/conversion"
	"docmill/internal/logging"
	"docmill/internal/registry"
	"docmill/internal/worker"
)

// WorkerClient is the exchange contract against a remote processor.
type WorkerClient interface {
	Process(ctx context.Context, address, inputPath, outputPath string) error
}

// Orchestrator drives documents through the pipeline state machine, calling
// the content store, the worker protocol, and the conversion service.
type Orchestrator struct {
	cfg       *config.Config
	store     *registry.Store
	content   contentstore.Gateway
	converter conversion.Service
	workers   WorkerClient
	logger    *slog.Logger
}

// NewOrchestrator constructs the orchestrator using default collaborators.
func NewOrchestrator(cfg *config.Config, store *registry.Store, content contentstore.Gateway, logger *slog.Logger) *Orchestrator {
	workerTimeout := time.Duration(cfg.Fleet.WorkerTimeoutSeconds) * time.Second
	return NewOrchestratorWithDependencies(
		cfg,
		store,
		content,
		conversion.NewConfiguredService(cfg.Conversion),
		worker.NewClient(cfg.Fleet.WorkerPort, cfg.Fleet.WorkerPath, workerTimeout, nil),
		logger,
	)
}

// NewOrchestratorWithDependencies allows injecting collaborators (used in tests).
func NewOrchestratorWithDependencies(
	cfg *config.Config,
	store *registry.Store,
	content contentstore.Gateway,
	converter conversion.Service,
	workers WorkerClient,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		content:   content,
		converter: converter,
		workers:   workers,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}
