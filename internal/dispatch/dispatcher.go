package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"docmill/internal/config"
	"docmill/internal/logging"
	"docmill/internal/registry"
	"docmill/internal/services"
)

// DocumentProcessor runs one dispatch-and-process attempt for an assigned pair.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, doc *registry.Document, proc *registry.Processor) error
}

// Dispatcher matches queued documents to available processor slots and
// submits each pair independently.
type Dispatcher struct {
	store        *registry.Store
	orchestrator DocumentProcessor
	cap          int
	logger       *slog.Logger
}

// assignment pairs a queued document with the processor slot it will occupy.
type assignment struct {
	doc  *registry.Document
	proc *registry.Processor
}

// New constructs a dispatcher bound to the configured per-processor cap.
func New(cfg *config.Config, store *registry.Store, orchestrator DocumentProcessor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:        store,
		orchestrator: orchestrator,
		cap:          cfg.Pipeline.ProcessorCap,
		logger:       logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Cycle assigns queued documents to running processors and processes each
// assigned pair concurrently. Documents beyond the available slots remain
// QUEUED for a later cycle. A cycle with queued work but no slots reports
// capacity exhaustion instead of silently doing nothing.
func (d *Dispatcher) Cycle(ctx context.Context) error {
	queued, err := d.store.DocumentsByStatus(ctx, registry.StatusQueued)
	if err != nil {
		return fmt.Errorf("list queued documents: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}

	running, err := d.store.ProcessorsByStatus(ctx, registry.ProcessorRunning)
	if err != nil {
		return fmt.Errorf("list running processors: %w", err)
	}

	assignments := d.assign(queued, running)
	if len(assignments) == 0 {
		return services.Wrap(
			services.ErrCapacityExhausted,
			"dispatch",
			"cycle",
			fmt.Sprintf("%d queued documents and no available processor slots", len(queued)),
			nil,
		)
	}

	d.logger.Info("dispatching documents",
		logging.Int("queued", len(queued)),
		logging.Int("assigned", len(assignments)),
		logging.Int("processors", len(running)),
	)

	// The zero-value group carries no cancellation: a failed pair never
	// interrupts its siblings.
	var group errgroup.Group
	for _, pair := range assignments {
		pair := pair
		group.Go(func() error {
			return d.orchestrator.ProcessDocument(ctx, pair.doc, pair.proc)
		})
	}
	return group.Wait()
}

// assign expands each processor, least-loaded first, into its free slots and
// fills them with documents in arrival order.
func (d *Dispatcher) assign(queued []*registry.Document, running []*registry.Processor) []assignment {
	var slots []*registry.Processor
	for _, proc := range running {
		for i := 0; i < proc.AvailableSlots(d.cap); i++ {
			slots = append(slots, proc)
		}
	}

	count := len(queued)
	if len(slots) < count {
		count = len(slots)
	}

	assignments := make([]assignment, 0, count)
	for i := 0; i < count; i++ {
		assignments = append(assignments, assignment{doc: queued[i], proc: slots[i]})
	}
	return assignments
}
