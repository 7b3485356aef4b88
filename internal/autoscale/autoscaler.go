package autoscale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docmill/internal/config"
	"docmill/internal/fleet"
	"docmill/internal/logging"
	"docmill/internal/registry"
	"docmill/internal/services"
)

// Autoscaler grows and shrinks the processor fleet based on queue pressure
// and idleness.
type Autoscaler struct {
	cfg     *config.Config
	store   *registry.Store
	gateway fleet.Gateway
	logger  *slog.Logger

	pollDelay   time.Duration
	maxAttempts int
}

// New constructs an autoscaler bound to the configured thresholds.
func New(cfg *config.Config, store *registry.Store, gateway fleet.Gateway, logger *slog.Logger) *Autoscaler {
	return &Autoscaler{
		cfg:         cfg,
		store:       store,
		gateway:     gateway,
		logger:      logging.NewComponentLogger(logger, "autoscale"),
		pollDelay:   time.Duration(cfg.Workflow.ProvisionPollSeconds) * time.Second,
		maxAttempts: cfg.Workflow.ProvisionMaxAttempts,
	}
}

// Cycle evaluates one scale-up decision followed by one scale-down pass. A
// failed scale-up never aborts the scale-down evaluation.
func (a *Autoscaler) Cycle(ctx context.Context) error {
	upErr := a.scaleUp(ctx)
	downErr := a.scaleDown(ctx)
	return errors.Join(upErr, downErr)
}

func (a *Autoscaler) scaleUp(ctx context.Context) error {
	queuedCount, err := a.store.CountDocumentsByStatus(ctx, registry.StatusQueued)
	if err != nil {
		return fmt.Errorf("count queued documents: %w", err)
	}
	overdueCount, err := a.store.CountQueuedOlderThan(ctx, time.Now().Add(-a.cfg.QueueWaitThreshold()))
	if err != nil {
		return fmt.Errorf("count overdue documents: %w", err)
	}

	active, err := a.store.ListProcessors(ctx, registry.ProcessorRunning, registry.ProcessorPending)
	if err != nil {
		return fmt.Errorf("list active processors: %w", err)
	}
	availableCapacity := 0
	pendingCount := 0
	for _, proc := range active {
		availableCapacity += proc.AvailableSlots(a.cfg.Pipeline.ProcessorCap)
		if proc.Status == registry.ProcessorPending {
			pendingCount++
		}
	}

	threshold := a.cfg.Pipeline.QueueThreshold
	pressured := queuedCount > threshold || overdueCount > 0
	underProvisioned := queuedCount-threshold > availableCapacity || overdueCount > availableCapacity
	if !pressured || !underProvisioned {
		return nil
	}

	a.logger.Info("scale-up triggered",
		logging.Int("queued", queuedCount),
		logging.Int("overdue", overdueCount),
		logging.Int("available_capacity", availableCapacity),
		logging.String(logging.FieldEventType, "scale_up"),
	)

	stopped, err := a.store.ProcessorsByStatus(ctx, registry.ProcessorNotRunning)
	if err != nil {
		return fmt.Errorf("list stopped processors: %w", err)
	}
	if len(stopped) > 0 {
		return a.resumeProcessor(ctx, stopped[0])
	}
	if pendingCount > 0 {
		// A launch is already in flight; starting another would double-provision.
		a.logger.Info("scale-up deferred to pending processor", logging.Int("pending", pendingCount))
		return nil
	}
	return a.launchProcessor(ctx)
}

// resumeProcessor restarts a stopped instance and waits for it to come back.
func (a *Autoscaler) resumeProcessor(ctx context.Context, proc *registry.Processor) error {
	ctx = services.WithProcessorID(ctx, proc.ID)
	logger := logging.WithContext(ctx, a.logger).With(logging.String(logging.FieldInstanceID, proc.InstanceID))

	if err := a.gateway.Start(ctx, []string{proc.InstanceID}); err != nil {
		return err
	}
	proc.Status = registry.ProcessorPending
	proc.Address = ""
	if err := a.store.UpdateProcessor(ctx, proc); err != nil {
		return fmt.Errorf("persist pending transition: %w", err)
	}

	logger.Info("resuming stopped processor")
	return a.finalizeProvisioning(ctx, logger, proc)
}

// launchProcessor creates a brand new instance from the launch template and
// registers it before waiting for readiness.
func (a *Autoscaler) launchProcessor(ctx context.Context) error {
	template := fleet.LaunchTemplate{
		ImageID:       a.cfg.Fleet.ImageID,
		InstanceType:  a.cfg.Fleet.InstanceType,
		SecurityGroup: a.cfg.Fleet.SecurityGroup,
	}
	instanceIDs, err := a.gateway.Launch(ctx, template, 1)
	if err != nil {
		return err
	}

	proc, err := a.store.NewProcessor(ctx, instanceIDs[0])
	if err != nil {
		return fmt.Errorf("register launched processor: %w", err)
	}

	ctx = services.WithProcessorID(ctx, proc.ID)
	logger := logging.WithContext(ctx, a.logger).With(logging.String(logging.FieldInstanceID, proc.InstanceID))
	logger.Info("launched new processor instance")
	return a.finalizeProvisioning(ctx, logger, proc)
}

// finalizeProvisioning waits for the instance to report running and promotes
// the registry record. On a fatal provisioning outcome the record is demoted
// to NOT_RUNNING: a lingering PENDING row would defer every future launch and
// count a full cap of phantom capacity. A demoted processor is retried by
// resume on the next pressure and reaped by the idle terminator if it never
// recovers.
func (a *Autoscaler) finalizeProvisioning(ctx context.Context, logger *slog.Logger, proc *registry.Processor) error {
	description, err := a.awaitRunning(ctx, proc.InstanceID)
	if err != nil {
		logger.Error("processor never became ready",
			logging.Error(err),
			logging.String(logging.FieldEventType, "provisioning_failure"),
		)
		if errors.Is(err, services.ErrFatalProvisioning) {
			proc.Status = registry.ProcessorNotRunning
			proc.Address = ""
			if persistErr := a.store.UpdateProcessor(ctx, proc); persistErr != nil {
				logger.Error("failed to demote unprovisioned processor", logging.Error(persistErr))
			}
		}
		return err
	}

	proc.Status = registry.ProcessorRunning
	proc.Address = description.Address
	proc.LastUsedAt = time.Now().UTC()
	if err := a.store.UpdateProcessor(ctx, proc); err != nil {
		return fmt.Errorf("persist running transition: %w", err)
	}

	logger.Info("processor ready",
		logging.String("address", proc.Address),
		logging.String(logging.FieldEventType, "processor_ready"),
	)
	return nil
}

// awaitRunning polls instance state on a fixed delay until the provider
// reports a terminal state or the attempt budget runs out.
func (a *Autoscaler) awaitRunning(ctx context.Context, instanceID string) (fleet.InstanceDescription, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		descriptions, err := a.gateway.Describe(ctx, []string{instanceID})
		if err != nil {
			return fleet.InstanceDescription{}, err
		}
		for _, description := range descriptions {
			if description.ID != instanceID {
				continue
			}
			if description.State == fleet.StateRunning {
				return description, nil
			}
			if description.State.Terminal() {
				return fleet.InstanceDescription{}, services.Wrap(
					services.ErrFatalProvisioning,
					"autoscale",
					"await running",
					fmt.Sprintf("instance %s settled in state %s after start", instanceID, description.State),
					nil,
				)
			}
		}

		select {
		case <-ctx.Done():
			return fleet.InstanceDescription{}, ctx.Err()
		case <-time.After(a.pollDelay):
		}
	}
	return fleet.InstanceDescription{}, services.Wrap(
		services.ErrFatalProvisioning,
		"autoscale",
		"await running",
		fmt.Sprintf("instance %s did not reach running within %d attempts", instanceID, a.maxAttempts),
		nil,
	)
}

func (a *Autoscaler) scaleDown(ctx context.Context) error {
	if err := a.stopIdle(ctx); err != nil {
		return err
	}
	return a.terminateIdle(ctx)
}

// stopIdle shuts down running processors that have sat idle past the stop
// threshold. The fleet call covers the whole batch; if it fails the registry
// updates are skipped and the batch is retried next cycle.
func (a *Autoscaler) stopIdle(ctx context.Context) error {
	running, err := a.store.ProcessorsByStatus(ctx, registry.ProcessorRunning)
	if err != nil {
		return fmt.Errorf("list running processors: %w", err)
	}

	cutoff := time.Now().Add(-a.cfg.IdleStopThreshold())
	var batch []*registry.Processor
	for _, proc := range running {
		if proc.Workload == 0 && proc.LastUsedAt.Before(cutoff) {
			batch = append(batch, proc)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	if err := a.gateway.Stop(ctx, instanceIDs(batch)); err != nil {
		a.logger.Warn("idle stop batch failed; will retry next cycle", logging.Error(err))
		return nil
	}

	for _, proc := range batch {
		proc.Status = registry.ProcessorNotRunning
		proc.Address = ""
		if err := a.store.UpdateProcessor(ctx, proc); err != nil {
			a.logger.Error("failed to persist stopped processor",
				logging.Int64(logging.FieldProcessorID, proc.ID),
				logging.Error(err),
			)
			continue
		}
		a.logger.Info("processor stopped for idleness",
			logging.Int64(logging.FieldProcessorID, proc.ID),
			logging.String(logging.FieldInstanceID, proc.InstanceID),
			logging.String(logging.FieldEventType, "scale_down_stop"),
		)
	}
	return nil
}

// terminateIdle releases stopped processors idle past the longer terminate
// threshold and removes their registry records.
func (a *Autoscaler) terminateIdle(ctx context.Context) error {
	stopped, err := a.store.ProcessorsByStatus(ctx, registry.ProcessorNotRunning)
	if err != nil {
		return fmt.Errorf("list stopped processors: %w", err)
	}

	cutoff := time.Now().Add(-a.cfg.IdleTerminateThreshold())
	var batch []*registry.Processor
	for _, proc := range stopped {
		if proc.LastUsedAt.Before(cutoff) {
			batch = append(batch, proc)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	if err := a.gateway.Terminate(ctx, instanceIDs(batch)); err != nil {
		a.logger.Warn("idle terminate batch failed; will retry next cycle", logging.Error(err))
		return nil
	}

	for _, proc := range batch {
		if _, err := a.store.RemoveProcessor(ctx, proc.ID); err != nil {
			a.logger.Error("failed to remove terminated processor",
				logging.Int64(logging.FieldProcessorID, proc.ID),
				logging.Error(err),
			)
			continue
		}
		a.logger.Info("processor terminated",
			logging.Int64(logging.FieldProcessorID, proc.ID),
			logging.String(logging.FieldInstanceID, proc.InstanceID),
			logging.String(logging.FieldEventType, "scale_down_terminate"),
		)
	}
	return nil
}

func instanceIDs(procs []*registry.Processor) []string {
	ids := make([]string, 0, len(procs))
	for _, proc := range procs {
		ids = append(ids, proc.InstanceID)
	}
	return ids
}
