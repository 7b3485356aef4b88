package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"docmill/internal/logging"
	"docmill/internal/registry"
	"docmill/internal/services"
)

// processAttempt carries the working state of one dispatch-and-process run so
// every exit path can undo exactly what was speculatively advanced.
type processAttempt struct {
	doc          *registry.Document
	proc         *registry.Processor
	workloadHeld bool
	scratchIn    string
	scratchOut   string
}

// ProcessDocument runs a queued document through one processing attempt
// against the assigned processor: fetch the original, submit it to the
// worker, upload the processed result, then clean up the input. Any failure
// before the result is committed rolls the document back to QUEUED and
// releases the processor slot, so the next dispatch cycle can retry.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *registry.Document, proc *registry.Processor) error {
	ctx = services.WithDocumentID(ctx, doc.ID)
	ctx = services.WithProcessorID(ctx, proc.ID)
	logger := logging.WithContext(ctx, o.logger)

	attempt := &processAttempt{doc: doc, proc: proc}
	defer o.cleanupScratch(attempt, logger)

	logger.Info("processing started",
		logging.String(logging.FieldEventType, "process_start"),
		logging.String("file_name", doc.FileName),
		logging.String("processor_address", proc.Address),
	)

	doc.Status = registry.StatusProcessing
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := o.store.AdjustProcessorWorkload(ctx, proc.ID, +1); err != nil {
		return o.rollback(ctx, logger, attempt, fmt.Errorf("persist workload increment: %w", err))
	}
	attempt.workloadHeld = true

	if err := o.fetchOriginal(ctx, attempt); err != nil {
		return o.rollback(ctx, logger, attempt, err)
	}

	attempt.scratchOut = o.scratchPath()
	if err := o.workers.Process(ctx, proc.Address, attempt.scratchIn, attempt.scratchOut); err != nil {
		return o.rollback(ctx, logger, attempt, err)
	}

	processedID, err := o.uploadProcessed(ctx, attempt)
	if err != nil {
		return o.rollback(ctx, logger, attempt, err)
	}

	doc.ProcessedFileID = processedID
	doc.Status = registry.StatusProcessed
	doc.ErrorMessage = ""
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		// The processed artifact is already uploaded; it is left in the
		// output folder for manual review rather than deleted blind.
		logger.Warn("orphaned processed upload",
			logging.String("processed_file_id", processedID),
			logging.String(logging.FieldEventType, "orphaned_upload"),
		)
		// The commit never landed, so the attempt is still in flight. Restore
		// the in-flight status so the rollback maps it back to QUEUED.
		doc.ProcessedFileID = ""
		doc.Status = registry.StatusProcessing
		return o.rollback(ctx, logger, attempt, fmt.Errorf("persist processed result: %w", err))
	}

	attempt.workloadHeld = false
	if err := o.store.AdjustProcessorWorkload(ctx, proc.ID, -1); err != nil {
		// The document is committed; workload drift here is tolerated and
		// self-corrects as later attempts complete.
		logger.Warn("workload decrement not persisted", logging.Error(err))
	}

	if err := o.content.Delete(ctx, doc.OriginalFileID); err != nil {
		logger.Warn("original file cleanup failed",
			logging.String("original_file_id", doc.OriginalFileID),
			logging.Error(err),
		)
	}

	logger.Info("processing completed",
		logging.String(logging.FieldEventType, "process_complete"),
		logging.String("processed_file_id", doc.ProcessedFileID),
	)
	return nil
}

// fetchOriginal copies the original file into a scratch file with a fresh
// unique name. Document file names are never used for scratch files; two
// concurrent documents may share a human-readable name.
func (o *Orchestrator) fetchOriginal(ctx context.Context, attempt *processAttempt) error {
	body, err := o.content.Fetch(ctx, attempt.doc.OriginalFileID)
	if err != nil {
		return err
	}
	defer body.Close()

	attempt.scratchIn = o.scratchPath()
	file, err := os.Create(attempt.scratchIn)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return services.Wrap(services.ErrTransientGateway, "pipeline", "fetch original", attempt.doc.OriginalFileID, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close scratch file: %w", err)
	}
	return nil
}

func (o *Orchestrator) uploadProcessed(ctx context.Context, attempt *processAttempt) (string, error) {
	file, err := os.Open(attempt.scratchOut)
	if err != nil {
		return "", fmt.Errorf("open processed scratch file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat processed scratch file: %w", err)
	}

	return o.content.Upload(ctx, attempt.doc.OutputFolder, attempt.doc.FileName, file, info.Size())
}

// rollback restores the registry state a failed attempt speculatively
// advanced: the document returns to the status the transition table names
// for its current one, and a held workload slot is released. The increment
// and decrement stay symmetric on every exit path.
func (o *Orchestrator) rollback(ctx context.Context, logger *slog.Logger, attempt *processAttempt, cause error) error {
	doc := attempt.doc
	if prev, ok := registry.RollbackStatus(doc.Status); ok {
		doc.Status = prev
	}
	doc.ErrorMessage = services.Details(cause)
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		logger.Error("failed to persist document rollback", logging.Args(logging.Error(err))...)
	}

	if attempt.workloadHeld {
		attempt.workloadHeld = false
		if err := o.store.AdjustProcessorWorkload(ctx, attempt.proc.ID, -1); err != nil {
			logger.Error("failed to persist workload rollback", logging.Args(logging.Error(err))...)
		}
	}

	if errors.Is(cause, services.ErrConflict) {
		logger.Warn("processing attempt abandoned on conflict", logging.Args(logging.Error(cause))...)
	} else {
		logger.Error("processing attempt failed", logging.Args(
			logging.Error(cause),
			logging.String(logging.FieldEventType, "process_failure"),
			logging.String("resolved_status", string(doc.Status)),
		)...)
	}
	return cause
}

func (o *Orchestrator) scratchPath() string {
	return filepath.Join(o.cfg.Paths.ScratchDir, uuid.NewString())
}

func (o *Orchestrator) cleanupScratch(attempt *processAttempt, logger *slog.Logger) {
	for _, path := range []string{attempt.scratchIn, attempt.scratchOut} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("scratch file cleanup failed", logging.Args(
				logging.String("path", path),
				logging.Error(err),
			)...)
		}
	}
}
