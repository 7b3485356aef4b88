package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"docmill/internal/logging"
	"docmill/internal/registry"
	"docmill/internal/services"
)

// ConvertCycle submits every PROCESSED document to the conversion service.
// A failed submission rolls the document back to PROCESSED; other documents
// in the same cycle are unaffected.
func (o *Orchestrator) ConvertCycle(ctx context.Context) error {
	docs, err := o.store.DocumentsByStatus(ctx, registry.StatusProcessed)
	if err != nil {
		return fmt.Errorf("list processed documents: %w", err)
	}
	for _, doc := range docs {
		if err := o.convertDocument(ctx, doc); err != nil {
			logger := logging.WithContext(services.WithDocumentID(ctx, doc.ID), o.logger)
			logger.Error("conversion submission failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "convert_failure"),
			)
		}
	}
	return nil
}

func (o *Orchestrator) convertDocument(ctx context.Context, doc *registry.Document) error {
	ctx = services.WithDocumentID(ctx, doc.ID)
	logger := logging.WithContext(ctx, o.logger)

	doc.Status = registry.StatusConverting
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("persist converting transition: %w", err)
	}

	sourceURL, err := o.content.SignedURL(ctx, doc.ProcessedFileID, o.cfg.ViewTTL())
	if err != nil {
		return o.rollbackConversion(ctx, logger, doc, err)
	}

	conversionID, err := o.converter.Submit(ctx, sourceURL)
	if err != nil {
		return o.rollbackConversion(ctx, logger, doc, err)
	}

	doc.ConvertedDocumentID = conversionID
	doc.ErrorMessage = ""
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return o.rollbackConversion(ctx, logger, doc, fmt.Errorf("persist conversion id: %w", err))
	}

	logger.Info("conversion submitted",
		logging.String("conversion_id", conversionID),
		logging.String(logging.FieldEventType, "convert_submitted"),
	)
	return nil
}

// CheckConversions polls pending conversions and finalizes the ones the
// provider reports complete. A not-yet-ready conversion is left untouched
// for the next cycle.
func (o *Orchestrator) CheckConversions(ctx context.Context) error {
	docs, err := o.store.DocumentsByStatus(ctx, registry.StatusConverting)
	if err != nil {
		return fmt.Errorf("list converting documents: %w", err)
	}
	for _, doc := range docs {
		docCtx := services.WithDocumentID(ctx, doc.ID)
		logger := logging.WithContext(docCtx, o.logger)

		if doc.ConvertedDocumentID == "" {
			// An interrupted submission persisted CONVERTING without a
			// conversion id. Return the document so the next convert cycle
			// resubmits it.
			logger.Warn("converting document has no conversion id",
				logging.String(logging.FieldEventType, "convert_resubmit"),
			)
			o.rollbackConversion(docCtx, logger, doc, errors.New("no conversion id recorded"))
			continue
		}

		ready, err := o.converter.Ready(docCtx, doc.ConvertedDocumentID)
		if err != nil {
			logger.Warn("conversion status check failed", logging.Error(err))
			continue
		}
		if !ready {
			continue
		}

		doc.Status = registry.StatusConverted
		doc.ErrorMessage = ""
		if err := o.store.UpdateDocument(docCtx, doc); err != nil {
			logger.Error("failed to persist converted status", logging.Error(err))
			continue
		}
		logger.Info("conversion completed",
			logging.String("conversion_id", doc.ConvertedDocumentID),
			logging.String(logging.FieldEventType, "convert_complete"),
		)
	}
	return nil
}

func (o *Orchestrator) rollbackConversion(ctx context.Context, logger *slog.Logger, doc *registry.Document, cause error) error {
	if prev, ok := registry.RollbackStatus(doc.Status); ok {
		doc.Status = prev
	}
	doc.ErrorMessage = services.Details(cause)
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		logger.Error("failed to persist conversion rollback", logging.Error(err))
	}
	return cause
}
