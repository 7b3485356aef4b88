package pipeline

import (
	"context"
	"fmt"

	"docmill/internal/registry"
	"docmill/internal/services"
)

// ResolveViewURL returns a short-lived signed view-session URL for a
// converted document, located by its processed-file identifier.
func (o *Orchestrator) ResolveViewURL(ctx context.Context, processedFileID string) (string, error) {
	doc, err := o.store.FindDocumentByProcessedFileID(ctx, processedFileID)
	if err != nil {
		return "", fmt.Errorf("locate document: %w", err)
	}
	if doc == nil {
		return "", services.Wrap(services.ErrNotFound, "pipeline", "view url", fmt.Sprintf("no document for processed file %q", processedFileID), nil)
	}
	if doc.Status != registry.StatusConverted {
		return "", services.Wrap(services.ErrValidation, "pipeline", "view url", fmt.Sprintf("document %d is not convertible in status %s", doc.ID, doc.Status), nil)
	}
	return o.converter.ViewURL(ctx, doc.ConvertedDocumentID, o.cfg.ViewTTL())
}
