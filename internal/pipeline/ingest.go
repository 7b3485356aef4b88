package pipeline

import (
	"context"
	"errors"
	"fmt"

	"docmill/internal/contentstore"
	"docmill/internal/logging"
	"docmill/internal/registry"
)

// Ingest scans every configured client input folder and registers files not
// yet present in the document registry. Re-running the scan with the same
// listing never creates a duplicate document.
func (o *Orchestrator) Ingest(ctx context.Context) error {
	var errs []error
	for _, folder := range o.cfg.ClientFolders {
		items, err := o.content.List(ctx, folder.InputFolder, contentstore.ListOptions{})
		if err != nil {
			o.logger.Warn("input folder listing failed",
				logging.String("input_folder", folder.InputFolder),
				logging.Error(err),
			)
			errs = append(errs, fmt.Errorf("list %s: %w", folder.InputFolder, err))
			continue
		}
		for _, item := range items {
			existing, err := o.store.FindDocumentByOriginalFileID(ctx, item.ID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if existing != nil {
				continue
			}
			doc, err := o.store.NewDocument(ctx, item.ID, item.Name, folder.InputFolder, folder.OutputFolder)
			if err != nil {
				errs = append(errs, fmt.Errorf("register %s: %w", item.Name, err))
				continue
			}
			o.logger.Info("document queued",
				logging.Int64(logging.FieldDocumentID, doc.ID),
				logging.String("file_name", doc.FileName),
				logging.String("input_folder", folder.InputFolder),
			)
		}
	}
	return errors.Join(errs...)
}

// QueuedDocuments returns documents awaiting dispatch in arrival order.
func (o *Orchestrator) QueuedDocuments(ctx context.Context) ([]*registry.Document, error) {
	return o.store.DocumentsByStatus(ctx, registry.StatusQueued)
}
