package pipeline_test

import (
	"context"
	"testing"

	"docmill/internal/registry"
	"docmill/internal/services"
	"docmill/internal/testsupport"
)

func seedProcessedDocument(t *testing.T, store *registry.Store, content *fakeContentStore, name string) *registry.Document {
	t.Helper()
	ctx := context.Background()
	doc := seedQueuedDocument(t, store, content, "in", "out", name)
	doc.Status = registry.StatusProcessed
	doc.ProcessedFileID = content.put("out", name, []byte("processed "+name))
	if err := store.UpdateDocument(ctx, doc); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}
	return doc
}

func TestConvertCycleSubmitsProcessedDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	doc := seedProcessedDocument(t, store, content, "report.docx")

	ctx := context.Background()
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle failed: %v", err)
	}

	fetched, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetched.Status != registry.StatusConverting {
		t.Fatalf("expected converting status, got %s", fetched.Status)
	}
	if fetched.ConvertedDocumentID == "" {
		t.Fatal("expected conversion id recorded")
	}
}

func TestConvertCycleRollsBackFailedSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	converter.submitErr = services.Wrap(services.ErrTransientGateway, "conversion", "submit", "unavailable", nil)
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	doc := seedProcessedDocument(t, store, content, "report.docx")

	ctx := context.Background()
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle should not fail the whole pass: %v", err)
	}

	fetched, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetched.Status != registry.StatusProcessed {
		t.Fatalf("expected rollback to processed, got %s", fetched.Status)
	}
	if fetched.ErrorMessage == "" {
		t.Fatal("expected failure reason recorded")
	}
	if fetched.ConvertedDocumentID != "" {
		t.Fatalf("no conversion id should be recorded, got %q", fetched.ConvertedDocumentID)
	}
}

func TestConvertCycleFailureDoesNotAbortSiblings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	broken := seedProcessedDocument(t, store, content, "broken.docx")
	healthy := seedProcessedDocument(t, store, content, "healthy.docx")

	// Remove the processed upload so the signed URL for the first doc fails.
	if err := content.Delete(context.Background(), broken.ProcessedFileID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	ctx := context.Background()
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle failed: %v", err)
	}

	fetchedBroken, err := store.GetDocumentByID(ctx, broken.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetchedBroken.Status != registry.StatusProcessed {
		t.Fatalf("expected broken doc rolled back to processed, got %s", fetchedBroken.Status)
	}

	fetchedHealthy, err := store.GetDocumentByID(ctx, healthy.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetchedHealthy.Status != registry.StatusConverting {
		t.Fatalf("expected healthy doc converting, got %s", fetchedHealthy.Status)
	}
}

func TestCheckConversionsFinalizesReadyOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	ready := seedProcessedDocument(t, store, content, "ready.docx")
	pending := seedProcessedDocument(t, store, content, "pending.docx")

	ctx := context.Background()
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle failed: %v", err)
	}

	readyDoc, err := store.GetDocumentByID(ctx, ready.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	converter.markReady(readyDoc.ConvertedDocumentID)

	if err := orchestrator.CheckConversions(ctx); err != nil {
		t.Fatalf("CheckConversions failed: %v", err)
	}

	fetchedReady, err := store.GetDocumentByID(ctx, ready.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetchedReady.Status != registry.StatusConverted {
		t.Fatalf("expected converted status, got %s", fetchedReady.Status)
	}

	fetchedPending, err := store.GetDocumentByID(ctx, pending.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetchedPending.Status != registry.StatusConverting {
		t.Fatalf("expected pending doc still converting, got %s", fetchedPending.Status)
	}
}

func TestCheckConversionsRequeuesInterruptedSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	// A crash between the converting transition and the submit leaves a
	// CONVERTING document with no conversion id.
	doc := seedProcessedDocument(t, store, content, "report.docx")
	doc.Status = registry.StatusConverting
	if err := store.UpdateDocument(context.Background(), doc); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}

	ctx := context.Background()
	if err := orchestrator.CheckConversions(ctx); err != nil {
		t.Fatalf("CheckConversions failed: %v", err)
	}

	fetched, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetched.Status != registry.StatusProcessed {
		t.Fatalf("expected rollback to processed, got %s", fetched.Status)
	}
	if fetched.ErrorMessage == "" {
		t.Fatal("expected rollback reason recorded")
	}

	// The next convert cycle picks the document up again.
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle failed: %v", err)
	}
	resubmitted, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if resubmitted.Status != registry.StatusConverting || resubmitted.ConvertedDocumentID == "" {
		t.Fatalf("expected resubmission with a conversion id, got status=%s id=%q",
			resubmitted.Status, resubmitted.ConvertedDocumentID)
	}
}

func TestCheckConversionsToleratesStatusCheckFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	converter := newFakeConverter()
	orchestrator := newTestOrchestrator(t, cfg, store, content, converter, &fakeWorker{})

	doc := seedProcessedDocument(t, store, content, "report.docx")

	ctx := context.Background()
	if err := orchestrator.ConvertCycle(ctx); err != nil {
		t.Fatalf("ConvertCycle failed: %v", err)
	}

	converter.readyErr = services.Wrap(services.ErrTransientGateway, "conversion", "status", "down", nil)
	if err := orchestrator.CheckConversions(ctx); err != nil {
		t.Fatalf("CheckConversions should tolerate check failures: %v", err)
	}

	fetched, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if fetched.Status != registry.StatusConverting {
		t.Fatalf("expected doc left converting, got %s", fetched.Status)
	}
}
