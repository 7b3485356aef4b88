package pipeline_test

import (
	"context"
	"testing"

	"docmill/internal/config"
	"docmill/internal/logging"
	"docmill/internal/pipeline"
	"docmill/internal/registry"
	"docmill/internal/services"
	"docmill/internal/testsupport"
)

func newTestOrchestrator(
	t *testing.T,
	cfg *config.Config,
	store *registry.Store,
	content *fakeContentStore,
	converter *fakeConverter,
	workers *fakeWorker,
) *pipeline.Orchestrator {
	t.Helper()
	return pipeline.NewOrchestratorWithDependencies(cfg, store, content, converter, workers, logging.NewNop())
}

func TestIngestRegistersNewFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	orchestrator := newTestOrchestrator(t, cfg, store, content, newFakeConverter(), &fakeWorker{})

	inputFolder := cfg.ClientFolders[0].InputFolder
	content.put(inputFolder, "report.docx", []byte("alpha"))
	content.put(inputFolder, "invoice.docx", []byte("beta"))

	ctx := context.Background()
	if err := orchestrator.Ingest(ctx); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	queued, err := orchestrator.QueuedDocuments(ctx)
	if err != nil {
		t.Fatalf("QueuedDocuments failed: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued documents, got %d", len(queued))
	}
	for _, doc := range queued {
		if doc.InputFolder != inputFolder {
			t.Fatalf("unexpected input folder %q", doc.InputFolder)
		}
		if doc.OutputFolder != cfg.ClientFolders[0].OutputFolder {
			t.Fatalf("unexpected output folder %q", doc.OutputFolder)
		}
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	orchestrator := newTestOrchestrator(t, cfg, store, content, newFakeConverter(), &fakeWorker{})

	content.put(cfg.ClientFolders[0].InputFolder, "report.docx", []byte("alpha"))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := orchestrator.Ingest(ctx); err != nil {
			t.Fatalf("Ingest pass %d failed: %v", i, err)
		}
	}

	queued, err := orchestrator.QueuedDocuments(ctx)
	if err != nil {
		t.Fatalf("QueuedDocuments failed: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected a single document after repeated scans, got %d", len(queued))
	}
}

func TestIngestSurvivesFolderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithClientFolders(
		config.ClientFolder{Name: "a", InputFolder: "in-a", OutputFolder: "out-a"},
		config.ClientFolder{Name: "b", InputFolder: "in-b", OutputFolder: "out-b"},
	))
	store := testsupport.MustOpenStore(t, cfg)
	content := newFakeContentStore()
	orchestrator := newTestOrchestrator(t, cfg, store, content, newFakeConverter(), &fakeWorker{})

	content.put("in-b", "b.docx", []byte("beta"))
	content.listErrs["in-a"] = services.Wrap(services.ErrTransientGateway, "contentstore", "list", "in-a", nil)

	// The first folder fails to list; the second must still be scanned and
	// the error reported.
	ctx := context.Background()
	if err := orchestrator.Ingest(ctx); err == nil {
		t.Fatal("expected aggregated listing error")
	}

	queued, err := orchestrator.QueuedDocuments(ctx)
	if err != nil {
		t.Fatalf("QueuedDocuments failed: %v", err)
	}
	if len(queued) != 1 || queued[0].FileName != "b.docx" {
		t.Fatalf("expected only b.docx queued, got %#v", queued)
	}
}
