package daemon_test

import (
	"context"
	"io"
	"testing"
	"time"

	"docmill/internal/autoscale"
	"docmill/internal/config"
	"docmill/internal/contentstore"
	"docmill/internal/daemon"
	"docmill/internal/dispatch"
	"docmill/internal/fleet"
	"docmill/internal/logging"
	"docmill/internal/pipeline"
	"docmill/internal/registry"
	"docmill/internal/testsupport"
	"docmill/internal/workflow"
)

type nopContent struct{}

func (nopContent) List(context.Context, string, contentstore.ListOptions) ([]contentstore.Item, error) {
	return nil, nil
}
func (nopContent) Fetch(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (nopContent) Upload(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", nil
}
func (nopContent) Delete(context.Context, string) error { return nil }
func (nopContent) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

type nopConverter struct{}

func (nopConverter) Submit(context.Context, string) (string, error) { return "conv-1", nil }
func (nopConverter) Ready(context.Context, string) (bool, error)    { return false, nil }
func (nopConverter) ViewURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

type nopWorker struct{}

func (nopWorker) Process(context.Context, string, string, string) error { return nil }

type nopFleet struct{}

func (nopFleet) Start(context.Context, []string) error     { return nil }
func (nopFleet) Stop(context.Context, []string) error      { return nil }
func (nopFleet) Terminate(context.Context, []string) error { return nil }
func (nopFleet) Describe(context.Context, []string) ([]fleet.InstanceDescription, error) {
	return nil, nil
}
func (nopFleet) Launch(context.Context, fleet.LaunchTemplate, int) ([]string, error) {
	return nil, nil
}

func newTestDaemon(t *testing.T, cfg *config.Config, store *registry.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	orchestrator := pipeline.NewOrchestratorWithDependencies(cfg, store, nopContent{}, nopConverter{}, nopWorker{}, logger)
	dispatcher := dispatch.New(cfg, store, orchestrator, logger)
	autoscaler := autoscale.New(cfg, store, nopFleet{}, logger)
	manager := workflow.NewManager(cfg, orchestrator, dispatcher, autoscaler, logger)

	d, err := daemon.NewWithComponents(cfg, store, orchestrator, manager, logger)
	if err != nil {
		t.Fatalf("NewWithComponents failed: %v", err)
	}
	return d
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon running")
	}
	if len(status.Loops) != 4 {
		t.Fatalf("expected 4 workflow loops, got %d", len(status.Loops))
	}
	if status.LockFilePath == "" || status.RegistryDBPath == "" {
		t.Fatalf("expected populated status paths, got %#v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start on same daemon should fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := newTestDaemon(t, cfg, store)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	second := newTestDaemon(t, cfg, store)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon instance to be rejected")
	}
}

func TestStartRecoversInterruptedDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	doc, err := store.NewDocument(ctx, "file-1", "report.docx", "in", "out")
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	doc.Status = registry.StatusProcessing
	if err := store.UpdateDocument(ctx, doc); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}

	d := newTestDaemon(t, cfg, store)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	recovered, err := store.GetDocumentByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocumentByID failed: %v", err)
	}
	if recovered.Status != registry.StatusQueued {
		t.Fatalf("expected interrupted document re-queued, got %s", recovered.Status)
	}
}

func TestAdminPassthroughs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	ctx := context.Background()
	if _, err := store.NewDocument(ctx, "file-1", "report.docx", "in", "out"); err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	if _, err := store.NewProcessor(ctx, "i-1"); err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}

	docs, err := d.ListDocuments(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments: docs=%d err=%v", len(docs), err)
	}
	procs, err := d.ListProcessors(ctx)
	if err != nil || len(procs) != 1 {
		t.Fatalf("ListProcessors: procs=%d err=%v", len(procs), err)
	}
	docStats, err := d.DocumentCounts(ctx)
	if err != nil || docStats[registry.StatusQueued] != 1 {
		t.Fatalf("DocumentCounts: stats=%#v err=%v", docStats, err)
	}
	procStats, err := d.ProcessorCounts(ctx)
	if err != nil || procStats[registry.ProcessorPending] != 1 {
		t.Fatalf("ProcessorCounts: stats=%#v err=%v", procStats, err)
	}
}
