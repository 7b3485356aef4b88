package testsupport

import (
	"path/filepath"
	"testing"

	"docmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Intervals and thresholds are shrunk so loop and provisioning logic can be
// exercised without real waiting.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pipeline.QueueWaitSeconds = 1
	cfgVal.Pipeline.IdleStopSeconds = 1
	cfgVal.Pipeline.IdleTerminateSeconds = 2
	cfgVal.Workflow.IngestInterval = 1
	cfgVal.Workflow.DispatchInterval = 1
	cfgVal.Workflow.ConvertInterval = 1
	cfgVal.Workflow.ConversionPollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1
	cfgVal.Workflow.ProvisionPollSeconds = 1
	cfgVal.Workflow.ProvisionMaxAttempts = 3
	cfgVal.ClientFolders = []config.ClientFolder{
		{Name: "acme", InputFolder: "clients/acme/in", OutputFolder: "clients/acme/out"},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithClientFolders replaces the watched folder pairs on the test config.
func WithClientFolders(folders ...config.ClientFolder) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ClientFolders = folders
	}
}

// WithProcessorCap overrides the per-processor workload cap.
func WithProcessorCap(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.ProcessorCap = limit
	}
}

// WithQueueThreshold overrides the scale-up queue threshold.
func WithQueueThreshold(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.QueueThreshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
