package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Pipeline contains document pipeline and scaling thresholds.
type Pipeline struct {
	ProcessorCap         int `toml:"processor_cap"`
	QueueThreshold       int `toml:"queue_threshold"`
	QueueWaitSeconds     int `toml:"queue_wait_seconds"`
	IdleStopSeconds      int `toml:"idle_stop_seconds"`
	IdleTerminateSeconds int `toml:"idle_terminate_seconds"`
	ViewTTLMinutes       int `toml:"view_ttl_minutes"`
}

// Workflow contains daemon loop timing configuration. All values are seconds.
type Workflow struct {
	IngestInterval         int `toml:"ingest_interval"`
	DispatchInterval       int `toml:"dispatch_interval"`
	ConvertInterval        int `toml:"convert_interval"`
	ConversionPollInterval int `toml:"conversion_poll_interval"`
	ErrorRetryInterval     int `toml:"error_retry_interval"`
	ProvisionPollSeconds   int `toml:"provision_poll_seconds"`
	ProvisionMaxAttempts   int `toml:"provision_max_attempts"`
}

// ContentStore contains connection settings for the S3-compatible document store.
type ContentStore struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Conversion contains connection settings for the external conversion service.
type Conversion struct {
	BaseURL  string `toml:"base_url"`
	APIToken string `toml:"api_token"`
}

// Fleet contains compute provider settings and the worker launch template.
type Fleet struct {
	BaseURL       string `toml:"base_url"`
	APIToken      string `toml:"api_token"`
	ImageID       string `toml:"image_id"`
	InstanceType  string `toml:"instance_type"`
	SecurityGroup string `toml:"security_group"`
	WorkerPort    int    `toml:"worker_port"`
	WorkerPath    string `toml:"worker_path"`
	// WorkerTimeoutSeconds bounds one full file exchange with a processor.
	WorkerTimeoutSeconds int `toml:"worker_timeout_seconds"`
}

// ClientFolder maps a client's input folder to its processed-output folder in
// the content store.
type ClientFolder struct {
	Name         string `toml:"name"`
	InputFolder  string `toml:"input_folder"`
	OutputFolder string `toml:"output_folder"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for docmill.
//
// Configuration sections by subsystem:
//   - Paths: scratch and log directories
//   - Pipeline: processor workload cap, scale-up/idle thresholds, view TTL
//   - Workflow: daemon loop intervals and provisioning poll settings
//   - ContentStore: S3-compatible document store connection
//   - Conversion: external conversion service connection
//   - Fleet: compute provider connection and launch template
//   - ClientFolders: input/output folder pairs watched by ingestion
//   - Logging: log format and level
type Config struct {
	Paths         Paths          `toml:"paths"`
	Pipeline      Pipeline       `toml:"pipeline"`
	Workflow      Workflow       `toml:"workflow"`
	ContentStore  ContentStore   `toml:"content_store"`
	Conversion    Conversion     `toml:"conversion"`
	Fleet         Fleet          `toml:"fleet"`
	ClientFolders []ClientFolder `toml:"client_folders"`
	Logging       Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/docmill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docmill.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FolderForInput returns the client folder whose input location matches id.
func (c *Config) FolderForInput(id string) (ClientFolder, bool) {
	for _, folder := range c.ClientFolders {
		if folder.InputFolder == id {
			return folder, true
		}
	}
	return ClientFolder{}, false
}

// QueueWaitThreshold returns the age beyond which a queued document counts as overdue.
func (c *Config) QueueWaitThreshold() time.Duration {
	return time.Duration(c.Pipeline.QueueWaitSeconds) * time.Second
}

// IdleStopThreshold returns the idle period after which a running processor is stopped.
func (c *Config) IdleStopThreshold() time.Duration {
	return time.Duration(c.Pipeline.IdleStopSeconds) * time.Second
}

// IdleTerminateThreshold returns the idle period after which a stopped processor is terminated.
func (c *Config) IdleTerminateThreshold() time.Duration {
	return time.Duration(c.Pipeline.IdleTerminateSeconds) * time.Second
}

// ViewTTL returns the lifetime of signed view-session URLs.
func (c *Config) ViewTTL() time.Duration {
	return time.Duration(c.Pipeline.ViewTTLMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
