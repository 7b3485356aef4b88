package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFolders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ProcessorCap <= 0 {
		return errors.New("pipeline.processor_cap must be positive")
	}
	if c.Pipeline.QueueThreshold < 0 {
		return errors.New("pipeline.queue_threshold must not be negative")
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.queue_wait_seconds":     c.Pipeline.QueueWaitSeconds,
		"pipeline.idle_stop_seconds":      c.Pipeline.IdleStopSeconds,
		"pipeline.idle_terminate_seconds": c.Pipeline.IdleTerminateSeconds,
		"pipeline.view_ttl_minutes":       c.Pipeline.ViewTTLMinutes,
	}); err != nil {
		return err
	}
	if c.Pipeline.IdleTerminateSeconds <= c.Pipeline.IdleStopSeconds {
		return errors.New("pipeline.idle_terminate_seconds must be greater than pipeline.idle_stop_seconds")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.ingest_interval":          c.Workflow.IngestInterval,
		"workflow.dispatch_interval":        c.Workflow.DispatchInterval,
		"workflow.convert_interval":         c.Workflow.ConvertInterval,
		"workflow.conversion_poll_interval": c.Workflow.ConversionPollInterval,
		"workflow.error_retry_interval":     c.Workflow.ErrorRetryInterval,
		"workflow.provision_poll_seconds":   c.Workflow.ProvisionPollSeconds,
		"workflow.provision_max_attempts":   c.Workflow.ProvisionMaxAttempts,
		"fleet.worker_timeout_seconds":      c.Fleet.WorkerTimeoutSeconds,
	})
}

func (c *Config) validateFolders() error {
	seen := make(map[string]struct{}, len(c.ClientFolders))
	for i, folder := range c.ClientFolders {
		if folder.InputFolder == "" {
			return fmt.Errorf("client_folders[%d].input_folder must be set", i)
		}
		if folder.OutputFolder == "" {
			return fmt.Errorf("client_folders[%d].output_folder must be set", i)
		}
		if _, dup := seen[folder.InputFolder]; dup {
			return fmt.Errorf("client_folders[%d].input_folder %q is duplicated", i, folder.InputFolder)
		}
		seen[folder.InputFolder] = struct{}{}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// Redacted returns a copy of the config with secrets masked for display.
func (c *Config) Redacted() Config {
	cp := *c
	cp.ContentStore.SecretKey = mask(cp.ContentStore.SecretKey)
	cp.Conversion.APIToken = mask(cp.Conversion.APIToken)
	cp.Fleet.APIToken = mask(cp.Fleet.APIToken)
	return cp
}

func mask(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "********"
}
