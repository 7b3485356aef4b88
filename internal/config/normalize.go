package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEndpoints() {
	c.ContentStore.Endpoint = strings.TrimSpace(c.ContentStore.Endpoint)
	c.ContentStore.Bucket = strings.TrimSpace(c.ContentStore.Bucket)
	c.Conversion.BaseURL = strings.TrimRight(strings.TrimSpace(c.Conversion.BaseURL), "/")
	c.Fleet.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fleet.BaseURL), "/")
	c.Fleet.WorkerPath = strings.TrimSpace(c.Fleet.WorkerPath)
	if c.Fleet.WorkerPath != "" && !strings.HasPrefix(c.Fleet.WorkerPath, "/") {
		c.Fleet.WorkerPath = "/" + c.Fleet.WorkerPath
	}
	for i := range c.ClientFolders {
		c.ClientFolders[i].Name = strings.TrimSpace(c.ClientFolders[i].Name)
		c.ClientFolders[i].InputFolder = strings.TrimSpace(c.ClientFolders[i].InputFolder)
		c.ClientFolders[i].OutputFolder = strings.TrimSpace(c.ClientFolders[i].OutputFolder)
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
