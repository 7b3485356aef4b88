package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"docmill/internal/services"
)

// HTTPDoer describes the HTTP client used for worker exchanges.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits document files to remote processors. The exchange carries no
// protocol-level acknowledgement beyond success or failure; all status
// bookkeeping stays with the caller.
type Client struct {
	port    int
	path    string
	timeout time.Duration
	client  HTTPDoer
}

// NewClient constructs a worker protocol client. A non-positive timeout
// disables the per-exchange deadline.
func NewClient(port int, path string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if path == "" {
		path = "/process"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Client{port: port, path: path, timeout: timeout, client: client}
}

// Process submits the file at inputPath to the processor at address and
// writes the processed response body to outputPath.
func (c *Client) Process(ctx context.Context, address, inputPath, outputPath string) error {
	if strings.TrimSpace(address) == "" {
		return services.Wrap(services.ErrValidation, "worker", "process", "processor address is empty", nil)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return fmt.Errorf("stat input file: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d%s", address, c.port, c.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, input)
	if err != nil {
		return fmt.Errorf("build worker request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransientGateway, "worker", "process", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransientGateway, "worker", "process", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(output, resp.Body); err != nil {
		output.Close()
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrTransientGateway, "worker", "read response", url, err)
	}
	if err := output.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
