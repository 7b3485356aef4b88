package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docmill/internal/config"
	"docmill/internal/services"
)

// HTTPDoer describes the HTTP client used by the fleet gateway.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpGateway struct {
	baseURL  string
	apiToken string
	client   HTTPDoer
}

// NewConfiguredGateway returns a fleet gateway bound to the configured
// compute provider endpoint.
func NewConfiguredGateway(cfg config.Fleet) Gateway {
	return NewHTTPGateway(cfg.BaseURL, cfg.APIToken, http.DefaultClient)
}

// NewHTTPGateway constructs an HTTP-backed fleet gateway.
func NewHTTPGateway(baseURL, apiToken string, client HTTPDoer) Gateway {
	return &httpGateway{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiToken: strings.TrimSpace(apiToken),
		client:   client,
	}
}

type instanceBatchRequest struct {
	InstanceIDs []string `json:"instance_ids"`
}

type describeResponse struct {
	Instances []struct {
		ID      string `json:"id"`
		State   string `json:"state"`
		Address string `json:"address"`
	} `json:"instances"`
}

type launchRequest struct {
	ImageID       string `json:"image_id"`
	InstanceType  string `json:"instance_type"`
	SecurityGroup string `json:"security_group"`
	Count         int    `json:"count"`
}

type launchResponse struct {
	InstanceIDs []string `json:"instance_ids"`
}

func (g *httpGateway) Start(ctx context.Context, instanceIDs []string) error {
	return g.roundTrip(ctx, http.MethodPost, "/instances/start", instanceBatchRequest{InstanceIDs: instanceIDs}, nil)
}

func (g *httpGateway) Stop(ctx context.Context, instanceIDs []string) error {
	return g.roundTrip(ctx, http.MethodPost, "/instances/stop", instanceBatchRequest{InstanceIDs: instanceIDs}, nil)
}

func (g *httpGateway) Terminate(ctx context.Context, instanceIDs []string) error {
	return g.roundTrip(ctx, http.MethodPost, "/instances/terminate", instanceBatchRequest{InstanceIDs: instanceIDs}, nil)
}

func (g *httpGateway) Describe(ctx context.Context, instanceIDs []string) ([]InstanceDescription, error) {
	var out describeResponse
	if err := g.roundTrip(ctx, http.MethodPost, "/instances/describe", instanceBatchRequest{InstanceIDs: instanceIDs}, &out); err != nil {
		return nil, err
	}
	descriptions := make([]InstanceDescription, 0, len(out.Instances))
	for _, inst := range out.Instances {
		descriptions = append(descriptions, InstanceDescription{
			ID:      inst.ID,
			State:   InstanceState(strings.ToLower(strings.TrimSpace(inst.State))),
			Address: strings.TrimSpace(inst.Address),
		})
	}
	return descriptions, nil
}

func (g *httpGateway) Launch(ctx context.Context, template LaunchTemplate, count int) ([]string, error) {
	payload := launchRequest{
		ImageID:       template.ImageID,
		InstanceType:  template.InstanceType,
		SecurityGroup: template.SecurityGroup,
		Count:         count,
	}
	var out launchResponse
	if err := g.roundTrip(ctx, http.MethodPost, "/instances/launch", payload, &out); err != nil {
		return nil, err
	}
	if len(out.InstanceIDs) == 0 {
		return nil, services.Wrap(services.ErrTransientGateway, "fleet", "launch", "provider returned no instance ids", nil)
	}
	return out.InstanceIDs, nil
}

func (g *httpGateway) roundTrip(ctx context.Context, method, path string, payload, out any) error {
	if g == nil || g.client == nil || g.baseURL == "" {
		return services.Wrap(services.ErrTransientGateway, "fleet", "request", "gateway not configured", nil)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode fleet request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build fleet request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransientGateway, "fleet", "request", method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransientGateway, "fleet", "request", fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return services.Wrap(services.ErrTransientGateway, "fleet", "decode response", method+" "+path, err)
		}
	}
	return nil
}
