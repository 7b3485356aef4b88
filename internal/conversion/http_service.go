package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docmill/internal/config"
	"docmill/internal/services"
)

// HTTPDoer describes the HTTP client used by the conversion service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpService struct {
	baseURL string
	tokens  TokenSource
	client  HTTPDoer
}

// NewConfiguredService returns a conversion service bound to the configured
// provider endpoint.
func NewConfiguredService(cfg config.Conversion) Service {
	return NewHTTPService(cfg.BaseURL, StaticToken(cfg.APIToken), http.DefaultClient)
}

// NewHTTPService constructs an HTTP-backed conversion service.
func NewHTTPService(baseURL string, tokens TokenSource, client HTTPDoer) Service {
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:  tokens,
		client:  client,
	}
}

type submitRequest struct {
	SourceURL string `json:"source_url"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type sessionRequest struct {
	TTLMinutes int `json:"ttl_minutes"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

func (s *httpService) Submit(ctx context.Context, sourceURL string) (string, error) {
	var out submitResponse
	err := s.roundTrip(ctx, http.MethodPost, "/conversions", submitRequest{SourceURL: sourceURL}, &out)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", services.Wrap(services.ErrTransientGateway, "conversion", "submit", "provider returned empty conversion id", nil)
	}
	return out.ID, nil
}

func (s *httpService) Ready(ctx context.Context, conversionID string) (bool, error) {
	var out statusResponse
	err := s.roundTrip(ctx, http.MethodGet, "/conversions/"+url.PathEscape(conversionID), nil, &out)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(out.Status, "ready"), nil
}

func (s *httpService) ViewURL(ctx context.Context, conversionID string, ttl time.Duration) (string, error) {
	minutes := int(ttl / time.Minute)
	if minutes <= 0 {
		minutes = 1
	}
	var out sessionResponse
	err := s.roundTrip(ctx, http.MethodPost, "/conversions/"+url.PathEscape(conversionID)+"/sessions", sessionRequest{TTLMinutes: minutes}, &out)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", services.Wrap(services.ErrTransientGateway, "conversion", "view session", "provider returned empty session url", nil)
	}
	return out.URL, nil
}

func (s *httpService) roundTrip(ctx context.Context, method, path string, payload, out any) error {
	if s == nil || s.client == nil || s.baseURL == "" {
		return services.Wrap(services.ErrTransientGateway, "conversion", "request", "service not configured", nil)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode conversion request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build conversion request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return services.Wrap(services.ErrTransientGateway, "conversion", "token refresh", "", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransientGateway, "conversion", "request", method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return services.Wrap(services.ErrTransientGateway, "conversion", "request", fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrValidation, "conversion", "request", fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return services.Wrap(services.ErrTransientGateway, "conversion", "decode response", method+" "+path, err)
		}
	}
	return nil
}
