package fleet_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docmill/internal/fleet"
	"docmill/internal/services"
)

func TestStartPostsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/instances/start" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fleet-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var payload struct {
			InstanceIDs []string `json:"instance_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if len(payload.InstanceIDs) != 2 {
			t.Errorf("expected 2 instance ids, got %v", payload.InstanceIDs)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	gateway := fleet.NewHTTPGateway(server.URL, "fleet-token", server.Client())
	if err := gateway.Start(context.Background(), []string{"i-1", "i-2"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func TestDescribeNormalizesStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/describe" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"instances": []map[string]string{
				{"id": "i-1", "state": " RUNNING ", "address": " 10.0.0.3 "},
				{"id": "i-2", "state": "stopped", "address": ""},
			},
		})
	}))
	defer server.Close()

	gateway := fleet.NewHTTPGateway(server.URL, "", server.Client())
	descriptions, err := gateway.Describe(context.Background(), []string{"i-1", "i-2"})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if len(descriptions) != 2 {
		t.Fatalf("expected 2 descriptions, got %d", len(descriptions))
	}
	if descriptions[0].State != fleet.StateRunning || descriptions[0].Address != "10.0.0.3" {
		t.Fatalf("unexpected first description: %#v", descriptions[0])
	}
	if descriptions[1].State != fleet.StateStopped {
		t.Fatalf("unexpected second description: %#v", descriptions[1])
	}
}

func TestLaunchReturnsInstanceIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/launch" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var payload struct {
			ImageID string `json:"image_id"`
			Count   int    `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.ImageID != "img-1" || payload.Count != 1 {
			t.Errorf("unexpected payload: %+v", payload)
		}
		json.NewEncoder(w).Encode(map[string][]string{"instance_ids": {"i-new"}})
	}))
	defer server.Close()

	gateway := fleet.NewHTTPGateway(server.URL, "", server.Client())
	ids, err := gateway.Launch(context.Background(), fleet.LaunchTemplate{ImageID: "img-1"}, 1)
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "i-new" {
		t.Fatalf("unexpected instance ids: %v", ids)
	}
}

func TestLaunchEmptyResponseIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"instance_ids": {}})
	}))
	defer server.Close()

	gateway := fleet.NewHTTPGateway(server.URL, "", server.Client())
	if _, err := gateway.Launch(context.Background(), fleet.LaunchTemplate{}, 1); !errors.Is(err, services.ErrTransientGateway) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestErrorStatusIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer server.Close()

	gateway := fleet.NewHTTPGateway(server.URL, "", server.Client())
	if err := gateway.Stop(context.Background(), []string{"i-1"}); !errors.Is(err, services.ErrTransientGateway) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestTerminalStates(t *testing.T) {
	cases := []struct {
		state    fleet.InstanceState
		terminal bool
	}{
		{fleet.StatePending, false},
		{fleet.StateStopping, false},
		{fleet.StateRunning, true},
		{fleet.StateStopped, true},
		{fleet.StateTerminated, true},
	}
	for _, tc := range cases {
		if got := tc.state.Terminal(); got != tc.terminal {
			t.Fatalf("Terminal(%s): expected %v, got %v", tc.state, tc.terminal, got)
		}
	}
}
