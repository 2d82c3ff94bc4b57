package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid url", url: "https://example.com"},
		{name: "missing url", url: "", wantErr: true},
		{name: "url with trailing slash", url: "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.url, 10*time.Second)
			if tt.wantErr {
				if err == nil {
					t.Error("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if client.baseURL != "https://example.com" {
				t.Errorf("New() baseURL = %q", client.baseURL)
			}
		})
	}
}

func TestClient_DoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "iflab-alerts-cli/1.0" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 1, "name": "test"},
		})
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)

	var result struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := client.DoJSON(context.Background(), RequestOptions{Method: http.MethodGet, Path: "/test"}, &result); err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if result.ID != 1 || result.Name != "test" {
		t.Errorf("DoJSON() result = %+v", result)
	}
}

func TestClient_DoJSON_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "error",
			"message":    "Alert is already resolved",
			"error_type": "CONFLICT",
		})
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)
	_, err := client.AcknowledgeAlert(context.Background(), 3)
	if err == nil {
		t.Fatal("AcknowledgeAlert() expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusConflict)
	}
	if apiErr.Error() != "CONFLICT: Alert is already resolved" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestClient_DoJSON_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)
	_, err := client.Meta(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("Meta() error = %v", err)
	}
}

func TestClient_AcknowledgeAlert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/alerts/12/acknowledge" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   models.Alert{ID: 12, Status: models.AlertStatusAcknowledged, Title: "CPU alta - pc01"},
		})
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)
	alert, err := client.AcknowledgeAlert(context.Background(), 12)
	if err != nil {
		t.Fatalf("AcknowledgeAlert() error = %v", err)
	}
	if alert.Status != models.AlertStatusAcknowledged {
		t.Errorf("status = %q", alert.Status)
	}
}

func TestClient_EvaluateComputer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/computers/5/evaluate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","data":{"computer_id":5,"skipped":true}}`))
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)
	result, err := client.EvaluateComputer(context.Background(), 5)
	if err != nil {
		t.Fatalf("EvaluateComputer() error = %v", err)
	}
	if result.ComputerID != 5 || !result.Skipped {
		t.Errorf("result = %+v", result)
	}
}

func TestClient_EvaluateAllAndStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/evaluate":
			w.Write([]byte(`{"status":"success","data":{"run_id":"r1","computers":4,"opened":1}}`))
		case "/api/v1/status/check":
			w.Write([]byte(`{"status":"success","data":{"computers":4,"went_online":2}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, _ := New(server.URL, 10*time.Second)

	summary, err := client.EvaluateAllComputers(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllComputers() error = %v", err)
	}
	if summary.RunID != "r1" || summary.Opened != 1 {
		t.Errorf("summary = %+v", summary)
	}

	status, err := client.CheckStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if status.WentOnline != 2 {
		t.Errorf("status = %+v", status)
	}
}
