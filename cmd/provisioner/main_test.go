package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

// TestRun boots the real run() function (config, SQLite, River, HTTP) on a
// temp database, provisions one tenant through the full pipeline, and shuts
// everything down through context cancellation.
func TestRun(t *testing.T) {
	t.Setenv("DATABASE_PATH", t.TempDir()+"/test-run.db")
	t.Setenv("SERVER_PORT", "19876")
	t.Setenv("LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	base := "http://localhost:19876/api/v1"

	// Wait for the HTTP server to come up.
	if !waitFor(t, 10*time.Second, func() bool {
		resp, err := get(ctx, base+"/tenants")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}) {
		t.Fatal("server never became ready")
	}

	// Provision a tenant end to end through the running pipeline.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/tenants",
		strings.NewReader(`{"name":"Acme","subdomain":"acme","planId":"free"}`))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /tenants: %v", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	if !waitFor(t, 30*time.Second, func() bool {
		resp, err := get(ctx, base+"/tenants/"+created.ID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var tenant struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
			return false
		}
		return tenant.Status == "ACTIVE"
	}) {
		t.Fatal("tenant never reached ACTIVE")
	}

	// Graceful shutdown.
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not shut down")
	}
}

func get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func waitFor(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
