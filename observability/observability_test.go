package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfig_ZeroValue(t *testing.T) {
	// Zero value should disable all features
	var cfg Config
	if cfg.Service != "" {
		t.Error("expected empty service")
	}
	if cfg.TraceAddr != "" {
		t.Error("expected empty trace addr")
	}
	if cfg.LogAddr != "" {
		t.Error("expected empty log addr")
	}
	if cfg.Metrics {
		t.Error("expected metrics disabled by default")
	}
}

func TestSetup_NoConfig(t *testing.T) {
	ctx := context.Background()

	// Setup with zero config should succeed (noop mode)
	err := Setup(ctx, Config{})
	if err != nil {
		t.Fatalf("Setup with zero config failed: %v", err)
	}
	defer Shutdown(ctx)

	if Enabled() {
		t.Error("metrics should be disabled with zero config")
	}

	// Handler should serve 404 when disabled
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("disabled handler status = %d, want 404", w.Code)
	}
}

func TestSetup_Metrics(t *testing.T) {
	err := Setup(context.Background(), Config{
		Service: "test",
		Metrics: true,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Shutdown(context.Background())

	if !Enabled() {
		t.Fatal("metrics should be enabled")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("metrics handler status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	ctx := context.Background()

	if err := Setup(ctx, Config{Service: "test"}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	// Second shutdown is a no-op.
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
}
