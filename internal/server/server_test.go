package server

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/orchestrator"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
	"github.com/iwvelando/sire-dashboard/pkg/testutil"
)

func newTestHandler(t *testing.T, opts Options) (http.Handler, *orchestrator.Orchestrator) {
	t.Helper()
	store := testutil.Store(t)
	years := store.YearsActive()
	registry := controls.NewRegistry(controls.Defaults(constants.DefaultMinFoals, years), years, view.IDs())

	reg := prometheus.NewRegistry()
	orch := orchestrator.New(store, registry, render.NewRegion(), orchestrator.Options{Registerer: reg})
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = reg
	}
	return NewHandler(orch, opts), orch
}

func postEvent(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleHealth(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	rr := get(handler, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %v", resp["status"])
	}
	if resp["phase"] != "idle" {
		t.Fatalf("expected idle phase, got %v", resp["phase"])
	}
}

func TestHandleVersion(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{"Explicit version", " v1.2.3 ", "v1.2.3"},
		{"Empty version", "", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestHandler(t, Options{Version: tt.version})
			rr := get(handler, "/api/version")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}

			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["version"] != tt.expected {
				t.Fatalf("expected version %q, got %q", tt.expected, resp["version"])
			}
		})
	}
}

func TestHandleState(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	rr := get(handler, "/api/state")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp stateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Views) != 3 {
		t.Fatalf("expected 3 views, got %d", len(resp.Views))
	}
	if resp.YearBounds.Min != 3 || resp.YearBounds.Max != 8 {
		t.Fatalf("unexpected year bounds %+v", resp.YearBounds)
	}
	if resp.State.View != "" {
		t.Fatalf("expected unset view, got %q", resp.State.View)
	}
	if resp.State.MinFoals != constants.DefaultMinFoals {
		t.Fatalf("expected min foals %d, got %d", constants.DefaultMinFoals, resp.State.MinFoals)
	}
	if len(resp.Options) != 4 {
		t.Fatalf("expected 4 sire options, got %v", resp.Options)
	}
}

func TestHandleEventRendersView(t *testing.T) {
	handler, orch := newTestHandler(t, Options{})

	rr := postEvent(t, handler, `{"control":"view","value":"sire-scatter"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Rendered bool           `json:"rendered"`
		Seq      uint64         `json:"seq"`
		State    controls.State `json:"state"`
		Artifact *view.Artifact `json:"artifact"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Rendered {
		t.Fatal("expected a redraw")
	}
	if resp.State.View != string(view.SireScatter) {
		t.Fatalf("expected view %q, got %q", view.SireScatter, resp.State.View)
	}
	if orch.Seq() != resp.Seq {
		t.Fatalf("expected seq %d, got %d", orch.Seq(), resp.Seq)
	}
	if resp.Artifact == nil || resp.Artifact.Seq != resp.Seq {
		t.Fatalf("expected the drawn artifact in the response, got %+v", resp.Artifact)
	}

	rr = get(handler, "/api/view")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body viewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode artifact: %v", err)
	}
	if body.Artifact == nil {
		t.Fatal("expected an artifact")
	}
	artifact := body.Artifact
	if artifact.View != view.SireScatter {
		t.Fatalf("expected scatter artifact, got %q", artifact.View)
	}
	if len(artifact.Table.Rows) != 6 {
		t.Fatalf("expected 6 sire rows, got %d", len(artifact.Table.Rows))
	}
}

func TestHandleEventYearRange(t *testing.T) {
	handler, orch := newTestHandler(t, Options{})

	rr := postEvent(t, handler, `{"control":"years_active","value":[3,5]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	got := orch.State().YearRange
	if got.Lo != 3 || got.Hi != 5 {
		t.Fatalf("expected range 3-5, got %+v", got)
	}
	if _, ok := orch.Current(); ok {
		t.Fatal("expected no artifact while the view is unset")
	}
}

func TestHandleEventErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"Malformed JSON", `{"control":`, http.StatusBadRequest},
		{"Unknown control", `{"control":"colour","value":"red"}`, http.StatusBadRequest},
		{"Unknown view", `{"control":"view","value":"pie"}`, http.StatusBadRequest},
		{"Invalid mode", `{"control":"mode","value":"outliers"}`, http.StatusBadRequest},
		{"Fractional min foals", `{"control":"min_foals","value":2.5}`, http.StatusBadRequest},
		{"Short range", `{"control":"years_active","value":[3]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, orch := newTestHandler(t, Options{})
			before := orch.State()

			rr := postEvent(t, handler, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}

			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp["error"] == "" {
				t.Fatal("expected error message")
			}

			after := orch.State()
			if after.View != before.View || after.Mode != before.Mode || after.MinFoals != before.MinFoals {
				t.Fatalf("state changed on rejected event: %+v -> %+v", before, after)
			}
		})
	}
}

func TestHandleEventRequestTooLarge(t *testing.T) {
	handler, _ := newTestHandler(t, Options{MaxRequestSize: 16})

	rr := postEvent(t, handler, `{"control":"search","value":"`+strings.Repeat("x", 64)+`"}`)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleViewUnset(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	rr := get(handler, "/api/view")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != `{"artifact":null}` {
		t.Fatalf("expected null artifact, got %s", body)
	}

	if rr := get(handler, "/api/view/chart.svg"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected chart status 404, got %d", rr.Code)
	}
}

func TestHandleChart(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	if rr := postEvent(t, handler, `{"control":"view","value":"correlation-line"}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to select view: %d %s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		name        string
		path        string
		status      int
		contentType string
	}{
		{"SVG", "/api/view/chart.svg", http.StatusOK, "image/svg+xml"},
		{"PNG with size", "/api/view/chart.png?width=320&height=200", http.StatusOK, "image/png"},
		{"Unsupported format", "/api/view/chart.gif", http.StatusNotFound, "application/json"},
		{"Bad width", "/api/view/chart.svg?width=wide", http.StatusBadRequest, "application/json"},
		{"Oversized height", "/api/view/chart.svg?height=10000", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(handler, tt.path)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if ct := rr.Header().Get("Content-Type"); ct != tt.contentType {
				t.Fatalf("expected content type %q, got %q", tt.contentType, ct)
			}
			if tt.status == http.StatusOK {
				if rr.Body.Len() == 0 {
					t.Fatal("expected chart body")
				}
				if rr.Header().Get("X-Artifact-Seq") != "1" {
					t.Fatalf("expected artifact seq 1, got %q", rr.Header().Get("X-Artifact-Seq"))
				}
			}
		})
	}
}

func TestHandleRefresh(t *testing.T) {
	handler, orch := newTestHandler(t, Options{})
	if rr := postEvent(t, handler, `{"control":"view","value":"sire-scatter"}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to select view: %d %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Seq      uint64          `json:"seq"`
		Artifact json.RawMessage `json:"artifact"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Seq != 2 || orch.Seq() != 2 {
		t.Fatalf("expected refresh to produce seq 2, got response %d orchestrator %d", body.Seq, orch.Seq())
	}
	if string(body.Artifact) == "null" {
		t.Fatal("expected the redrawn artifact")
	}
}

func TestHandleChartConfiguredSize(t *testing.T) {
	handler, _ := newTestHandler(t, Options{ChartSize: render.Options{Width: 400, Height: 300}})
	if rr := postEvent(t, handler, `{"control":"view","value":"sire-scatter"}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to select view: %d %s", rr.Code, rr.Body.String())
	}

	tests := []struct {
		path          string
		width, height int
	}{
		{"/api/view/chart.png", 400, 300},
		{"/api/view/chart.png?width=200", 200, 300},
	}
	for _, tt := range tests {
		rr := get(handler, tt.path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", tt.path, rr.Code)
		}
		cfg, err := png.DecodeConfig(rr.Body)
		if err != nil {
			t.Fatalf("%s: decoding png: %v", tt.path, err)
		}
		if cfg.Width != tt.width || cfg.Height != tt.height {
			t.Fatalf("%s: expected %dx%d, got %dx%d", tt.path, tt.width, tt.height, cfg.Width, cfg.Height)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	if rr := postEvent(t, handler, `{"control":"view","value":"sales-box"}`); rr.Code != http.StatusOK {
		t.Fatalf("failed to select view: %d %s", rr.Code, rr.Body.String())
	}

	rr := get(handler, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"dashboard_control_events_total", "dashboard_renders_total", "dashboard_render_duration_seconds"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected metric %s in output", name)
		}
	}
}

func TestWebSocketRouteOptional(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})
	if rr := get(handler, "/ws"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a websocket handler, got %d", rr.Code)
	}

	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	handler, _ = newTestHandler(t, Options{WebSocket: ws})
	get(handler, "/ws")
	if !called {
		t.Fatal("expected websocket handler to be invoked")
	}
}

func TestStaticAssets(t *testing.T) {
	handler, _ := newTestHandler(t, Options{})

	tests := []struct {
		path     string
		contains string
	}{
		{"/", "Sire Dashboard"},
		{"/app.js", "WebSocket"},
		{"/styles.css", "grid-template-columns"},
	}

	for _, tt := range tests {
		rr := get(handler, tt.path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", tt.path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), tt.contains) {
			t.Fatalf("%s: expected body to contain %q", tt.path, tt.contains)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	handler, _ := newTestHandler(t, Options{CorsOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
