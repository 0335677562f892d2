// Package server exposes the dashboard over HTTP: a JSON control API, chart
// images of the current view, the WebSocket push channel and the web UI.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/internal/orchestrator"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

//go:embed static/*
var staticFiles embed.FS

// Dashboard is the orchestrator surface the HTTP API drives.
type Dashboard interface {
	Apply(ctx context.Context, id controls.ID, raw interface{}) (orchestrator.Result, error)
	Refresh(ctx context.Context) (uint64, error)
	State() controls.State
	Options() []string
	Current() (view.Artifact, bool)
	Phase() orchestrator.Phase
	Seq() uint64
	YearBounds() dataset.Bounds
}

// Options configures the handler.
type Options struct {
	Logger         *zap.Logger
	MaxRequestSize int64
	CorsOrigins    []string
	Version        string
	// WebSocket serves /ws when set.
	WebSocket http.Handler
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// ChartSize is the image size used when a chart request gives none.
	ChartSize render.Options
}

// maxChartSide bounds either dimension of a rendered chart image.
const maxChartSide = 4096

type handler struct {
	logger         *zap.Logger
	dashboard      Dashboard
	maxRequestSize int64
	version        string
	chartSize      render.Options
}

type viewInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type stateResponse struct {
	State      controls.State `json:"state"`
	Options    []string       `json:"options"`
	Views      []viewInfo     `json:"views"`
	YearBounds dataset.Bounds `json:"yearBounds"`
	Phase      string         `json:"phase"`
	Seq        uint64         `json:"seq"`
}

type eventRequest struct {
	Control string      `json:"control"`
	Value   interface{} `json:"value"`
}

type eventResponse struct {
	orchestrator.Result
	State    controls.State `json:"state"`
	Artifact *view.Artifact `json:"artifact"`
}

type viewResponse struct {
	Artifact *view.Artifact `json:"artifact"`
}

// NewHandler constructs the HTTP handler that serves the web UI and dashboard API.
func NewHandler(dashboard Dashboard, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRequestSize := opts.MaxRequestSize
	if maxRequestSize <= 0 {
		maxRequestSize = constants.DefaultMaxRequestSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, dashboard: dashboard, maxRequestSize: maxRequestSize, version: trimmedVersion, chartSize: opts.ChartSize}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	origins := opts.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Get("/state", h.handleState)
		r.Post("/events", h.handleEvent)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/view", h.handleView)
		r.Get("/view/chart.{format}", h.handleChart)
	})

	if opts.WebSocket != nil {
		r.Handle("/ws", opts.WebSocket)
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"phase":  h.dashboard.Phase().String(),
		"seq":    h.dashboard.Seq(),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *handler) snapshot() stateResponse {
	defs := view.Definitions()
	views := make([]viewInfo, 0, len(defs))
	for _, d := range defs {
		views = append(views, viewInfo{ID: string(d.ID), Label: d.Label})
	}
	return stateResponse{
		State:      h.dashboard.State(),
		Options:    h.dashboard.Options(),
		Views:      views,
		YearBounds: h.dashboard.YearBounds(),
		Phase:      h.dashboard.Phase().String(),
		Seq:        h.dashboard.Seq(),
	}
}

func (h *handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvent"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req eventRequest
	if err := dec.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxRequestSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid event body: %v", err), op)
		return
	}

	id, err := controls.ParseID(req.Control)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	result, err := h.dashboard.Apply(r.Context(), id, req.Value)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controls.ErrInvalidValue) || errors.Is(err, controls.ErrUnknownControl) {
			status = http.StatusBadRequest
		}
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	h.logger.Debug("control event applied",
		zap.String("op", op),
		zap.String("control", string(id)),
		zap.Bool("rendered", result.Rendered),
		zap.Bool("coalesced", result.Coalesced),
		zap.Duration("elapsed", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, eventResponse{Result: result, State: h.dashboard.State(), Artifact: h.current()})
}

// handleRefresh redraws the active view without changing any control. A
// refresh that lands during a redraw is folded into it and reports seq 0.
func (h *handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRefresh"
	seq, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"seq":      seq,
		"artifact": h.current(),
	})
}

// current returns the artifact in the region, or nil when it is clear.
func (h *handler) current() *view.Artifact {
	artifact, ok := h.dashboard.Current()
	if !ok {
		return nil
	}
	return &artifact
}

func (h *handler) handleView(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, viewResponse{Artifact: h.current()})
}

func (h *handler) handleChart(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleChart"
	chartFormat := chi.URLParam(r, "format")
	if chartFormat != constants.OutputFormatSVG && chartFormat != constants.OutputFormatPNG {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("unsupported chart format %q", chartFormat), op)
		return
	}

	artifact, ok := h.dashboard.Current()
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, "no view selected", op)
		return
	}

	opts := h.chartSize
	for _, dim := range []struct {
		name   string
		target *int
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		v := r.URL.Query().Get(dim.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxChartSide {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", dim.name, v), op)
			return
		}
		*dim.target = n
	}

	var buf bytes.Buffer
	if err := render.Encode(&buf, artifact, chartFormat, opts); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
		return
	}

	contentType := "image/svg+xml"
	if chartFormat == constants.OutputFormatPNG {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Artifact-Seq", strconv.FormatUint(artifact.Seq, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write chart", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	if h.logger != nil {
		h.logger.Error("dashboard request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.String("error", msg),
		)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
