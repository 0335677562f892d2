// Package orchestrator applies control events to the ControlState and keeps
// the main render region showing the active view for the latest state.
//
// The orchestrator has two phases. While Idle an event that makes the active
// view stale starts a redraw on the caller's goroutine. While Rendering,
// further events are applied to the state immediately and the redraw in
// progress loops once more with the newest snapshot when it finishes, so
// bursts of input collapse into a single extra redraw.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/internal/pipeline"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// ErrRender wraps failures raised while building or drawing a view.
var ErrRender = errors.New("render failed")

// Phase is the orchestrator's render state.
type Phase int

// Phases.
const (
	Idle Phase = iota
	Rendering
)

func (p Phase) String() string {
	if p == Rendering {
		return "rendering"
	}
	return "idle"
}

// Result describes what an applied event caused.
type Result struct {
	// Events holds the requested change followed by any derived change.
	Events []controls.Event `json:"events"`
	// Rendered is true when this call performed at least one redraw.
	Rendered bool `json:"rendered"`
	// Coalesced is true when a redraw already in progress will pick the
	// change up.
	Coalesced bool `json:"coalesced"`
	// Seq is the sequence number of the last artifact this call drew.
	Seq uint64 `json:"seq"`
}

// Options configures an Orchestrator.
type Options struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	Region     string
}

// Orchestrator serializes control events and redraws.
type Orchestrator struct {
	logger   *zap.Logger
	store    *dataset.Store
	registry *controls.Registry
	sink     render.Sink
	region   string
	metrics  *Metrics

	mu    sync.Mutex
	phase Phase
	dirty bool
	seq   uint64
	last  *view.Artifact
}

// New creates an orchestrator over store, registry and sink.
func New(store *dataset.Store, registry *controls.Registry, sink render.Sink, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	region := opts.Region
	if region == "" {
		region = constants.MainRegion
	}
	return &Orchestrator{
		logger:   logger,
		store:    store,
		registry: registry,
		sink:     sink,
		region:   region,
		metrics:  NewMetrics(opts.Registerer),
	}
}

// Apply sets control id to raw. An invalid event returns an error and leaves
// the state unchanged. If the change makes the active view stale and no
// redraw is running, Apply redraws before returning. Once the change is
// applied the redraw always settles, so ctx is not consulted.
func (o *Orchestrator) Apply(ctx context.Context, id controls.ID, raw interface{}) (Result, error) {
	o.mu.Lock()

	events, err := o.applyLocked(id, raw)
	if err != nil {
		o.mu.Unlock()
		o.logger.Debug("control event rejected",
			zap.String("op", "orchestrator.Apply"),
			zap.String("control", string(id)),
			zap.Error(err),
		)
		return Result{}, err
	}
	o.metrics.Events.WithLabelValues(string(id)).Inc()
	result := Result{Events: events}

	if !o.staleLocked(events) {
		o.mu.Unlock()
		return result, nil
	}

	if o.phase == Rendering {
		o.dirty = true
		o.mu.Unlock()
		o.metrics.Coalesced.Inc()
		result.Coalesced = true
		return result, nil
	}

	o.phase = Rendering
	o.mu.Unlock()

	seq, err := o.renderLoop()
	result.Rendered = seq > 0
	result.Seq = seq
	return result, err
}

// Refresh redraws the active view unconditionally, or marks the running
// redraw dirty.
func (o *Orchestrator) Refresh(ctx context.Context) (uint64, error) {
	o.mu.Lock()
	if o.phase == Rendering {
		o.dirty = true
		o.mu.Unlock()
		return 0, nil
	}
	o.phase = Rendering
	o.mu.Unlock()
	return o.renderLoop()
}

// applyLocked mutates the registry and runs the sire option resolver.
func (o *Orchestrator) applyLocked(id controls.ID, raw interface{}) ([]controls.Event, error) {
	ev, err := o.registry.Set(id, raw)
	if err != nil {
		return nil, err
	}

	state := o.registry.State()
	switch {
	case id == controls.Selection:
		// Members no longer offered by the current search are dropped.
		options, _ := pipeline.ResolveOptions(o.store.AllSires(), state.Search, nil)
		restricted := pipeline.RestrictSelection(state.Selection, pipeline.OptionSet(options))
		if !sameNames(restricted, state.Selection) {
			final, err := o.registry.Set(controls.Selection, restricted)
			if err != nil {
				return nil, err
			}
			ev.New = final.New
		}
		return []controls.Event{ev}, nil

	case id == controls.Search && o.usesSireSelection(state.View) && ev.Changed(),
		id == controls.View && o.usesSireSelection(state.View) && ev.Changed():
		_, selection := pipeline.ResolveOptions(o.store.AllSires(), state.Search, state.Selection)
		if sameNames(selection, state.Selection) {
			return []controls.Event{ev}, nil
		}
		derived, err := o.registry.Set(controls.Selection, selection)
		if err != nil {
			return nil, err
		}
		return []controls.Event{ev, derived}, nil
	}
	return []controls.Event{ev}, nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (o *Orchestrator) usesSireSelection(id string) bool {
	def, ok := view.Lookup(id)
	return ok && def.UsesSireSelection
}

// staleLocked reports whether any changed control feeds the active view.
func (o *Orchestrator) staleLocked(events []controls.Event) bool {
	def, hasView := view.Lookup(o.registry.State().View)
	for _, ev := range events {
		if !ev.Changed() {
			continue
		}
		if ev.Control == controls.View {
			return true
		}
		if hasView && def.Depends(ev.Control) {
			return true
		}
	}
	return false
}

// renderLoop redraws until no event arrived during the last redraw. The
// caller must have moved the phase to Rendering. The phase returns to Idle
// under the same lock that observes a clean state, so no event can be
// marked dirty after the loop has decided to stop. The loop never stops
// while a coalesced change is pending, whatever happens to the caller.
func (o *Orchestrator) renderLoop() (seq uint64, err error) {
	idle := false
	defer func() {
		if !idle {
			o.mu.Lock()
			o.phase = Idle
			o.mu.Unlock()
		}
	}()

	for {
		o.mu.Lock()
		o.dirty = false
		o.seq++
		seq = o.seq
		state := o.registry.State()
		o.mu.Unlock()

		err = o.renderOnce(state, seq)

		o.mu.Lock()
		if !o.dirty {
			o.phase = Idle
			idle = true
			o.mu.Unlock()
			return seq, err
		}
		o.mu.Unlock()
	}
}

// renderOnce clears the region and draws the view for state. A panic in a
// pipeline or sink is converted into an error.
func (o *Orchestrator) renderOnce(state controls.State, seq uint64) (err error) {
	start := time.Now()
	viewName := state.View
	if viewName == "" {
		viewName = "unset"
	}
	result := resultOK

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in view %q: %v", ErrRender, state.View, r)
		}
		if err != nil {
			result = resultError
			o.logger.Error("redraw failed",
				zap.String("op", "orchestrator.renderOnce"),
				zap.String("view", viewName),
				zap.Uint64("seq", seq),
				zap.Error(err),
			)
		}
		o.metrics.Renders.WithLabelValues(viewName, result).Inc()
		o.metrics.RenderDuration.WithLabelValues(viewName).Observe(time.Since(start).Seconds())
	}()

	if err := o.sink.Clear(o.region); err != nil {
		return fmt.Errorf("%w: clearing region %q: %v", ErrRender, o.region, err)
	}
	o.setLast(nil)

	def, ok := view.Lookup(state.View)
	if !ok {
		result = resultCleared
		return nil
	}

	artifact, err := def.Build(o.store, state)
	if err != nil {
		return fmt.Errorf("%w: building view %q: %v", ErrRender, state.View, err)
	}
	artifact.Seq = seq
	if artifact.Empty {
		result = resultEmpty
	}

	if err := o.sink.Draw(o.region, artifact); err != nil {
		return fmt.Errorf("%w: drawing view %q: %v", ErrRender, state.View, err)
	}
	o.setLast(&artifact)

	o.logger.Debug("view redrawn",
		zap.String("op", "orchestrator.renderOnce"),
		zap.String("view", viewName),
		zap.Uint64("seq", seq),
		zap.Int("rows", len(artifact.Table.Rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) setLast(a *view.Artifact) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if a == nil {
		o.last = nil
		return
	}
	if o.last != nil && o.last.Seq > a.Seq {
		return
	}
	o.last = a
}

// State returns a snapshot of the ControlState.
func (o *Orchestrator) State() controls.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registry.State()
}

// Options returns the sire names offered by the current search text.
func (o *Orchestrator) Options() []string {
	state := o.State()
	options, _ := pipeline.ResolveOptions(o.store.AllSires(), state.Search, nil)
	return options
}

// Current returns the most recently drawn artifact. ok is false when the
// region is clear.
func (o *Orchestrator) Current() (view.Artifact, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return view.Artifact{}, false
	}
	return *o.last, true
}

// Phase returns the current render phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Seq returns the sequence number of the latest redraw started.
func (o *Orchestrator) Seq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq
}

// Store returns the dataset the orchestrator renders from.
func (o *Orchestrator) Store() *dataset.Store { return o.store }

// YearBounds returns the bounds of the years-active control.
func (o *Orchestrator) YearBounds() dataset.Bounds { return o.registry.YearBounds() }
