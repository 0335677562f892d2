// Package render holds the display side of the dashboard: the Sink abstraction
// the orchestrator draws into, in-memory and fan-out sinks, and encoders that
// turn an Artifact into SVG or PNG charts.
package render

import (
	"errors"
	"sync"

	"github.com/iwvelando/sire-dashboard/internal/view"
)

// Sink is a display target with named regions.
type Sink interface {
	// Clear removes whatever is drawn in region.
	Clear(region string) error
	// Draw displays artifact in region.
	Draw(region string, artifact view.Artifact) error
}

// Region is an in-memory sink that keeps the latest artifact per region.
// A Draw carrying a lower sequence than the one already shown is ignored, so
// a slow redraw can never replace the output of a newer one.
type Region struct {
	mu      sync.RWMutex
	current map[string]view.Artifact
	clears  int
	draws   int
}

// NewRegion returns an empty in-memory sink.
func NewRegion() *Region {
	return &Region{current: make(map[string]view.Artifact)}
}

// Clear implements Sink.
func (r *Region) Clear(region string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.current, region)
	r.clears++
	return nil
}

// Draw implements Sink.
func (r *Region) Draw(region string, artifact view.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.current[region]; ok && prev.Seq > artifact.Seq {
		return nil
	}
	r.current[region] = artifact
	r.draws++
	return nil
}

// Current returns the artifact shown in region.
func (r *Region) Current(region string) (view.Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.current[region]
	return a, ok
}

// Counts reports how many clears and accepted draws the sink has seen.
func (r *Region) Counts() (clears, draws int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clears, r.draws
}

// Fanout forwards every call to each of its sinks in order. All sinks are
// called even if one fails; the errors are joined.
type Fanout []Sink

// Clear implements Sink.
func (f Fanout) Clear(region string) error {
	var errs []error
	for _, s := range f {
		if err := s.Clear(region); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Draw implements Sink.
func (f Fanout) Draw(region string, artifact view.Artifact) error {
	var errs []error
	for _, s := range f {
		if err := s.Draw(region, artifact); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Op is one call recorded by a Recorder.
type Op struct {
	Kind     string
	Region   string
	Artifact view.Artifact
}

// Recorder is a sink that remembers every call, for tests and diagnostics.
type Recorder struct {
	mu  sync.Mutex
	ops []Op
}

// Clear implements Sink.
func (r *Recorder) Clear(region string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "clear", Region: region})
	return nil
}

// Draw implements Sink.
func (r *Recorder) Draw(region string, artifact view.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "draw", Region: region, Artifact: artifact})
	return nil
}

// Ops returns a copy of the recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Draws returns the artifacts drawn so far, in call order.
func (r *Recorder) Draws() []view.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []view.Artifact
	for _, op := range r.ops {
		if op.Kind == "draw" {
			out = append(out, op.Artifact)
		}
	}
	return out
}
