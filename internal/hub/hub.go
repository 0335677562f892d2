package hub

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/orchestrator"
	"github.com/iwvelando/sire-dashboard/internal/view"
)

const directBufferSize = 256

// Controller applies control events on behalf of clients.
type Controller interface {
	Apply(ctx context.Context, id controls.ID, raw interface{}) (orchestrator.Result, error)
	State() controls.State
	Options() []string
}

// Options configures a Hub.
type Options struct {
	Logger     *zap.Logger
	Registerer prometheus.Registerer
	// AllowedOrigins restricts WebSocket upgrades by Origin header. Empty
	// or "*" allows every origin.
	AllowedOrigins []string
}

type directFrame struct {
	client *Client
	frame  Frame
}

// Hub maintains the set of connected clients. It implements render.Sink:
// every Clear and Draw is broadcast as a frame, and the latest frame per
// region is replayed to clients as they connect. Render frames waiting for
// the loop are coalesced per region, so a burst of redraws delivers its
// final clear and draw instead of dropping them.
type Hub struct {
	logger     *zap.Logger
	controller Controller
	upgrader   websocket.Upgrader

	clients   map[*Client]bool
	clientsMu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	direct     chan directFrame
	wake       chan struct{}
	done       chan struct{}

	pendingMu    sync.Mutex
	pending      map[string][]Frame
	pendingState bool

	snapshotMu sync.RWMutex
	snapshot   map[string]Frame

	connected prometheus.Gauge
	dropped   prometheus.Counter
}

// New creates a hub. controller may be nil for a display-only hub.
func New(controller Controller, opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	h := &Hub{
		logger:     logger,
		controller: controller,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directFrame, directBufferSize),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		pending:    make(map[string][]Frame),
		snapshot:   make(map[string]Frame),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_hub_clients",
			Help: "Connected WebSocket clients.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_hub_dropped_frames_total",
			Help: "Frames dropped because a buffer was full.",
		}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// SetController attaches the controller client events are applied to. It
// must be called before Run.
func (h *Hub) SetController(c Controller) {
	h.controller = c
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if strings.TrimSpace(o) == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimSpace(o), origin) {
				return true
			}
		}
		return false
	}
}

// Run is the hub's main loop. It returns when ctx is done, closing every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Info("websocket hub started", zap.String("op", "hub.Run"))

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case <-h.wake:
			h.flush()

		case d := <-h.direct:
			h.clientsMu.RLock()
			_, ok := h.clients[d.client]
			h.clientsMu.RUnlock()
			if ok && !d.client.TrySend(d.frame) {
				h.dropped.Inc()
			}
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// enqueue schedules a render frame for every client. A clear supersedes
// whatever is still waiting for its region, and a draw replaces a waiting
// draw, so each region holds at most a clear followed by a draw.
func (h *Hub) enqueue(region string, frame Frame) {
	h.pendingMu.Lock()
	if frame.Type == FrameClear {
		h.pending[region] = []Frame{frame}
	} else {
		queue := h.pending[region]
		if n := len(queue); n > 0 && queue[n-1].Type == FrameDraw {
			queue = queue[:n-1]
		}
		h.pending[region] = append(queue, frame)
	}
	h.pendingMu.Unlock()
	h.notify()
}

// queueState schedules a state frame, built from the controller when the
// loop sends it.
func (h *Hub) queueState() {
	h.pendingMu.Lock()
	h.pendingState = true
	h.pendingMu.Unlock()
	h.notify()
}

func (h *Hub) notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// flush sends every waiting render frame, then the state frame if one was
// asked for.
func (h *Hub) flush() {
	h.pendingMu.Lock()
	pending := h.pending
	h.pending = make(map[string][]Frame)
	sendState := h.pendingState
	h.pendingState = false
	h.pendingMu.Unlock()

	for _, frames := range pending {
		for _, frame := range frames {
			h.broadcastFrame(frame)
		}
	}
	if sendState {
		h.broadcastFrame(h.stateFrame())
	}
}

func (h *Hub) sendTo(c *Client, frame Frame) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	select {
	case h.direct <- directFrame{client: c, frame: frame}:
	default:
		h.dropped.Inc()
	}
}

// Clear implements render.Sink.
func (h *Hub) Clear(region string) error {
	frame := Frame{Type: FrameClear, Region: region, Timestamp: time.Now()}
	h.snapshotMu.Lock()
	h.snapshot[region] = frame
	h.snapshotMu.Unlock()
	h.enqueue(region, frame)
	return nil
}

// Draw implements render.Sink.
func (h *Hub) Draw(region string, artifact view.Artifact) error {
	a := artifact
	frame := Frame{Type: FrameDraw, Region: region, Seq: a.Seq, Artifact: &a, Timestamp: time.Now()}
	h.snapshotMu.Lock()
	if prev, ok := h.snapshot[region]; ok && prev.Type == FrameDraw && prev.Seq > a.Seq {
		h.snapshotMu.Unlock()
		return nil
	}
	h.snapshot[region] = frame
	h.snapshotMu.Unlock()
	h.enqueue(region, frame)
	return nil
}

// Snapshot returns the latest frame sent to region.
func (h *Hub) Snapshot(region string) (Frame, bool) {
	h.snapshotMu.RLock()
	defer h.snapshotMu.RUnlock()
	f, ok := h.snapshot[region]
	return f, ok
}

// Dispatch handles one client message.
func (h *Hub) Dispatch(ctx context.Context, c *Client, msg ClientMessage) {
	switch msg.Type {
	case MessagePing:
		h.sendTo(c, h.stateFrame())

	case MessageControl:
		if h.controller == nil {
			h.sendTo(c, Frame{Type: FrameError, Error: "controls are read-only"})
			return
		}
		id, err := controls.ParseID(msg.Control)
		if err != nil {
			h.sendTo(c, Frame{Type: FrameError, Error: err.Error()})
			return
		}
		if _, err := h.controller.Apply(ctx, id, msg.Value); err != nil {
			h.logger.Debug("client control event rejected",
				zap.String("op", "hub.Dispatch"),
				zap.String("client", c.ID),
				zap.String("control", string(id)),
				zap.Error(err),
			)
			h.sendTo(c, Frame{Type: FrameError, Error: err.Error()})
			return
		}
		// Other clients mirror the new control values.
		h.queueState()

	default:
		h.sendTo(c, Frame{Type: FrameError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (h *Hub) stateFrame() Frame {
	frame := Frame{Type: FrameState, Timestamp: time.Now()}
	if h.controller != nil {
		st := h.controller.State()
		frame.State = &st
		frame.Options = h.controller.Options()
	}
	return frame
}

// Handler upgrades requests to WebSocket connections. ctx bounds the life
// of every connection it accepts.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed",
				zap.String("op", "hub.Handler"),
				zap.Error(err),
			)
			return
		}

		c := NewClient(uuid.New().String(), conn, h, h.logger)
		h.Register(c)

		go c.WritePump(ctx)
		go c.ReadPump(ctx)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.connected.Set(float64(total))

	h.snapshotMu.RLock()
	for _, frame := range h.snapshot {
		c.TrySend(frame)
	}
	h.snapshotMu.RUnlock()
	c.TrySend(h.stateFrame())

	h.logger.Info("websocket client connected",
		zap.String("op", "hub.registerClient"),
		zap.String("client", c.ID),
		zap.Int("clients", total),
	)
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.Send)
	}
	total := len(h.clients)
	h.clientsMu.Unlock()
	h.connected.Set(float64(total))

	if ok {
		h.logger.Info("websocket client disconnected",
			zap.String("op", "hub.unregisterClient"),
			zap.String("client", c.ID),
			zap.Int("clients", total),
		)
	}
}

func (h *Hub) broadcastFrame(frame Frame) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.TrySend(frame) {
			h.dropped.Inc()
			h.logger.Warn("client buffer full, disconnecting",
				zap.String("op", "hub.broadcastFrame"),
				zap.String("client", c.ID),
			)
			h.unregisterClient(c)
		}
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info("shutting down websocket hub",
		zap.String("op", "hub.shutdown"),
		zap.Int("clients", len(h.clients)),
	)
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
	h.connected.Set(0)
}
