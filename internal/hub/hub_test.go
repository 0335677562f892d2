package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/orchestrator"
	"github.com/iwvelando/sire-dashboard/internal/view"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// fakeController draws one artifact per accepted event.
type fakeController struct {
	mu    sync.Mutex
	hub   *Hub
	state controls.State
	seq   uint64
}

func (f *fakeController) Apply(_ context.Context, id controls.ID, raw interface{}) (orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != controls.View {
		return orchestrator.Result{}, controls.ErrInvalidValue
	}
	v, ok := raw.(string)
	if !ok {
		return orchestrator.Result{}, errors.New("view must be a string")
	}
	f.state.View = v
	f.seq++
	_ = f.hub.Clear(constants.MainRegion)
	_ = f.hub.Draw(constants.MainRegion, view.Artifact{Seq: f.seq, View: view.ID(v)})
	return orchestrator.Result{Rendered: true, Seq: f.seq}, nil
}

func (f *fakeController) State() controls.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Options() []string { return []string{"Tapit"} }

func startHub(t *testing.T) (*Hub, *fakeController, *httptest.Server) {
	t.Helper()
	ctrl := &fakeController{}
	h := New(ctrl, Options{})
	ctrl.hub = h

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler(ctx))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, ctrl, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == frameType {
			return f
		}
	}
}

func TestClientReceivesStateOnConnect(t *testing.T) {
	_, _, srv := startHub(t)
	conn := dial(t, srv)

	f := readUntil(t, conn, FrameState)
	require.NotNil(t, f.State)
	assert.Equal(t, []string{"Tapit"}, f.Options)
}

func TestControlMessageRendersAndBroadcasts(t *testing.T) {
	h, _, srv := startHub(t)
	sender := dial(t, srv)
	watcher := dial(t, srv)
	readUntil(t, sender, FrameState)
	readUntil(t, watcher, FrameState)

	require.NoError(t, sender.WriteJSON(ClientMessage{Type: MessageControl, Control: "view", Value: "sire-scatter"}))

	for _, conn := range []*websocket.Conn{sender, watcher} {
		draw := readUntil(t, conn, FrameDraw)
		require.NotNil(t, draw.Artifact)
		assert.Equal(t, view.SireScatter, draw.Artifact.View)
		assert.Equal(t, uint64(1), draw.Seq)
		assert.Equal(t, constants.MainRegion, draw.Region)

		state := readUntil(t, conn, FrameState)
		require.NotNil(t, state.State)
		assert.Equal(t, "sire-scatter", state.State.View)
	}

	snap, ok := h.Snapshot(constants.MainRegion)
	require.True(t, ok)
	assert.Equal(t, FrameDraw, snap.Type)
}

func TestLateClientGetsLatestDraw(t *testing.T) {
	h, _, srv := startHub(t)
	require.NoError(t, h.Draw(constants.MainRegion, view.Artifact{Seq: 4, View: view.CorrelationLine}))
	require.NoError(t, h.Draw(constants.MainRegion, view.Artifact{Seq: 3, View: view.SalesBox}))

	conn := dial(t, srv)
	f := readUntil(t, conn, FrameDraw)
	require.NotNil(t, f.Artifact)
	assert.Equal(t, uint64(4), f.Seq)
	assert.Equal(t, view.CorrelationLine, f.Artifact.View)
}

func TestInvalidMessagesGetErrorFrames(t *testing.T) {
	_, _, srv := startHub(t)
	conn := dial(t, srv)
	readUntil(t, conn, FrameState)

	tests := []struct {
		name string
		msg  ClientMessage
	}{
		{"Unknown control", ClientMessage{Type: MessageControl, Control: "colour", Value: "red"}},
		{"Rejected value", ClientMessage{Type: MessageControl, Control: "mode", Value: "full"}},
		{"Unknown type", ClientMessage{Type: "subscribe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tt.msg))
			f := readUntil(t, conn, FrameError)
			assert.NotEmpty(t, f.Error)
		})
	}
}

func TestClientCountTracksConnections(t *testing.T) {
	h, _, srv := startHub(t)
	conn := dial(t, srv)
	readUntil(t, conn, FrameState)
	assert.Equal(t, 1, h.ClientCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestPendingRenderFramesCoalesce(t *testing.T) {
	h := New(nil, Options{})

	for seq := uint64(1); seq <= 1000; seq++ {
		require.NoError(t, h.Clear(constants.MainRegion))
		require.NoError(t, h.Draw(constants.MainRegion, view.Artifact{Seq: seq, View: view.SalesBox}))
	}

	h.pendingMu.Lock()
	queue := h.pending[constants.MainRegion]
	h.pendingMu.Unlock()
	require.Len(t, queue, 2)
	assert.Equal(t, FrameClear, queue[0].Type)
	assert.Equal(t, FrameDraw, queue[1].Type)
	assert.Equal(t, uint64(1000), queue[1].Seq)

	require.NoError(t, h.Draw(constants.MainRegion, view.Artifact{Seq: 1001, View: view.SireScatter}))
	h.pendingMu.Lock()
	queue = h.pending[constants.MainRegion]
	h.pendingMu.Unlock()
	require.Len(t, queue, 2, "a newer draw replaces the waiting one")
	assert.Equal(t, uint64(1001), queue[1].Seq)
}

func TestBurstOfRedrawsDeliversFinalDraw(t *testing.T) {
	h, _, srv := startHub(t)
	conn := dial(t, srv)
	readUntil(t, conn, FrameState)

	const last = 20
	for seq := uint64(1); seq <= last; seq++ {
		require.NoError(t, h.Clear(constants.MainRegion))
		require.NoError(t, h.Draw(constants.MainRegion, view.Artifact{Seq: seq, View: view.CorrelationLine}))
	}

	for {
		f := readUntil(t, conn, FrameDraw)
		if f.Seq == last {
			break
		}
		assert.Less(t, f.Seq, uint64(last))
	}
	assert.Equal(t, 1, h.ClientCount())
}

func TestTrySendFullBuffer(t *testing.T) {
	c := &Client{ID: "slow", Send: make(chan Frame, 1)}
	assert.True(t, c.TrySend(Frame{Type: FrameClear}))
	assert.False(t, c.TrySend(Frame{Type: FrameClear}))
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{"No list", nil, "http://evil.example", true},
		{"Wildcard", []string{"*"}, "http://evil.example", true},
		{"Listed", []string{"http://localhost:8080"}, "http://localhost:8080", true},
		{"Not listed", []string{"http://localhost:8080"}, "http://evil.example", false},
		{"Same-origin request", []string{"http://localhost:8080"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.ok, originChecker(tt.allowed)(r))
		})
	}
}
