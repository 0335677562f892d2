// Package hub pushes render frames to browser clients over WebSocket and
// forwards their control changes to the orchestrator.
package hub

import (
	"time"

	"github.com/iwvelando/sire-dashboard/internal/controls"
	"github.com/iwvelando/sire-dashboard/internal/view"
)

// Frame types sent to clients.
const (
	FrameClear = "clear"
	FrameDraw  = "draw"
	FrameState = "state"
	FrameError = "error"
)

// Client message types.
const (
	MessageControl = "control"
	MessagePing    = "ping"
)

// Frame is a server-to-client message.
type Frame struct {
	Type      string          `json:"type"`
	Region    string          `json:"region,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	Artifact  *view.Artifact  `json:"artifact,omitempty"`
	State     *controls.State `json:"state,omitempty"`
	Options   []string        `json:"options,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ClientMessage is a client-to-server message.
type ClientMessage struct {
	Type    string      `json:"type"`
	Control string      `json:"control,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}
