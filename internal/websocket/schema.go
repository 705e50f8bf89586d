package websocket

// ─── Actions (UI → Agent) ───────────────────────────────────────────

type Action string

const (
	// ActionSignal forwards a raw proctoring signal (visibility, focus,
	// fullscreen transitions) from the browser event surface.
	ActionSignal Action = "signal"
	ActionPing   Action = "ping"
)

// RequestPayload is a message from the exam UI.
type RequestPayload struct {
	Action Action `json:"action"`
	Signal string `json:"signal,omitempty"`
}

// ─── Events (Agent → UI) ────────────────────────────────────────────
//
// Session events (tick, warnings, forced submit, results) are emitted
// by the controller and serialized directly; the types below cover the
// stream's own control messages.

type Event string

const (
	EventError  Event = "error"
	EventPong   Event = "pong"
	EventNotice Event = "violation_notice"
)

// NoticeResponse tells the UI to show the warning toast for a newly
// latched violation signal.
type NoticeResponse struct {
	Event  Event  `json:"event"`
	Signal string `json:"signal"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
