// Package monitor turns browser-level proctoring signals into session
// violations. The UI forwards raw Page Visibility, window focus and
// Fullscreen API transitions over the agent stream; the monitor latches
// each signal type so a violating condition raises exactly one
// violation (and one user notice) until the condition clears.
//
// The monitor holds no exam-domain state. Threshold policy lives in the
// session controller.
package monitor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
)

// Signal is a raw proctoring signal from the UI.
type Signal string

const (
	SignalVisibilityHidden  Signal = "visibility_hidden"
	SignalVisibilityVisible Signal = "visibility_visible"
	SignalFocusLost         Signal = "focus_lost"
	SignalFocusGained       Signal = "focus_gained"
	SignalFullscreenExited  Signal = "fullscreen_exited"
	SignalFullscreenEntered Signal = "fullscreen_entered"
)

// raising maps violating signals to their violation kind; clearing maps
// recovery signals back to the latch they reset.
var (
	raising = map[Signal]model.ViolationKind{
		SignalVisibilityHidden: model.ViolationTabHidden,
		SignalFocusLost:        model.ViolationFocusLost,
		SignalFullscreenExited: model.ViolationFullscreenExited,
	}
	clearing = map[Signal]Signal{
		SignalVisibilityVisible: SignalVisibilityHidden,
		SignalFocusGained:       SignalFocusLost,
		SignalFullscreenEntered: SignalFullscreenExited,
	}
)

// Reporter receives one violation per latched signal episode.
// Implemented by the session controller.
type Reporter interface {
	ReportViolation(ctx context.Context, kind model.ViolationKind)
}

// Monitor latches per-signal state and forwards violations.
type Monitor struct {
	reporter          Reporter
	requireFullscreen bool
	log               zerolog.Logger

	mu      sync.Mutex
	latched map[Signal]bool
}

// New creates a Monitor. When requireFullscreen is false, fullscreen
// signals are ignored entirely.
func New(reporter Reporter, requireFullscreen bool, log zerolog.Logger) *Monitor {
	return &Monitor{
		reporter:          reporter,
		requireFullscreen: requireFullscreen,
		log:               log.With().Str("component", "monitor").Logger(),
		latched:           make(map[Signal]bool),
	}
}

// Observe processes one signal. It returns true when the signal raised
// a new violation (the UI shows its warning toast exactly then).
// Repeats of an already-latched signal are dropped; clearing signals
// reset their latch and never raise.
func (m *Monitor) Observe(ctx context.Context, sig Signal) bool {
	if reset, ok := clearing[sig]; ok {
		m.mu.Lock()
		m.latched[reset] = false
		m.mu.Unlock()
		return false
	}

	kind, ok := raising[sig]
	if !ok {
		m.log.Debug().Str("signal", string(sig)).Msg("Ignoring unknown signal")
		return false
	}
	if sig == SignalFullscreenExited && !m.requireFullscreen {
		return false
	}

	m.mu.Lock()
	if m.latched[sig] {
		m.mu.Unlock()
		return false
	}
	m.latched[sig] = true
	m.mu.Unlock()

	m.reporter.ReportViolation(ctx, kind)
	return true
}
