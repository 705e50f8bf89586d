package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotSource is the controller surface the autosaver drives.
// PersistSnapshot is debounced internally (dirty flag), so a tick with
// no changes writes nothing.
type SnapshotSource interface {
	PersistSnapshot()
	Ended() bool
}

// Autosaver periodically persists the attempt snapshot so a crash or
// reload loses at most one interval of answers. Saving on an interval
// rather than on every answer bounds write volume on slow disks.
type Autosaver struct {
	source   SnapshotSource
	interval time.Duration
	log      zerolog.Logger
}

// NewAutosaver creates a new Autosaver.
func NewAutosaver(source SnapshotSource, interval time.Duration, log zerolog.Logger) *Autosaver {
	return &Autosaver{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "autosaver").Logger(),
	}
}

// Start begins the autosave loop. Call in a goroutine. The loop ends on
// context cancellation or when the session reaches a terminal status;
// either way a final flush runs first, which is the agent-side
// equivalent of a best-effort save on browser unload.
func (a *Autosaver) Start(ctx context.Context) {
	a.log.Info().Dur("interval", a.interval).Msg("Autosaver started")

	t := time.NewTicker(a.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			a.source.PersistSnapshot()
			a.log.Info().Msg("Autosaver stopped")
			return
		case <-t.C:
			if a.source.Ended() {
				a.log.Info().Msg("Session ended, autosaver stopping")
				return
			}
			a.source.PersistSnapshot()
		}
	}
}
