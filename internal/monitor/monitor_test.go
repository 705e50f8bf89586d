package monitor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	kinds []model.ViolationKind
}

func (r *recordingReporter) ReportViolation(_ context.Context, kind model.ViolationKind) {
	r.kinds = append(r.kinds, kind)
}

func TestRaisingSignalReportsOnce(t *testing.T) {
	rep := &recordingReporter{}
	m := New(rep, true, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, m.Observe(ctx, SignalVisibilityHidden))
	// The same condition repeating while latched is dropped.
	assert.False(t, m.Observe(ctx, SignalVisibilityHidden))
	assert.False(t, m.Observe(ctx, SignalVisibilityHidden))

	require.Equal(t, []model.ViolationKind{model.ViolationTabHidden}, rep.kinds)
}

func TestClearingSignalResetsLatch(t *testing.T) {
	rep := &recordingReporter{}
	m := New(rep, true, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, m.Observe(ctx, SignalFocusLost))
	assert.False(t, m.Observe(ctx, SignalFocusGained))
	assert.True(t, m.Observe(ctx, SignalFocusLost))

	assert.Equal(t, []model.ViolationKind{model.ViolationFocusLost, model.ViolationFocusLost}, rep.kinds)
}

func TestSignalsLatchIndependently(t *testing.T) {
	rep := &recordingReporter{}
	m := New(rep, true, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, m.Observe(ctx, SignalVisibilityHidden))
	assert.True(t, m.Observe(ctx, SignalFocusLost))
	assert.True(t, m.Observe(ctx, SignalFullscreenExited))

	assert.Equal(t, []model.ViolationKind{
		model.ViolationTabHidden,
		model.ViolationFocusLost,
		model.ViolationFullscreenExited,
	}, rep.kinds)
}

func TestFullscreenIgnoredWhenNotRequired(t *testing.T) {
	rep := &recordingReporter{}
	m := New(rep, false, zerolog.Nop())
	ctx := context.Background()

	assert.False(t, m.Observe(ctx, SignalFullscreenExited))
	assert.Empty(t, rep.kinds)

	// Other signal families still report.
	assert.True(t, m.Observe(ctx, SignalVisibilityHidden))
}

func TestUnknownSignalIgnored(t *testing.T) {
	rep := &recordingReporter{}
	m := New(rep, true, zerolog.Nop())

	assert.False(t, m.Observe(context.Background(), Signal("devtools_opened")))
	assert.Empty(t, rep.kinds)
}
