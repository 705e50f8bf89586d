// Package session implements the state machine that runs one proctored
// exam attempt: absolute-deadline timing, answer capture, violation
// accounting, debounced persistence and the single gate into submission.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/clock"
	"github.com/stemsi/exstem-agent/internal/ledger"
	"github.com/stemsi/exstem-agent/internal/model"
)

// Low-time warnings fire once each when remaining time first crosses a
// threshold.
var lowTimeThresholds = []time.Duration{5 * time.Minute, time.Minute}

// SnapshotStore is the persistence surface the controller writes
// through. Failures are swallowed and logged at the call site: a broken
// store degrades resume-on-reload, never the running attempt.
type SnapshotStore interface {
	Save(testID string, snap *model.Snapshot) error
	Load(testID string) (*model.Snapshot, error)
	Clear(testID string) error
	SetExamActive(active bool) error
}

// Submitter delivers the frozen payload to the platform. Implemented by
// submit.Coordinator; faked in tests.
type Submitter interface {
	Submit(ctx context.Context, token string, req *model.SubmissionRequest) (*model.SubmissionResult, error)
}

// State is the controller's externally visible snapshot, served to the
// UI on begin and on every state poll.
type State struct {
	Status          model.SessionStatus     `json:"status"`
	TestID          string                  `json:"test_id"`
	RemainingMillis int64                   `json:"remaining_ms"`
	DeadlineMillis  int64                   `json:"deadline"`
	CurrentIndex    int                     `json:"current_index"`
	Answers         map[string]int          `json:"answers"`
	Visited         []string                `json:"visited"`
	MarkedForReview []string                `json:"marked_for_review"`
	ViolationCount  int                     `json:"violation_count"`
	ViolationLimit  int                     `json:"violation_limit"`
	DurationMinutes int                     `json:"duration_minutes"`
	RequireFS       bool                    `json:"require_fullscreen"`
	AllowNavigation bool                    `json:"allow_navigation"`
	Resumed         bool                    `json:"resumed"`
	Result          *model.SubmissionResult `json:"result,omitempty"`
}

// Controller is the per-attempt state machine. Entry points are called
// from HTTP and WebSocket handler goroutines, so every guard check and
// the transition it protects run under one mutex; the only operation
// performed outside the lock is the network submission itself, which
// acts on the already-frozen payload.
type Controller struct {
	clk       clock.Clock
	store     SnapshotStore
	submitter Submitter
	log       zerolog.Logger

	mu           sync.Mutex
	cfg          model.SessionConfig
	session      model.Session
	ledger       *ledger.Ledger
	resumed      bool
	submitGuard  bool
	frozen       *model.SubmissionRequest
	result       *model.SubmissionResult
	halfNotified bool
	lowNotified  map[time.Duration]bool
	dirty        bool
	listeners    map[int]func(Event)
	nextListener int
}

// NewController creates a controller in NOT_STARTED. One controller
// serves exactly one attempt; the agent process is launched per attempt.
func NewController(clk clock.Clock, st SnapshotStore, sub Submitter, log zerolog.Logger) *Controller {
	return &Controller{
		clk:         clk,
		store:       st,
		submitter:   sub,
		log:         log.With().Str("component", "session").Logger(),
		session:     model.Session{Status: model.SessionStatusNotStarted},
		ledger:      ledger.New(),
		lowNotified: make(map[time.Duration]bool),
		listeners:   make(map[int]func(Event)),
	}
}

// OnEvent registers a listener for controller events and returns its
// unsubscribe function. Listeners are invoked synchronously while the
// controller holds its lock and must not block; the WebSocket handler
// buffers into its own channel.
func (c *Controller) OnEvent(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Begin starts the attempt, resuming from a stored snapshot when one
// exists. Re-invoking Begin for the same test while in progress is
// idempotent (the UI reloads without restarting the agent); a snapshot
// whose deadline has already passed routes straight to forced
// submission with reason "timeout" instead of re-entering IN_PROGRESS.
func (c *Controller) Begin(ctx context.Context, cfg model.SessionConfig, questions []model.Question) (*State, error) {
	snap, err := c.store.Load(cfg.TestID)
	if err != nil {
		// Resume is best-effort: a broken store means a fresh start.
		c.log.Warn().Err(err).Str("test_id", cfg.TestID).Msg("Snapshot load failed, starting fresh")
		snap = nil
	}

	c.mu.Lock()
	if c.session.Status != model.SessionStatusNotStarted {
		if c.cfg.TestID == cfg.TestID {
			st := c.stateLocked()
			c.mu.Unlock()
			return st, nil
		}
		c.mu.Unlock()
		return nil, ErrAttemptActive
	}

	c.cfg = cfg
	c.session.TestID = cfg.TestID
	c.session.AttemptID = cfg.AttemptID
	c.session.StudentID = cfg.StudentID
	c.session.Questions = questions
	c.session.Status = model.SessionStatusInProgress

	now := c.clk.Now()
	if snap != nil {
		c.resumed = true
		c.session.DeadlineMillis = snap.DeadlineMillis
		c.session.ViolationCount = snap.ViolationCount
		c.session.CurrentIndex = clampIndex(snap.CurrentIndex, len(questions))
		c.ledger.Restore(snap.Answers, snap.Visited, snap.MarkedForReview)
	} else {
		c.session.DeadlineMillis = now.UnixMilli() + int64(cfg.DurationMinutes)*60_000
		c.dirty = true
	}

	if err := c.store.SetExamActive(true); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set examActive flag")
	}

	// Snapshot restored past its deadline: no extra time, submit now.
	if c.remainingLocked(now) <= 0 {
		req := c.freezeLocked(true, model.SubmitReasonTimeout)
		c.mu.Unlock()
		if req != nil {
			c.deliver(ctx, req)
		}
		return c.State(), nil
	}

	st := c.stateLocked()
	resumed := c.resumed
	c.mu.Unlock()

	c.log.Info().
		Str("test_id", cfg.TestID).
		Str("attempt_id", cfg.AttemptID.String()).
		Bool("resumed", resumed).
		Int("duration_minutes", cfg.DurationMinutes).
		Msg("Attempt started")

	c.PersistSnapshot()
	return st, nil
}

// State returns the current externally visible state.
func (c *Controller) State() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// RecordAnswer overwrites the selection for a question with a single
// scalar option and marks the question visited.
func (c *Controller) RecordAnswer(key string, option int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if !c.knownKeyLocked(key) {
		return ErrUnknownQuestion
	}
	c.ledger.SetAnswer(key, option)
	c.dirty = true
	return nil
}

// ClearAnswer removes the selection for a question.
func (c *Controller) ClearAnswer(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if !c.knownKeyLocked(key) {
		return ErrUnknownQuestion
	}
	c.ledger.ClearAnswer(key)
	c.dirty = true
	return nil
}

// ToggleReview flips the marked-for-review flag for a question and
// returns its new state.
func (c *Controller) ToggleReview(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return false, err
	}
	if !c.knownKeyLocked(key) {
		return false, ErrUnknownQuestion
	}
	marked := c.ledger.ToggleReview(key)
	c.dirty = true
	return marked, nil
}

// Navigate moves the current question pointer. Out-of-bounds targets
// are a silent no-op. In linear mode (AllowNavigation false) only the
// immediately next question is reachable.
func (c *Controller) Navigate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(c.session.Questions) {
		return nil
	}
	if !c.cfg.AllowNavigation && index != c.session.CurrentIndex+1 && index != c.session.CurrentIndex {
		return nil
	}
	c.session.CurrentIndex = index
	c.ledger.Visit(c.session.Questions[index].Key)
	c.dirty = true
	return nil
}

// ReportViolation counts a proctoring violation. At the configured
// limit the attempt is force-submitted with reason "violation_limit".
// Violations arriving after the session left IN_PROGRESS are dropped.
func (c *Controller) ReportViolation(ctx context.Context, kind model.ViolationKind) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusInProgress {
		c.mu.Unlock()
		c.log.Debug().Str("kind", string(kind)).Msg("Dropping violation after session end")
		return
	}

	c.session.ViolationCount++
	c.dirty = true
	count := c.session.ViolationCount
	c.emitLocked(Event{Type: EventViolation, Kind: kind, ViolationCount: count})

	var req *model.SubmissionRequest
	if c.cfg.ViolationLimit > 0 && count >= c.cfg.ViolationLimit {
		req = c.freezeLocked(true, model.SubmitReasonViolationLimit)
	}
	c.mu.Unlock()

	c.log.Warn().Str("kind", string(kind)).Int("count", count).Msg("Violation recorded")
	if req != nil {
		c.deliver(ctx, req)
	}
}

// Tick recomputes remaining time from the absolute deadline, fires
// latched threshold notices, and force-submits at zero. Remaining time
// is never accumulated across ticks, so a suspended machine that wakes
// past the deadline submits on its very next tick.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusInProgress {
		c.mu.Unlock()
		return
	}

	remaining := c.remainingLocked(c.clk.Now())
	c.emitLocked(Event{Type: EventTick, RemainingMillis: remaining})

	if !c.halfNotified && remaining*2 <= c.cfg.Duration().Milliseconds() {
		c.halfNotified = true
		c.emitLocked(Event{Type: EventHalfTime, RemainingMillis: remaining})
	}
	for _, th := range lowTimeThresholds {
		if !c.lowNotified[th] && remaining <= th.Milliseconds() {
			c.lowNotified[th] = true
			c.emitLocked(Event{Type: EventLowTime, RemainingMillis: remaining, ThresholdMillis: th.Milliseconds()})
		}
	}

	var req *model.SubmissionRequest
	if remaining <= 0 {
		req = c.freezeLocked(true, model.SubmitReasonTimeout)
	}
	c.mu.Unlock()

	if req != nil {
		c.deliver(ctx, req)
	}
}

// RequestSubmit is the manual submit path. With RequireAllAnswered set,
// it rejects with a ValidationError listing the unanswered keys instead
// of freezing the session.
func (c *Controller) RequestSubmit(ctx context.Context) (*model.SubmissionResult, error) {
	c.mu.Lock()
	switch c.session.Status {
	case model.SessionStatusNotStarted:
		c.mu.Unlock()
		return nil, ErrNotStarted
	case model.SessionStatusSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	case model.SessionStatusSubmitted:
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case model.SessionStatusErrored:
		c.mu.Unlock()
		return nil, ErrNoFailedSubmission
	}

	if c.cfg.RequireAllAnswered {
		if missing := c.ledger.Unanswered(c.questionKeysLocked()); len(missing) > 0 {
			c.mu.Unlock()
			return nil, &ValidationError{Unanswered: missing}
		}
	}

	req := c.freezeLocked(false, model.SubmitReasonManual)
	c.mu.Unlock()
	if req == nil {
		return nil, ErrSubmitInProgress
	}
	return c.deliver(ctx, req)
}

// RetrySubmit re-enters submission after a failure, resending the
// frozen payload unchanged. Answers are never re-collected after
// freezing, so retries are payload-identical and safe to repeat.
func (c *Controller) RetrySubmit(ctx context.Context) (*model.SubmissionResult, error) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusErrored || c.frozen == nil {
		c.mu.Unlock()
		return nil, ErrNoFailedSubmission
	}
	c.session.Status = model.SessionStatusSubmitting
	req := c.frozen
	c.mu.Unlock()
	return c.deliver(ctx, req)
}

// PersistSnapshot writes the current snapshot if the attempt is in
// progress and has unsaved changes. Store failures are swallowed and
// logged: the session continues in memory and resume-on-reload is
// simply unavailable.
func (c *Controller) PersistSnapshot() {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusInProgress || !c.dirty {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.dirty = false
	testID := c.cfg.TestID
	c.mu.Unlock()

	if err := c.store.Save(testID, snap); err != nil {
		c.log.Warn().Err(err).Str("test_id", testID).Msg("Snapshot save failed, continuing in memory")
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
	}
}

// Ended reports whether the attempt has reached SUBMITTED or ERRORED.
// Periodic loops (ticker, autosaver) use it for cooperative teardown.
func (c *Controller) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status.Terminal()
}

// RunTicker drives Tick at the given interval until the context is
// cancelled or the session reaches a terminal status.
func (c *Controller) RunTicker(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.Ended() {
				return
			}
			c.Tick(ctx)
		}
	}
}

// ─── Internal ──────────────────────────────────────────────────────

// mutableLocked guards answer/navigation mutation: only IN_PROGRESS
// sessions accept edits.
func (c *Controller) mutableLocked() error {
	switch c.session.Status {
	case model.SessionStatusInProgress:
		return nil
	case model.SessionStatusNotStarted:
		return ErrNotStarted
	case model.SessionStatusSubmitting:
		return ErrSubmitInProgress
	case model.SessionStatusSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotInProgress
	}
}

func (c *Controller) knownKeyLocked(key string) bool {
	for i := range c.session.Questions {
		if c.session.Questions[i].Key == key {
			return true
		}
	}
	return false
}

func (c *Controller) questionKeysLocked() []string {
	keys := make([]string, len(c.session.Questions))
	for i := range c.session.Questions {
		keys[i] = c.session.Questions[i].Key
	}
	return keys
}

func (c *Controller) remainingLocked(now time.Time) int64 {
	remaining := c.session.DeadlineMillis - now.UnixMilli()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// freezeLocked performs the single guarded transition into SUBMITTING
// and builds the write-once payload. It returns nil when another caller
// already holds the guard; tick, violation and manual submit may race
// within the same instant and only the first proceeds.
func (c *Controller) freezeLocked(forced bool, reason model.SubmitReason) *model.SubmissionRequest {
	if c.submitGuard {
		return nil
	}
	c.submitGuard = true
	c.session.Status = model.SessionStatusSubmitting

	answers := make([]model.SubmittedAnswer, len(c.session.Questions))
	for i := range c.session.Questions {
		entry := model.SubmittedAnswer{QuestionIndex: i}
		if opt, ok := c.ledger.Answer(c.session.Questions[i].Key); ok {
			v := opt
			entry.SelectedAnswer = &v
		}
		answers[i] = entry
	}

	remaining := c.remainingLocked(c.clk.Now())
	elapsed := c.cfg.Duration() - time.Duration(remaining)*time.Millisecond

	c.frozen = &model.SubmissionRequest{
		TestID:           c.cfg.TestID,
		Answers:          answers,
		TimeTakenMinutes: int(math.Round(elapsed.Minutes())),
		Forced:           forced,
		Reason:           reason,
	}

	if forced {
		c.emitLocked(Event{Type: EventForcedSubmit, Reason: reason})
	}
	return c.frozen
}

// deliver performs the network submission on the frozen payload. The
// coordinator clears the stored snapshot on success before returning,
// so a later relaunch cannot resume-and-resubmit.
func (c *Controller) deliver(ctx context.Context, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	res, err := c.submitter.Submit(ctx, c.cfg.AttemptToken, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.session.Status = model.SessionStatusErrored
		c.clearActiveLocked()
		c.emitLocked(Event{Type: EventSubmitFailed, Error: err.Error()})
		c.log.Error().Err(err).Str("test_id", c.cfg.TestID).Msg("Submission failed")
		return nil, &SubmissionError{Err: err}
	}

	c.session.Status = model.SessionStatusSubmitted
	c.result = res
	c.clearActiveLocked()
	c.emitLocked(Event{Type: EventSubmitted, Result: res, Reason: req.Reason})
	c.log.Info().
		Str("test_id", c.cfg.TestID).
		Bool("forced", req.Forced).
		Str("reason", string(req.Reason)).
		Float64("score", res.Score).
		Msg("Attempt submitted")
	return res, nil
}

func (c *Controller) clearActiveLocked() {
	if err := c.store.SetExamActive(false); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear examActive flag")
	}
}

func (c *Controller) snapshotLocked() *model.Snapshot {
	return &model.Snapshot{
		Ver:             model.SnapshotSchemaVersion,
		Answers:         c.ledger.Answers(),
		CurrentIndex:    c.session.CurrentIndex,
		Visited:         c.ledger.VisitedKeys(),
		MarkedForReview: c.ledger.MarkedKeys(),
		DeadlineMillis:  c.session.DeadlineMillis,
		ViolationCount:  c.session.ViolationCount,
		SavedAtMillis:   c.clk.Now().UnixMilli(),
	}
}

func (c *Controller) stateLocked() *State {
	return &State{
		Status:          c.session.Status,
		TestID:          c.session.TestID,
		RemainingMillis: c.remainingLocked(c.clk.Now()),
		DeadlineMillis:  c.session.DeadlineMillis,
		CurrentIndex:    c.session.CurrentIndex,
		Answers:         c.ledger.Answers(),
		Visited:         c.ledger.VisitedKeys(),
		MarkedForReview: c.ledger.MarkedKeys(),
		ViolationCount:  c.session.ViolationCount,
		ViolationLimit:  c.cfg.ViolationLimit,
		DurationMinutes: c.cfg.DurationMinutes,
		RequireFS:       c.cfg.RequireFullscreen,
		AllowNavigation: c.cfg.AllowNavigation,
		Resumed:         c.resumed,
		Result:          c.result,
	}
}

func (c *Controller) emitLocked(ev Event) {
	for _, fn := range c.listeners {
		fn(ev)
	}
}

func clampIndex(idx, n int) int {
	if n == 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
