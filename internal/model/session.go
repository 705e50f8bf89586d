package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the states of an exam attempt on the agent.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
	SessionStatusErrored    SessionStatus = "ERRORED"
)

// Terminal reports whether no further answer mutation is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusErrored
}

// Session is the in-memory state of one proctored exam attempt.
// Status transitions are monotonic:
// NOT_STARTED → IN_PROGRESS → SUBMITTING → {SUBMITTED, ERRORED},
// with ERRORED → SUBMITTING allowed for a manual retry.
type Session struct {
	TestID    string     `json:"test_id"`
	AttemptID uuid.UUID  `json:"attempt_id"`
	StudentID int        `json:"student_id"`
	Questions []Question `json:"questions"`
	// DeadlineMillis is absolute (epoch millis). It is computed once at
	// start/resume and never recomputed from a decrementing counter;
	// remaining time is always derived as deadline minus now.
	DeadlineMillis int64         `json:"deadline"`
	ViolationCount int           `json:"violation_count"`
	Status         SessionStatus `json:"status"`
	CurrentIndex   int           `json:"current_index"`
}

// SessionConfig parameterizes a single attempt. It is derived from the
// attempt token claims issued by the platform, not from local input.
type SessionConfig struct {
	TestID             string
	AttemptID          uuid.UUID
	StudentID          int
	DurationMinutes    int
	ViolationLimit     int
	RequireAllAnswered bool
	RequireFullscreen  bool
	AllowNavigation    bool
	// AttemptToken is the raw platform-issued token, replayed as the
	// Bearer credential on the submission call.
	AttemptToken string
}

// Duration returns the attempt duration as a time.Duration.
func (c SessionConfig) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}
