package session

import (
	"errors"
	"fmt"
	"strings"
)

// Guard errors returned by controller operations.
var (
	ErrNotStarted         = errors.New("attempt has not been started")
	ErrAttemptActive      = errors.New("another attempt is already active")
	ErrNotInProgress      = errors.New("attempt is not in progress")
	ErrSubmitInProgress   = errors.New("submission is already in progress")
	ErrAlreadySubmitted   = errors.New("attempt has already been submitted")
	ErrNoFailedSubmission = errors.New("no failed submission to retry")
	ErrUnknownQuestion    = errors.New("unknown question key")
)

// ValidationError rejects a manual submit while required questions are
// unanswered. It is recovered locally and never reaches the platform.
type ValidationError struct {
	Unanswered []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unanswered questions: %s", strings.Join(e.Unanswered, ", "))
}

// SubmissionError wraps a network or server failure during submit. The
// frozen payload survives it, so a retry resends identical data.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
