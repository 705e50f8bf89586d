package model

// SubmitReason tells the platform why the attempt ended.
type SubmitReason string

const (
	SubmitReasonTimeout        SubmitReason = "timeout"
	SubmitReasonViolationLimit SubmitReason = "violation_limit"
	SubmitReasonManual         SubmitReason = "manual"
)

// SubmittedAnswer is one entry of the submission payload. SelectedAnswer
// is nil for questions the candidate never answered. The index is the
// question's position in the paper, not its key, matching what the
// scoring endpoint expects.
type SubmittedAnswer struct {
	QuestionIndex  int  `json:"question_index"`
	SelectedAnswer *int `json:"selected_answer"`
}

// SubmissionRequest is the write-once payload built when the session
// freezes. It is never recomputed: a retry after a network failure
// resends the identical payload.
type SubmissionRequest struct {
	TestID           string            `json:"-"`
	Answers          []SubmittedAnswer `json:"answers"`
	TimeTakenMinutes int               `json:"time_taken"`
	Forced           bool              `json:"forced"`
	Reason           SubmitReason      `json:"reason,omitempty"`
}

// SubmissionResult is the scoring summary returned by the platform.
type SubmissionResult struct {
	Score      float64 `json:"score"`
	TotalScore float64 `json:"total_score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	TimeTaken  int     `json:"time_taken"`
}
