package session

import "github.com/stemsi/exstem-agent/internal/model"

// EventType enumerates controller events pushed to the UI stream.
type EventType string

const (
	EventTick         EventType = "tick"
	EventHalfTime     EventType = "half_time"
	EventLowTime      EventType = "low_time"
	EventViolation    EventType = "violation"
	EventForcedSubmit EventType = "forced_submit"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// Event is a controller-side notification. Only the fields relevant to
// the Type are populated.
type Event struct {
	Type            EventType               `json:"event"`
	RemainingMillis int64                   `json:"remaining_ms,omitempty"`
	ThresholdMillis int64                   `json:"threshold_ms,omitempty"`
	Kind            model.ViolationKind     `json:"kind,omitempty"`
	ViolationCount  int                     `json:"violation_count,omitempty"`
	Reason          model.SubmitReason      `json:"reason,omitempty"`
	Result          *model.SubmissionResult `json:"result,omitempty"`
	Error           string                  `json:"error,omitempty"`
}
