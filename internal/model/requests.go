package model

import "encoding/json"

// BeginAttemptRequest carries the exam paper the UI fetched from the
// platform. The agent trusts paper content but not paper policy; all
// timing and proctoring rules come from the attempt token.
type BeginAttemptRequest struct {
	Questions []Question `json:"questions" binding:"required,min=1,dive"`
}

// AnswerRequest records a selection. SelectedAnswer is raw JSON so
// one-element arrays from older UI builds can be normalized to a
// scalar at the boundary.
type AnswerRequest struct {
	QuestionKey    string          `json:"question_key" binding:"required"`
	SelectedAnswer json.RawMessage `json:"selected_answer" binding:"required"`
}

// NavigateRequest moves the current question pointer.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required"`
}
