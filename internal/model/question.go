package model

import "encoding/json"

// Question is a single exam question as delivered to the agent by the UI.
// The paper is fetched from the platform by the UI at start/resume; the
// agent never mutates it and never sees correct answers.
type Question struct {
	Key          string          `json:"key" binding:"required"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}
