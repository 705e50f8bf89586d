package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-agent/internal/ledger"
	"github.com/stemsi/exstem-agent/internal/middleware"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/response"
	"github.com/stemsi/exstem-agent/internal/scoring"
	"github.com/stemsi/exstem-agent/internal/session"
	"github.com/stemsi/exstem-agent/internal/validator"
)

// ActiveFlagReader exposes the process-wide examActive flag to the
// navigation endpoint without handing the handler the whole store.
type ActiveFlagReader interface {
	ExamActive() (bool, error)
}

// AttemptHandler exposes the session controller to the exam UI.
type AttemptHandler struct {
	ctrl  *session.Controller
	flags ActiveFlagReader
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(ctrl *session.Controller, flags ActiveFlagReader) *AttemptHandler {
	return &AttemptHandler{ctrl: ctrl, flags: flags}
}

// Begin godoc
// POST /api/v1/attempt/begin
// Starts the attempt, resuming from a stored snapshot when one exists.
// The UI sends the paper it fetched from the platform; all policy comes
// from the attempt token.
func (h *AttemptHandler) Begin(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.BeginAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cfg := claims.SessionConfig(middleware.GetAttemptToken(c))
	state, err := h.ctrl.Begin(c.Request.Context(), cfg, req.Questions)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// State godoc
// GET /api/v1/attempt/state
// Returns the full session state. Covers UI reload: answered questions,
// review marks, remaining time and the scoring result if present.
func (h *AttemptHandler) State(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}
	response.Success(c, http.StatusOK, h.ctrl.State())
}

// Answer godoc
// POST /api/v1/attempt/answers
// Records a selection, overwriting any prior answer for that question.
func (h *AttemptHandler) Answer(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	option, err := ledger.NormalizeOption(req.SelectedAnswer)
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"selected_answer": err.Error()})
		return
	}

	if err := h.ctrl.RecordAnswer(req.QuestionKey, option); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// ClearAnswer godoc
// DELETE /api/v1/attempt/answers/:key
func (h *AttemptHandler) ClearAnswer(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}
	if err := h.ctrl.ClearAnswer(c.Param("key")); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "cleared"})
}

// ToggleReview godoc
// POST /api/v1/attempt/review/:key
func (h *AttemptHandler) ToggleReview(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}
	marked, err := h.ctrl.ToggleReview(c.Param("key"))
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": marked})
}

// Navigate godoc
// POST /api/v1/attempt/navigate
// Moves the current question pointer; out-of-bounds targets no-op.
func (h *AttemptHandler) Navigate(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.ctrl.Navigate(*req.Index); err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.ctrl.State())
}

// Submit godoc
// POST /api/v1/attempt/submit
// The manual submit path. Rejects with the unanswered set when the test
// requires every question answered.
func (h *AttemptHandler) Submit(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}
	result, err := h.ctrl.RequestSubmit(c.Request.Context())
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Retry godoc
// POST /api/v1/attempt/submit/retry
// Re-sends the frozen payload after a failed submission.
func (h *AttemptHandler) Retry(c *gin.Context) {
	if !h.requireMatchingTest(c) {
		return
	}
	result, err := h.ctrl.RetrySubmit(c.Request.Context())
	if err != nil {
		h.failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Active godoc
// GET /api/v1/attempt/active
// Read-only examActive flag for the external navigation UI. No token:
// the shell that restricts navigation is not part of the exam UI.
func (h *AttemptHandler) Active(c *gin.Context) {
	active, err := h.flags.ExamActive()
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_active": active})
}

// requireMatchingTest rejects calls whose attempt token names a
// different test than the running session.
func (h *AttemptHandler) requireMatchingTest(c *gin.Context) bool {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return false
	}
	st := h.ctrl.State()
	if st.Status != model.SessionStatusNotStarted && st.TestID != claims.TestID {
		response.Fail(c, http.StatusConflict, response.ErrTestMismatch)
		return false
	}
	return true
}

// failFromError maps controller errors onto API error codes.
func (h *AttemptHandler) failFromError(c *gin.Context, err error) {
	var ve *session.ValidationError
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve.Unanswered))
		for _, key := range ve.Unanswered {
			fields[key] = "belum dijawab"
		}
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrUnanswered, fields)
		return
	}

	var se *session.SubmissionError
	if errors.As(err, &se) {
		if errors.Is(err, scoring.ErrDuplicateSubmission) {
			response.Fail(c, http.StatusConflict, response.ErrDuplicateSubmission)
			return
		}
		response.Fail(c, http.StatusBadGateway, response.ErrSubmitFailed)
		return
	}

	switch {
	case errors.Is(err, session.ErrNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotStarted)
	case errors.Is(err, session.ErrAttemptActive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
	case errors.Is(err, session.ErrSubmitInProgress):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	case errors.Is(err, session.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, session.ErrNoFailedSubmission):
		response.Fail(c, http.StatusConflict, response.ErrNoFailedSubmission)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrUnknownQuestion)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
