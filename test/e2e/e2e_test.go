package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/clock"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/handler"
	"github.com/stemsi/exstem-agent/internal/middleware"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/router"
	"github.com/stemsi/exstem-agent/internal/scoring"
	"github.com/stemsi/exstem-agent/internal/session"
	"github.com/stemsi/exstem-agent/internal/store"
	"github.com/stemsi/exstem-agent/internal/submit"
	"github.com/stemsi/exstem-agent/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenSecret    = "e2e-platform-secret"
	snapshotSecret = "e2e-snapshot-secret"
)

// fakePlatform is the scoring endpoint the agent submits to. It accepts
// exactly one submission per process and rejects repeats with 409, the
// way the real platform does.
type fakePlatform struct {
	srv       *httptest.Server
	submitted atomic.Int32
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	p := &fakePlatform{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/tests/") || !strings.HasSuffix(r.URL.Path, "/submit") {
			http.NotFound(w, r)
			return
		}
		if p.submitted.Add(1) > 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		var req model.SubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(model.SubmissionResult{
			Score: 66.7, TotalScore: 100, Percentage: 66.7, Passed: true,
			TimeTaken: req.TimeTakenMinutes,
		})
	}))
	t.Cleanup(p.srv.Close)
	return p
}

// agent is a full in-process agent stack behind a test HTTP server.
type agent struct {
	srv  *httptest.Server
	ctrl *session.Controller
	st   *store.Store
}

func startAgent(t *testing.T, storePath, platformURL string) *agent {
	t.Helper()
	validator.Setup()

	log := zerolog.Nop()
	st, err := store.Open(storePath, snapshotSecret, log)
	require.NoError(t, err)

	client := scoring.NewClient(platformURL+"/api/v1", 5*time.Second, log)
	coordinator := submit.NewCoordinator(client, st, log)
	ctrl := session.NewController(clock.System{}, st, coordinator, log)

	cfg := &config.Config{
		GinMode:            "test",
		AttemptTokenSecret: tokenSecret,
	}
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(ctrl, st),
		WS:      handler.NewWSHandler(ctrl, log, nil),
	}
	srv := httptest.NewServer(router.SetupRouter(handlers, cfg))
	t.Cleanup(srv.Close)

	return &agent{srv: srv, ctrl: ctrl, st: st}
}

func (a *agent) stop() {
	a.srv.Close()
	a.st.Close()
}

func signAttemptToken(t *testing.T, mutate func(*middleware.AttemptClaims)) string {
	t.Helper()
	claims := &middleware.AttemptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(3 * time.Hour)),
		},
		TestID:          "mtk-uts-2026",
		AttemptID:       uuid.New(),
		StudentID:       7,
		DurationMinutes: 45,
		ViolationLimit:  3,
		AllowNavigation: true,
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tokenSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func paperPayload() map[string]interface{} {
	return map[string]interface{}{
		"questions": []map[string]interface{}{
			{"key": "q1", "question_text": "2+2?", "order_num": 1},
			{"key": "q2", "question_text": "3*3?", "order_num": 2},
			{"key": "q3", "question_text": "9-4?", "order_num": 3},
		},
	}
}

func TestFullCandidateFlow(t *testing.T) {
	platform := newFakePlatform(t)
	a := startAgent(t, filepath.Join(t.TempDir(), "agent.db"), platform.srv.URL)
	token := signAttemptToken(t, nil)
	base := a.srv.URL

	// Health and the pre-exam navigation flag.
	resp, _ := doJSON(t, http.MethodGet, base+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env := doJSON(t, http.MethodGet, base+"/api/v1/attempt/active", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env["data"]), `"exam_active":false`)

	// No token → 401.
	resp, _ = doJSON(t, http.MethodGet, base+"/api/v1/attempt/state", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Begin.
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/begin", token, paperPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st session.State
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.Equal(t, model.SessionStatusInProgress, st.Status)
	assert.False(t, st.Resumed)
	assert.Greater(t, st.RemainingMillis, int64(44*60_000))

	// The navigation flag flips while the exam runs.
	_, env = doJSON(t, http.MethodGet, base+"/api/v1/attempt/active", "", nil)
	assert.Contains(t, string(env["data"]), `"exam_active":true`)

	// Answer, overwrite, one-element array normalization.
	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q1", "selected_answer": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q1", "selected_answer": []int{0}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q3", "selected_answer": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Multi-select payloads are rejected at the boundary.
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q2", "selected_answer": []int{1, 2}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(env["error"]), "VALIDATION_ERROR")

	// Unknown question → 404.
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q99", "selected_answer": 0})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(env["error"]), "UNKNOWN_QUESTION")

	// Review mark and navigation.
	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/review/q2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/navigate", token,
		map[string]interface{}{"index": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.Equal(t, 2, st.CurrentIndex)

	// Proctoring signal over the stream raises a violation notice.
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws/v1/attempt/stream?token=" + token
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "signal", "signal": "visibility_hidden"}))
	sawNotice, sawViolation := false, false
	for i := 0; i < 4 && !(sawNotice && sawViolation); i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]json.RawMessage
		require.NoError(t, conn.ReadJSON(&msg))
		switch string(msg["event"]) {
		case `"violation_notice"`:
			sawNotice = true
		case `"violation"`:
			sawViolation = true
		}
	}
	assert.True(t, sawNotice, "expected a violation notice on the stream")
	assert.True(t, sawViolation, "expected a violation event on the stream")

	_, env = doJSON(t, http.MethodGet, base+"/api/v1/attempt/state", token, nil)
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.Equal(t, 1, st.ViolationCount)

	// Submit.
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/submit", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result model.SubmissionResult
	require.NoError(t, json.Unmarshal(env["data"], &result))
	assert.True(t, result.Passed)

	// Terminal state: second submit rejected, answers frozen, flag off.
	resp, env = doJSON(t, http.MethodPost, base+"/api/v1/attempt/submit", token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(env["error"]), "ATTEMPT_COMPLETED")

	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q2", "selected_answer": 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	_, env = doJSON(t, http.MethodGet, base+"/api/v1/attempt/active", "", nil)
	assert.Contains(t, string(env["data"]), `"exam_active":false`)

	assert.Equal(t, int32(1), platform.submitted.Load())
}

func TestResumeAfterAgentRestart(t *testing.T) {
	platform := newFakePlatform(t)
	storePath := filepath.Join(t.TempDir(), "agent.db")
	token := signAttemptToken(t, nil)

	a1 := startAgent(t, storePath, platform.srv.URL)
	resp, _ := doJSON(t, http.MethodPost, a1.srv.URL+"/api/v1/attempt/begin", token, paperPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, a1.srv.URL+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q2", "selected_answer": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a1.ctrl.PersistSnapshot()
	a1.stop()

	// Kiosk relaunch: same store file, fresh process.
	a2 := startAgent(t, storePath, platform.srv.URL)
	resp, env := doJSON(t, http.MethodPost, a2.srv.URL+"/api/v1/attempt/begin", token, paperPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st session.State
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.True(t, st.Resumed)
	assert.Equal(t, model.SessionStatusInProgress, st.Status)
	assert.Equal(t, map[string]int{"q2": 3}, st.Answers)
}

func TestRequireAllAnsweredRejectsPartialSubmit(t *testing.T) {
	platform := newFakePlatform(t)
	a := startAgent(t, filepath.Join(t.TempDir(), "agent.db"), platform.srv.URL)
	token := signAttemptToken(t, func(cl *middleware.AttemptClaims) {
		cl.RequireAllAnswered = true
	})
	base := a.srv.URL

	resp, _ := doJSON(t, http.MethodPost, base+"/api/v1/attempt/begin", token, paperPayload())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, base+"/api/v1/attempt/answers", token,
		map[string]interface{}{"question_key": "q1", "selected_answer": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doJSON(t, http.MethodPost, base+"/api/v1/attempt/submit", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(env["error"]), "UNANSWERED_QUESTIONS")
	assert.Contains(t, string(env["error"]), "q2")
	assert.Contains(t, string(env["error"]), "q3")

	// The attempt keeps running after the rejection.
	_, env = doJSON(t, http.MethodGet, base+"/api/v1/attempt/state", token, nil)
	var st session.State
	require.NoError(t, json.Unmarshal(env["data"], &st))
	assert.Equal(t, model.SessionStatusInProgress, st.Status)

	assert.Equal(t, int32(0), platform.submitted.Load())
}
