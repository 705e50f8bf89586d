// Package scoring is the HTTP client for the platform's scoring
// endpoint. The agent calls it exactly once per attempt, through the
// submission coordinator.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
)

// ErrDuplicateSubmission signals the platform already holds a result
// for this attempt. The server treats a second submission as a hard
// rejection, never an overwrite.
var ErrDuplicateSubmission = errors.New("attempt was already submitted")

// Client posts submissions to the platform.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a scoring client rooted at baseURL, e.g.
// https://exam.example.sch.id/api/v1.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "scoring_client").Logger(),
	}
}

// Submit posts the frozen payload and decodes the scoring summary.
// token is the platform-issued attempt token, replayed as the Bearer
// credential.
func (c *Client) Submit(ctx context.Context, token string, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	url := fmt.Sprintf("%s/tests/%s/submit", c.baseURL, req.TestID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result model.SubmissionResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode scoring result: %w", err)
		}
		return &result, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrDuplicateSubmission
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("test_id", req.TestID).
			Str("body", string(snippet)).
			Msg("Scoring endpoint rejected submission")
		return nil, fmt.Errorf("scoring endpoint returned %d", resp.StatusCode)
	}
}
