// Package submit guarantees the at-most-once handoff of a frozen
// attempt to the platform. The session controller's guard flag ensures
// only one caller ever reaches the coordinator per attempt; the
// coordinator owns payload delivery and post-success cleanup.
package submit

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
)

// ScoringClient delivers the payload. Implemented by scoring.Client.
type ScoringClient interface {
	Submit(ctx context.Context, token string, req *model.SubmissionRequest) (*model.SubmissionResult, error)
}

// SnapshotClearer removes the stored snapshot after a confirmed submit,
// so a relaunched agent cannot resume-and-resubmit a graded attempt.
type SnapshotClearer interface {
	Clear(testID string) error
}

// Coordinator formats, delivers and finalizes a submission.
type Coordinator struct {
	client ScoringClient
	store  SnapshotClearer
	log    zerolog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(client ScoringClient, store SnapshotClearer, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		store:  store,
		log:    log.With().Str("component", "submit").Logger(),
	}
}

// Submit sends the frozen payload once. On a confirmed result the
// stored snapshot is cleared before returning; a clear failure is
// logged but does not undo a successful submission. On failure the
// snapshot stays put and the caller may retry with the same payload.
func (co *Coordinator) Submit(ctx context.Context, token string, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	res, err := co.client.Submit(ctx, token, req)
	if err != nil {
		return nil, err
	}

	if err := co.store.Clear(req.TestID); err != nil {
		co.log.Warn().Err(err).Str("test_id", req.TestID).Msg("Failed to clear snapshot after submit")
	}
	return res, nil
}
