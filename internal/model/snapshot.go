package model

// SnapshotSchemaVersion is bumped whenever the persisted layout changes.
// Snapshots with an unknown version are treated as absent on load.
const SnapshotSchemaVersion = 1

// Snapshot is the serializable projection of a Session persisted for
// crash/reload recovery. Questions are deliberately excluded; the paper
// is re-fetched from the platform on resume.
type Snapshot struct {
	Ver             int            `json:"ver"`
	Answers         map[string]int `json:"answers"`
	CurrentIndex    int            `json:"current_index"`
	Visited         []string       `json:"visited"`
	MarkedForReview []string       `json:"marked_for_review"`
	// DeadlineMillis carries the original absolute deadline so a reload
	// never grants extra time.
	DeadlineMillis int64 `json:"deadline"`
	ViolationCount int   `json:"violation_count"`
	SavedAtMillis  int64 `json:"saved_at"`
}
