// Package ledger holds the in-memory answer state of one attempt:
// the answers map plus the visited and marked-for-review sets.
// It is a pure mutation surface used only by the session controller;
// all policy (status guards, persistence triggers) lives there.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Ledger tracks answers by question key. Answers are always a single
// scalar option index; multi-select never reaches this layer.
type Ledger struct {
	answers map[string]int
	visited map[string]struct{}
	marked  map[string]struct{}
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{
		answers: make(map[string]int),
		visited: make(map[string]struct{}),
		marked:  make(map[string]struct{}),
	}
}

// SetAnswer records the selected option for a question, overwriting any
// prior selection, and marks the question visited.
func (l *Ledger) SetAnswer(key string, option int) {
	l.answers[key] = option
	l.visited[key] = struct{}{}
}

// ClearAnswer removes the selection for a question. Clearing an
// unanswered question is a no-op.
func (l *Ledger) ClearAnswer(key string) {
	delete(l.answers, key)
}

// Answer returns the selected option for a question, if any.
func (l *Ledger) Answer(key string) (int, bool) {
	opt, ok := l.answers[key]
	return opt, ok
}

// Visit marks a question as displayed to the candidate.
func (l *Ledger) Visit(key string) {
	l.visited[key] = struct{}{}
}

// ToggleReview flips the marked-for-review flag and returns the new state.
func (l *Ledger) ToggleReview(key string) bool {
	if _, ok := l.marked[key]; ok {
		delete(l.marked, key)
		return false
	}
	l.marked[key] = struct{}{}
	return true
}

// Unanswered returns the keys from the given paper order that have no
// recorded answer, preserving paper order.
func (l *Ledger) Unanswered(keys []string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := l.answers[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// Answers returns a copy of the answers map.
func (l *Ledger) Answers() map[string]int {
	out := make(map[string]int, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

// VisitedKeys returns the visited set as a sorted slice.
func (l *Ledger) VisitedKeys() []string {
	return sortedKeys(l.visited)
}

// MarkedKeys returns the marked-for-review set as a sorted slice.
func (l *Ledger) MarkedKeys() []string {
	return sortedKeys(l.marked)
}

// Restore replaces the ledger contents from persisted snapshot fields.
func (l *Ledger) Restore(answers map[string]int, visited, marked []string) {
	l.answers = make(map[string]int, len(answers))
	for k, v := range answers {
		l.answers[k] = v
	}
	l.visited = make(map[string]struct{}, len(visited))
	for _, k := range visited {
		l.visited[k] = struct{}{}
	}
	l.marked = make(map[string]struct{}, len(marked))
	for _, k := range marked {
		l.marked[k] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeOption decodes a selected answer that may arrive either as a
// scalar index or as a one-element array (an artifact of older UI
// builds) into a single scalar. Anything else is rejected.
func NormalizeOption(raw json.RawMessage) (int, error) {
	var scalar int
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return validateOption(scalar)
	}

	var arr []int
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) != 1 {
			return 0, fmt.Errorf("expected a single selected option, got %d", len(arr))
		}
		return validateOption(arr[0])
	}

	return 0, fmt.Errorf("selected answer must be an option index")
}

func validateOption(opt int) (int, error) {
	if opt < 0 {
		return 0, fmt.Errorf("option index must not be negative, got %d", opt)
	}
	return opt, nil
}
