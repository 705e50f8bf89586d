package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAnswerOverwrites(t *testing.T) {
	l := New()

	l.SetAnswer("q1", 2)
	l.SetAnswer("q1", 0)

	opt, ok := l.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, 0, opt)
	assert.Equal(t, []string{"q1"}, l.VisitedKeys())
}

func TestClearAnswer(t *testing.T) {
	l := New()

	l.SetAnswer("q1", 1)
	l.ClearAnswer("q1")

	_, ok := l.Answer("q1")
	assert.False(t, ok)
	// Clearing keeps the visited mark; the candidate still saw it.
	assert.Equal(t, []string{"q1"}, l.VisitedKeys())

	// Clearing an unanswered question is a no-op.
	l.ClearAnswer("q9")
}

func TestToggleReview(t *testing.T) {
	l := New()

	assert.True(t, l.ToggleReview("q1"))
	assert.Equal(t, []string{"q1"}, l.MarkedKeys())
	assert.False(t, l.ToggleReview("q1"))
	assert.Empty(t, l.MarkedKeys())
}

func TestUnansweredPreservesPaperOrder(t *testing.T) {
	l := New()
	paper := []string{"q3", "q1", "q2"}

	l.SetAnswer("q1", 0)

	assert.Equal(t, []string{"q3", "q2"}, l.Unanswered(paper))

	l.SetAnswer("q3", 1)
	l.SetAnswer("q2", 1)
	assert.Empty(t, l.Unanswered(paper))
}

func TestAnswersReturnsCopy(t *testing.T) {
	l := New()
	l.SetAnswer("q1", 1)

	got := l.Answers()
	got["q1"] = 99

	opt, _ := l.Answer("q1")
	assert.Equal(t, 1, opt)
}

func TestRestore(t *testing.T) {
	l := New()
	l.SetAnswer("stale", 5)

	l.Restore(map[string]int{"q1": 2}, []string{"q1", "q2"}, []string{"q2"})

	opt, ok := l.Answer("q1")
	require.True(t, ok)
	assert.Equal(t, 2, opt)
	_, ok = l.Answer("stale")
	assert.False(t, ok)
	assert.Equal(t, []string{"q1", "q2"}, l.VisitedKeys())
	assert.Equal(t, []string{"q2"}, l.MarkedKeys())
}

func TestNormalizeOption(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "scalar", raw: `2`, want: 2},
		{name: "zero", raw: `0`, want: 0},
		{name: "one element array", raw: `[3]`, want: 3},
		{name: "empty array", raw: `[]`, wantErr: true},
		{name: "multi element array", raw: `[1,2]`, wantErr: true},
		{name: "negative scalar", raw: `-1`, wantErr: true},
		{name: "negative in array", raw: `[-2]`, wantErr: true},
		{name: "string", raw: `"a"`, wantErr: true},
		{name: "object", raw: `{"a":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOption(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
