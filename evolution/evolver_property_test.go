package evolution

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/evoflow/evoflow/types"
)

// TestProperty_EvolvePrompt_AppendOnly checks that no sequence of evolution
// rounds ever rewrites prior prompt content, and that the Evolution Notes
// header appears at most once no matter how many rounds run.
func TestProperty_EvolvePrompt_AppendOnly(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prompt := rapid.StringMatching(`[A-Za-z ,.]{1,80}`).Draw(rt, "prompt")
		rounds := rapid.IntRange(1, 6).Draw(rt, "rounds")
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		current := prompt
		for round := 0; round < rounds; round++ {
			n := rapid.IntRange(0, 4).Draw(rt, "feedback_count")
			feedback := make([]types.Feedback, 0, n)
			for j := 0; j < n; j++ {
				vt := types.VoteTypeUp
				if rapid.Bool().Draw(rt, "down") {
					vt = types.VoteTypeDown
				}
				comment := ""
				if rapid.Bool().Draw(rt, "has_comment") {
					comment = rapid.StringMatching(`[a-z ]{1,30}`).Draw(rt, "comment")
				}
				feedback = append(feedback, types.Feedback{Comment: comment, VoteType: vt})
			}
			score := rapid.Float64Range(0, 1).Draw(rt, "score")

			next := EvolvePrompt(current, feedback, score, now.AddDate(0, 0, round))

			if !strings.HasPrefix(next, current) {
				rt.Fatalf("evolution rewrote prior content:\nbefore: %q\nafter: %q", current, next)
			}
			current = next
		}

		if got := strings.Count(current, notesHeader); got > 1 {
			rt.Fatalf("notes header appeared %d times", got)
		}
	})
}
