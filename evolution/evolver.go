package evolution

import (
	"fmt"
	"strings"
	"time"

	"github.com/evoflow/evoflow/types"
)

// notesHeader introduces the feedback history appended to a prompt. It is
// written exactly once per prompt; entries accumulate under it.
const notesHeader = "## Evolution Notes"

// Guidance lines selected by thresholding the performance score.
const (
	guidancePoor = "This configuration needs significant revision based on feedback."
	guidanceFair = "This configuration is adequate but could improve based on feedback."
	guidanceGood = "This configuration is performing well; apply minor optimizations only."
)

// EvolvePrompt synthesises the next configuration from the current one by
// appending a dated feedback section. The history is strictly append-only:
// prior content is never rewritten, so the prompt doubles as an audit
// trail of why each revision happened.
//
// Feedback without a comment carries no usable signal for synthesis; if no
// commented feedback exists on either side, the prompt is returned
// unchanged. Evolution without signal is a no-op, not a failure.
func EvolvePrompt(current string, feedback []types.Feedback, score float64, now time.Time) string {
	if len(feedback) == 0 {
		return current
	}

	var positive, negative []string
	for _, f := range feedback {
		if f.Comment == "" {
			continue
		}
		switch f.VoteType {
		case types.VoteTypeUp:
			positive = append(positive, f.Comment)
		case types.VoteTypeDown:
			negative = append(negative, f.Comment)
		}
	}
	if len(positive) == 0 && len(negative) == 0 {
		return current
	}

	var b strings.Builder
	b.WriteString(current)

	if !strings.Contains(current, notesHeader) {
		b.WriteString("\n\n")
		b.WriteString(notesHeader)
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n### %s (performance score: %.2f)\n", now.Format("2006-01-02"), score))

	if len(positive) > 0 {
		b.WriteString("\nPositive Feedback:\n")
		for _, c := range positive {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	if len(negative) > 0 {
		b.WriteString("\nAreas for Improvement:\n")
		for _, c := range negative {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(guidance(score))
	b.WriteString("\n")

	return b.String()
}

func guidance(score float64) string {
	switch {
	case score < 0.3:
		return guidancePoor
	case score < 0.7:
		return guidanceFair
	default:
		return guidanceGood
	}
}
