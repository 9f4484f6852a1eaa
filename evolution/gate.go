package evolution

import (
	"time"

	"github.com/evoflow/evoflow/types"
)

// Thresholds parameterise the evolution gate. Defaults mirror the
// established policy; changing them changes business behaviour.
type Thresholds struct {
	// MinAge guards young versions from noisy early data.
	MinAge time.Duration `yaml:"min_age" json:"min_age"`
	// MinVotes is the sample floor for the vote-ratio rule.
	MinVotes int64 `yaml:"min_votes" json:"min_votes"`
	// MaxDownvoteRatio triggers evolution when exceeded.
	MaxDownvoteRatio float64 `yaml:"max_downvote_ratio" json:"max_downvote_ratio"`
	// XPFloor is the minimum accumulated reward before error signals count.
	XPFloor int64 `yaml:"xp_floor" json:"xp_floor"`
	// MaxFailures is the failure-record count above which evolution fires.
	MaxFailures int64 `yaml:"max_failures" json:"max_failures"`
}

// DefaultThresholds returns the established gate policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAge:           7 * 24 * time.Hour,
		MinVotes:         10,
		MaxDownvoteRatio: 0.3,
		XPFloor:          100,
		MaxFailures:      5,
	}
}

// Decision is the gate's verdict.
type Decision struct {
	Needed bool   `json:"needed"`
	Reason string `json:"reason,omitempty"`
}

// Gate decision reasons.
const (
	ReasonTooNew             = "too new to evaluate"
	ReasonNegativeFeedback   = "excessive negative feedback"
	ReasonInsufficientSignal = "insufficient signal"
	ReasonExecutionErrors    = "excessive execution errors"
)

// ShouldEvolve is a pure decision function evaluated as an ordered policy
// chain: first matching rule wins. The ordering deliberately favours
// stability over reactivity for young and low-traffic versions; the age
// and XP-floor rules short-circuit everything below them, no matter how
// bad the remaining signals look.
func (t Thresholds) ShouldEvolve(version *types.AgentVersion, perf Performance, votes VoteStats, now time.Time) Decision {
	// 1. Age gate: short-circuits all other rules to avoid thrashing on
	// noisy early data.
	if now.Sub(version.CreatedAt) < t.MinAge {
		return Decision{Needed: false, Reason: ReasonTooNew}
	}

	// 2. Vote-ratio gate.
	if votes.Total >= t.MinVotes && votes.Ratio > t.MaxDownvoteRatio {
		return Decision{Needed: true, Reason: ReasonNegativeFeedback}
	}

	// 3. XP floor: short-circuits the error rule below.
	if version.XP < t.XPFloor {
		return Decision{Needed: false, Reason: ReasonInsufficientSignal}
	}

	// 4. Error-count gate.
	if perf.Failures > t.MaxFailures {
		return Decision{Needed: true, Reason: ReasonExecutionErrors}
	}

	return Decision{Needed: false}
}
