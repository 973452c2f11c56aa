// Package grading contains the pure computation core of the bulletin engine:
// score normalization, coefficient-weighted averages and the classification
// rules that derive a mention and a promotion decision. This package has no
// persistence concerns - every function is deterministic and replay-safe.
package grading

import (
	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORED EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// gradeScale is the reference scale all scores are normalized to.
var gradeScale = decimal.NewFromInt(20)

// passThreshold is the subject average below which a subject counts as failed.
var passThreshold = decimal.NewFromInt(10)

// ScoredEvaluation is one student's result for one evaluation, as read from
// the score store. Raw is nil when the student was absent without a score;
// such evaluations contribute nothing to an average (they are not zeros).
type ScoredEvaluation struct {
	StudentID    shared.StudentID
	SubjectID    shared.SubjectID
	EvaluationID string

	// Raw is the score as entered, out of Scale. Nil means no score.
	Raw *decimal.Decimal

	// Scale is the denominator the raw score is out of (e.g. 10, 20, 100).
	Scale decimal.Decimal

	// Weight is the evaluation coefficient within its subject.
	// A zero-valued Weight is treated as 1.
	Weight decimal.Decimal

	// Absent marks an absence; an absent evaluation never carries a score.
	Absent bool
}

// HasScore returns true when the evaluation carries a numeric score.
func (e ScoredEvaluation) HasScore() bool {
	return e.Raw != nil
}

// EffectiveWeight returns the evaluation weight, defaulting to 1.
func (e ScoredEvaluation) EffectiveWeight() decimal.Decimal {
	if e.Weight.IsZero() {
		return decimal.NewFromInt(1)
	}
	return e.Weight
}

// Validate checks the score-store invariants: a positive scale, a
// non-negative weight, and a present score within [0, Scale].
func (e ScoredEvaluation) Validate() error {
	if e.Scale.Sign() <= 0 {
		return shared.ErrInvalidScale
	}
	if e.Weight.Sign() < 0 {
		return shared.ErrNegativeWeight
	}
	if e.Raw != nil {
		if e.Raw.Sign() < 0 || e.Raw.GreaterThan(e.Scale) {
			return shared.ErrScoreOutOfScale
		}
	}
	return nil
}

// NormalizedOn20 converts the raw score to the /20 reference scale.
// A scale of exactly 20 skips the transform.
func (e ScoredEvaluation) NormalizedOn20() (decimal.Decimal, error) {
	if e.Raw == nil {
		return decimal.Zero, shared.NewDomainError("grading", "Normalize", shared.ErrInvalidInput, "evaluation has no score")
	}
	if e.Scale.Sign() <= 0 {
		return decimal.Zero, shared.ErrInvalidScale
	}
	if e.Scale.Equal(gradeScale) {
		return *e.Raw, nil
	}
	return e.Raw.Mul(gradeScale).Div(e.Scale), nil
}

// RoundGrade rounds a grade value to 2 decimal places using
// round-half-to-even. It is applied only where a value is persisted or
// displayed, never between intermediate steps.
func RoundGrade(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
