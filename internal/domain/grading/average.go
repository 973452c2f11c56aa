package grading

import (
	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT AVERAGE
// ══════════════════════════════════════════════════════════════════════════════

// SubjectAverage reduces one subject's scored evaluations into a single
// weight-weighted average on the /20 scale.
//
// Evaluations without a score (absences) are filtered out, not counted as
// zero. The second return value is false when no evaluation carries a score:
// callers must treat "no data" as "subject excluded from aggregation", never
// as a zero grade. The returned value is unrounded; apply RoundGrade at the
// persistence boundary.
func SubjectAverage(scores []ScoredEvaluation) (decimal.Decimal, bool, error) {
	totalPoints := decimal.Zero
	totalWeight := decimal.Zero

	for _, ev := range scores {
		if err := ev.Validate(); err != nil {
			return decimal.Zero, false, err
		}
		if !ev.HasScore() {
			continue
		}
		normalized, err := ev.NormalizedOn20()
		if err != nil {
			return decimal.Zero, false, err
		}
		weight := ev.EffectiveWeight()
		totalPoints = totalPoints.Add(normalized.Mul(weight))
		totalWeight = totalWeight.Add(weight)
	}

	if totalWeight.Sign() <= 0 {
		return decimal.Zero, false, nil
	}
	return totalPoints.Div(totalWeight), true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OVERALL AVERAGE
// ══════════════════════════════════════════════════════════════════════════════

// SubjectResult pairs a subject's computed average with its coefficient.
// HasData is false for subjects with no scored evaluation this term; they
// stay in the breakdown for transparency but are excluded from weighting.
type SubjectResult struct {
	SubjectID   shared.SubjectID
	Average     decimal.Decimal
	HasData     bool
	Coefficient decimal.Decimal
}

// OverallAverage reduces a student's subject results into one
// coefficient-weighted overall average for the term.
//
// Subjects without data are excluded. A subject with coefficient 0 is
// excluded from the denominator (it never causes a division by zero) while
// remaining visible in the breakdown. The second return value is false when
// no subject contributes, i.e. zero subjects with data or a zero coefficient
// sum. The returned value is unrounded.
func OverallAverage(results []SubjectResult) (decimal.Decimal, bool, error) {
	totalPoints := decimal.Zero
	totalCoeff := decimal.Zero

	for _, res := range results {
		if res.Coefficient.Sign() < 0 {
			return decimal.Zero, false, shared.ErrNegativeCoefficient
		}
		if !res.HasData || res.Coefficient.IsZero() {
			continue
		}
		totalPoints = totalPoints.Add(res.Average.Mul(res.Coefficient))
		totalCoeff = totalCoeff.Add(res.Coefficient)
	}

	if totalCoeff.Sign() <= 0 {
		return decimal.Zero, false, nil
	}
	return totalPoints.Div(totalCoeff), true, nil
}

// FailureCount returns the number of subjects whose average is strictly
// below 10/20. Subjects without data are not failures.
func FailureCount(results []SubjectResult) int {
	count := 0
	for _, res := range results {
		if res.HasData && res.Average.LessThan(passThreshold) {
			count++
		}
	}
	return count
}
