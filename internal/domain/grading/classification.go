package grading

import "github.com/shopspring/decimal"

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION ENGINE
// Maps an overall average and a failure count to a qualitative mention and a
// promotion decision. Pure function of its inputs, no persisted state.
// ══════════════════════════════════════════════════════════════════════════════

// Mention is the qualitative label derived from the overall average.
type Mention string

// Mentions, from best to worst. Undetermined is used when the student has no
// overall average yet.
const (
	MentionExcellent    Mention = "EXCELLENT"
	MentionVeryGood     Mention = "VERY_GOOD"
	MentionGood         Mention = "GOOD"
	MentionFairlyGood   Mention = "FAIRLY_GOOD"
	MentionPassable     Mention = "PASSABLE"
	MentionInsufficient Mention = "INSUFFICIENT"
	MentionUndetermined Mention = "UNDETERMINED"
)

// Decision is the pass/remediation/repeat outcome for the term.
type Decision string

// Decisions. Undetermined is used when there is no overall average to decide on.
const (
	DecisionPromote      Decision = "PROMOTE"
	DecisionRemediation  Decision = "REMEDIATION"
	DecisionRepeat       Decision = "REPEAT"
	DecisionUndetermined Decision = "UNDETERMINED"
)

// Mention thresholds on the /20 scale, closed lower bounds, checked in order.
var mentionThresholds = []struct {
	floor   decimal.Decimal
	mention Mention
}{
	{decimal.NewFromInt(18), MentionExcellent},
	{decimal.NewFromInt(16), MentionVeryGood},
	{decimal.NewFromInt(14), MentionGood},
	{decimal.NewFromInt(12), MentionFairlyGood},
	{decimal.NewFromInt(10), MentionPassable},
}

// remediationFailures is the failure count above which a passing average
// still sends the student to remediation.
const remediationFailures = 2

// repeatPercent is the percentage of the 20-point scale below which the
// decision is REPEAT.
var repeatPercent = decimal.NewFromInt(50)

var hundred = decimal.NewFromInt(100)

// Classify derives the mention and the promotion decision for a term.
//
// hasAverage is false when the student has no overall average (no scored
// subject yet); both outputs are then UNDETERMINED. failures is the count of
// subjects with an average strictly below 10/20.
//
// Decision rule, on pct = average/20*100: pct < 50 repeats; pct >= 50 with
// more than two failing subjects goes to remediation; everything else is
// promoted.
func Classify(average decimal.Decimal, hasAverage bool, failures int) (Mention, Decision) {
	if !hasAverage {
		return MentionUndetermined, DecisionUndetermined
	}

	mention := MentionInsufficient
	for _, t := range mentionThresholds {
		if average.GreaterThanOrEqual(t.floor) {
			mention = t.mention
			break
		}
	}

	pct := average.Div(gradeScale).Mul(hundred)
	var decision Decision
	switch {
	case pct.LessThan(repeatPercent):
		decision = DecisionRepeat
	case failures > remediationFailures:
		decision = DecisionRemediation
	default:
		decision = DecisionPromote
	}

	return mention, decision
}
