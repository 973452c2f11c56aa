package grading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultAppreciation generates the general-comment text for a bulletin when
// the homeroom teacher has not written one. The wording follows the same
// average bands as the mentions.
func DefaultAppreciation(displayName string, average decimal.Decimal, hasAverage bool, failures int) string {
	if !hasAverage {
		return fmt.Sprintf("No scored evaluation recorded for %s this term.", displayName)
	}

	sixteen := decimal.NewFromInt(16)
	fourteen := decimal.NewFromInt(14)
	twelve := decimal.NewFromInt(12)
	ten := decimal.NewFromInt(10)

	switch {
	case average.GreaterThanOrEqual(sixteen):
		return fmt.Sprintf("Excellent work. %s shows great consistency and an excellent level across all subjects. Keep it up.", displayName)
	case average.GreaterThanOrEqual(fourteen):
		return fmt.Sprintf("Very good work. %s is progressing well and shows strong abilities. A little more effort will reach excellence.", displayName)
	case average.GreaterThanOrEqual(twelve):
		return fmt.Sprintf("Good work. %s is making good progress. Additional effort will further improve the results.", displayName)
	case average.GreaterThanOrEqual(ten):
		if failures > 0 {
			return fmt.Sprintf("Passable results for %s. Significant effort is needed in some subjects to raise the overall level.", displayName)
		}
		return fmt.Sprintf("Passable results for %s. Additional effort will improve the results across all subjects.", displayName)
	default:
		return fmt.Sprintf("Insufficient results for %s. More regular work and significant effort are needed to progress.", displayName)
	}
}
