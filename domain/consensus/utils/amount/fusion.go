package amount

import "github.com/cnchain/cnd/domain/consensus/utils/math"

// FusionRules are the limits a transaction must respect to be a fusion
// transaction, which merges many small outputs into few large ones and is
// exempt from fees.
type FusionRules struct {
	MaxSize            uint64
	MinInputCount      int
	MinInOutCountRatio int
	DustThreshold      uint64
}

// IsFusionTransaction returns whether a transaction with the given input
// and output amounts and blob size satisfies rules.
func IsFusionTransaction(inputAmounts []uint64, outputAmounts []uint64, size uint64, rules FusionRules) bool {
	if size > rules.MaxSize {
		return false
	}
	if len(inputAmounts) < rules.MinInputCount {
		return false
	}
	if len(inputAmounts) < len(outputAmounts)*rules.MinInOutCountRatio {
		return false
	}

	for _, inputAmount := range inputAmounts {
		if !isApplicableInFusionInput(inputAmount, rules.DustThreshold) {
			return false
		}
	}

	inputSum, overflow := math.SumUint64(inputAmounts...)
	if overflow {
		return false
	}
	outputSum, overflow := math.SumUint64(outputAmounts...)
	if overflow || outputSum != inputSum {
		return false
	}
	return IsDecomposition(outputAmounts)
}

func isApplicableInFusionInput(amount uint64, dustThreshold uint64) bool {
	return amount >= dustThreshold && IsCanonical(amount)
}
