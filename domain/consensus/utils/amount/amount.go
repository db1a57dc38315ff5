// Package amount implements the rules on how amounts are split into
// outputs.
package amount

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/utils/math"
)

// IsCanonical returns whether amount is a single non zero decimal digit
// followed by zeros.
func IsCanonical(amount uint64) bool {
	if amount == 0 {
		return false
	}
	for amount%10 == 0 {
		amount /= 10
	}
	return amount < 10
}

// Decompose splits amount into its canonical parts, one per non zero
// decimal digit, smallest first.
func Decompose(amount uint64) []uint64 {
	var parts []uint64
	order := uint64(1)
	for amount > 0 {
		digit := amount % 10
		if digit != 0 {
			parts = append(parts, digit*order)
		}
		amount /= 10
		order *= 10
	}
	return parts
}

// IsDecomposition returns whether amounts, in any order, are exactly the
// canonical decomposition of their sum.
func IsDecomposition(amounts []uint64) bool {
	sum, overflow := math.SumUint64(amounts...)
	if overflow || sum == 0 {
		return false
	}
	expected := Decompose(sum)
	if len(expected) != len(amounts) {
		return false
	}

	sorted := make([]uint64, len(amounts))
	copy(sorted, amounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := range sorted {
		if sorted[i] != expected[i] {
			return false
		}
	}
	return true
}
