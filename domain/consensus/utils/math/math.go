package math

import (
	"math/bits"
	"sort"
)

// Median returns the median of values. For an even number of values it is
// the mean of the two middle ones. The median of nothing is 0.
func Median(values []uint64) uint64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]uint64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	middle := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[middle]
	}
	low, high := sorted[middle-1], sorted[middle]
	return low + (high-low)/2
}

// AddUint64 returns a+b and whether the sum overflowed.
func AddUint64(a, b uint64) (sum uint64, overflow bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry != 0
}

// SumUint64 returns the sum of values and whether it overflowed.
func SumUint64(values ...uint64) (sum uint64, overflow bool) {
	for _, value := range values {
		var carry bool
		sum, carry = AddUint64(sum, value)
		if carry {
			return 0, true
		}
	}
	return sum, false
}

// MinUint64 returns the smaller of a and b.
func MinUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// MaxUint64 returns the bigger of a and b.
func MaxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
