package amount

import (
	"reflect"
	"testing"
)

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		amount         uint64
		expectedResult bool
	}{
		{0, false},
		{1, true},
		{9, true},
		{10, true},
		{11, false},
		{700000, true},
		{700001, false},
		{10000000000000000000, true},
	}
	for _, test := range tests {
		actualResult := IsCanonical(test.amount)
		if actualResult != test.expectedResult {
			t.Errorf("TestIsCanonical: %d: expected %t but got %t", test.amount, test.expectedResult, actualResult)
		}
	}
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		amount        uint64
		expectedParts []uint64
	}{
		{0, nil},
		{7, []uint64{7}},
		{1203, []uint64{3, 200, 1000}},
		{90000, []uint64{90000}},
	}
	for _, test := range tests {
		parts := Decompose(test.amount)
		if !reflect.DeepEqual(parts, test.expectedParts) {
			t.Errorf("TestDecompose: %d: expected %v but got %v", test.amount, test.expectedParts, parts)
		}
		if test.amount != 0 && !IsDecomposition(parts) {
			t.Errorf("TestDecompose: %d: %v is not a decomposition", test.amount, parts)
		}
	}
}

func TestIsDecomposition(t *testing.T) {
	tests := []struct {
		amounts        []uint64
		expectedResult bool
	}{
		{nil, false},
		{[]uint64{1000, 3, 200}, true},
		{[]uint64{100, 100}, false},
		{[]uint64{13}, false},
		{[]uint64{0, 5}, false},
		{[]uint64{18446744073709551615, 1}, false},
	}
	for _, test := range tests {
		actualResult := IsDecomposition(test.amounts)
		if actualResult != test.expectedResult {
			t.Errorf("TestIsDecomposition: %v: expected %t but got %t", test.amounts, test.expectedResult, actualResult)
		}
	}
}

func TestIsFusionTransaction(t *testing.T) {
	rules := FusionRules{
		MaxSize:            1000,
		MinInputCount:      4,
		MinInOutCountRatio: 2,
		DustThreshold:      10,
	}
	inputs := []uint64{100, 100, 100, 100, 20}
	outputs := []uint64{400, 20}

	tests := []struct {
		name           string
		inputs         []uint64
		outputs        []uint64
		size           uint64
		expectedResult bool
	}{
		{"valid", inputs, outputs, 500, true},
		{"too large", inputs, outputs, 1001, false},
		{"too few inputs", []uint64{100, 100, 200}, []uint64{400}, 500, false},
		{"bad ratio", inputs, []uint64{300, 100, 20}, 500, false},
		{"dust input", []uint64{100, 100, 100, 100, 5}, []uint64{400, 5}, 500, false},
		{"non canonical input", []uint64{100, 100, 100, 100, 25}, []uint64{400, 20, 5}, 500, false},
		{"fee paid", inputs, []uint64{400, 10}, 500, false},
		{"outputs not decomposed", inputs, []uint64{200, 220}, 500, false},
	}
	for _, test := range tests {
		actualResult := IsFusionTransaction(test.inputs, test.outputs, test.size, rules)
		if actualResult != test.expectedResult {
			t.Errorf("TestIsFusionTransaction: %s: expected %t but got %t", test.name, test.expectedResult, actualResult)
		}
	}
}
