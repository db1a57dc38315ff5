package transactionvalidator

import (
	"testing"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/devoracle"
	"github.com/pkg/errors"
)

func TestRingSizeFollowsRequiredMixin(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, devoracle.New())
	upgradeSize := params.MixinUpgradeSize

	singleOutput := []uint32{4}
	twoOutputs := []uint32{0, 1}
	threeOutputs := []uint32{0, 1, 2}
	fourOutputs := []uint32{0, 1, 2, 3}

	tests := []struct {
		name          string
		available     uint64
		globalIndexes []uint32
		expectedError error
	}{
		{"no decoys and no supply", 0, singleOutput, nil},
		{"decoys below the upgrade size", upgradeSize - 1, twoOutputs, ruleerrors.ErrInputMixinTooHigh},
		{"three outputs below the upgrade size", upgradeSize - 1, threeOutputs, ruleerrors.ErrInputMixinTooHigh},
		{"no decoys at the upgrade size", upgradeSize, singleOutput, ruleerrors.ErrInputMixinTooLow},
		{"one decoy at the upgrade size", upgradeSize, twoOutputs, nil},
		{"two decoys at the upgrade size", upgradeSize, threeOutputs, ruleerrors.ErrInputMixinTooHigh},
		{"one decoy at twice the upgrade size", 2 * upgradeSize, twoOutputs, ruleerrors.ErrInputMixinTooLow},
		{"maximum mixin at twice the upgrade size", 2 * upgradeSize, threeOutputs, nil},
		{"maximum mixin with a large supply", 100 * upgradeSize, threeOutputs, nil},
		{"above the maximum mixin with a large supply", 100 * upgradeSize, fourOutputs, ruleerrors.ErrInputMixinTooHigh},
	}

	for _, test := range tests {
		rings := []ring{{globalIndexes: test.globalIndexes, real: 0}}
		tx := signedTransaction(t, rings, []uint64{90})

		_, err := validator.ValidateTransaction(tx, testBlobSize, newRingViewWithDecoys(test.available), poolContext())
		if test.expectedError == nil {
			if err != nil {
				t.Fatalf("TestRingSizeFollowsRequiredMixin: %s: unexpected error: %+v", test.name, err)
			}
			continue
		}
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("TestRingSizeFollowsRequiredMixin: %s: expected %s, got: %+v", test.name, test.expectedError, err)
		}
	}
}

func TestEveryRingMatchesTheRequiredMixin(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, devoracle.New())

	rings := []ring{
		{globalIndexes: []uint32{0, 1}, real: 0},
		{globalIndexes: []uint32{2, 3, 4}, real: 2},
	}
	tx := signedTransaction(t, rings, []uint64{100, 90})
	_, err := validator.ValidateTransaction(tx, testBlobSize, newRingView(), poolContext())
	if !errors.Is(err, ruleerrors.ErrInputMixinTooHigh) {
		t.Fatalf("expected the larger second ring to be rejected, got: %+v", err)
	}
}

func TestEmptyRing(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, devoracle.New())

	tx := signedTransaction(t, defaultRings, []uint64{90})
	tx.Inputs[0].(*externalapi.KeyInput).OutputIndexes = nil
	_, err := validator.ValidateTransaction(tx, testBlobSize, newRingViewWithDecoys(0), poolContext())
	if !errors.Is(err, ruleerrors.ErrInputEmptyOutputUsage) {
		t.Fatalf("expected ErrInputEmptyOutputUsage, got: %+v", err)
	}
}
