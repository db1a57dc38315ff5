package blockvalidator

import (
	"testing"
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/processes/coinbasemanager"
	"github.com/cnchain/cnd/domain/consensus/processes/difficultymanager"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/devoracle"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

const (
	testNow            = 1_700_100_000
	previousBlockIndex = 20
	testReward         = 1234
)

type timestampsView struct {
	model.ChainView
	timestamps []uint64
}

func (v *timestampsView) LastTimestamps(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	if uint32(len(v.timestamps)) <= count {
		return v.timestamps, nil
	}
	return v.timestamps[uint32(len(v.timestamps))-count:], nil
}

func testParams() *chaincfg.Params {
	params := chaincfg.SimnetParams
	params.UpgradeIndexes = []uint32{10, 30}
	params.StaticRewardAmount = 100
	params.StaticRewardStartVersion = 2
	params.StaticRewardSeed = []byte("static")
	params.MergeMiningStartVersion = 2
	return &params
}

func setup(params *chaincfg.Params) (model.BlockValidator, model.CoinbaseManager) {
	coinbaseManager := coinbasemanager.New(params)
	validator := New(params,
		clock.NewTestClock(time.Unix(testNow, 0)),
		difficultymanager.New(params),
		coinbaseManager,
		devoracle.New())
	return validator, coinbaseManager
}

func validBlock(params *chaincfg.Params, coinbaseManager model.CoinbaseManager) *externalapi.DomainBlock {
	version := params.BlockVersion(previousBlockIndex + 1)
	return &externalapi.DomainBlock{
		Version:          version,
		UpgradeVote:      version,
		Timestamp:        testNow - 60,
		BaseTransaction:  coinbaseManager.MinerTransaction(previousBlockIndex+1, testReward, externalapi.PublicKey{1}),
		StaticRewardHash: coinbaseManager.StaticRewardHash(version, previousBlockIndex+1),
	}
}

func TestValidateBlock(t *testing.T) {
	params := testParams()
	validator, coinbaseManager := setup(params)

	version := params.BlockVersion(previousBlockIndex + 1)
	timestamps := make([]uint64, params.TimestampCheckWindow(version))
	for i := range timestamps {
		timestamps[i] = testNow - 3600 + uint64(i)*60
	}
	view := &timestampsView{timestamps: timestamps}
	medianTimestamp := timestamps[len(timestamps)/2]

	tests := []struct {
		name          string
		mutate        func(block *externalapi.DomainBlock)
		view          *timestampsView
		expectedError error
	}{
		{
			name:   "valid block",
			mutate: func(block *externalapi.DomainBlock) {},
		},
		{
			name:          "version from the next upgrade",
			mutate:        func(block *externalapi.DomainBlock) { block.Version++; block.UpgradeVote++ },
			expectedError: ruleerrors.ErrWrongVersion,
		},
		{
			name:   "vote for the next version",
			mutate: func(block *externalapi.DomainBlock) { block.UpgradeVote++ },
		},
		{
			name:          "vote two versions ahead",
			mutate:        func(block *externalapi.DomainBlock) { block.UpgradeVote += 2 },
			expectedError: ruleerrors.ErrWrongUpgradeVote,
		},
		{
			name: "timestamp past the future limit",
			mutate: func(block *externalapi.DomainBlock) {
				block.Timestamp = testNow + uint64(params.BlockFutureTimeLimit(version)/time.Second) + 1
			},
			expectedError: ruleerrors.ErrTimestampTooFarInFuture,
		},
		{
			name:          "timestamp below the median",
			mutate:        func(block *externalapi.DomainBlock) { block.Timestamp = medianTimestamp - 1 },
			expectedError: ruleerrors.ErrTimestampTooFarInPast,
		},
		{
			name:   "old timestamp with too few blocks for a median",
			mutate: func(block *externalapi.DomainBlock) { block.Timestamp = medianTimestamp - 1 },
			view:   &timestampsView{timestamps: timestamps[1:]},
		},
		{
			name:          "miner transaction version",
			mutate:        func(block *externalapi.DomainBlock) { block.BaseTransaction.Version = 2 },
			expectedError: ruleerrors.ErrInvalidVersion,
		},
		{
			name:          "miner transaction without public key",
			mutate:        func(block *externalapi.DomainBlock) { block.BaseTransaction.Extra = nil },
			expectedError: ruleerrors.ErrInvalidExtra,
		},
		{
			name: "two base inputs",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Inputs = append(block.BaseTransaction.Inputs, block.BaseTransaction.Inputs[0])
			},
			expectedError: ruleerrors.ErrBaseInputWrongCount,
		},
		{
			name: "key input in miner transaction",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Inputs[0] = &externalapi.KeyInput{Amount: 1, OutputIndexes: []uint32{0}}
			},
			expectedError: ruleerrors.ErrBaseInputUnexpectedType,
		},
		{
			name: "base input for another block",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Inputs[0] = &externalapi.BaseInput{BlockIndex: previousBlockIndex}
			},
			expectedError: ruleerrors.ErrBaseInputWrongBlockIndex,
		},
		{
			name:          "wrong unlock time",
			mutate:        func(block *externalapi.DomainBlock) { block.BaseTransaction.UnlockTime++ },
			expectedError: ruleerrors.ErrBaseTransactionWrongUnlockTime,
		},
		{
			name: "signed miner transaction",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Signatures = [][]externalapi.Signature{{}}
			},
			expectedError: ruleerrors.ErrBaseInvalidSignaturesCount,
		},
		{
			name:          "zero amount output",
			mutate:        func(block *externalapi.DomainBlock) { block.BaseTransaction.Outputs[0].Amount = 0 },
			expectedError: ruleerrors.ErrOutputZeroAmount,
		},
		{
			name: "invalid output key",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Outputs[0].Target = &externalapi.KeyOutput{}
			},
			expectedError: ruleerrors.ErrOutputInvalidKey,
		},
		{
			name: "outputs overflow",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Outputs[0].Amount = ^uint64(0)
			},
			expectedError: ruleerrors.ErrOutputsAmountOverflow,
		},
		{
			name: "non canonical outputs",
			mutate: func(block *externalapi.DomainBlock) {
				block.BaseTransaction.Outputs[1].Amount = 4
			},
			expectedError: ruleerrors.ErrOutputsNotCanonical,
		},
		{
			name:          "missing static reward",
			mutate:        func(block *externalapi.DomainBlock) { block.StaticRewardHash = nil },
			expectedError: ruleerrors.ErrStaticRewardMismatch,
		},
		{
			name: "wrong static reward",
			mutate: func(block *externalapi.DomainBlock) {
				wrongHash := *block.StaticRewardHash + 1
				block.StaticRewardHash = &wrongHash
			},
			expectedError: ruleerrors.ErrStaticRewardMismatch,
		},
	}

	for _, test := range tests {
		block := validBlock(params, coinbaseManager)
		test.mutate(block)
		testView := view
		if test.view != nil {
			testView = test.view
		}

		minerReward, err := validator.ValidateBlock(block, externalapi.DomainHash{}, previousBlockIndex, testView)
		if test.expectedError == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error: %+v", test.name, err)
			}
			if minerReward != testReward {
				t.Fatalf("%s: miner reward %d, expected %d", test.name, minerReward, testReward)
			}
			continue
		}
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("%s: expected error %s, got %+v", test.name, test.expectedError, err)
		}
		if !ruleerrors.IsRuleError(err) {
			t.Fatalf("%s: %+v is not a rule error", test.name, err)
		}
	}
}

func TestTimestampRulesFollowVersion(t *testing.T) {
	params := testParams()
	validator, coinbaseManager := setup(params)

	const firstVersionPreviousBlockIndex = 3
	firstVersion := params.BlockVersion(firstVersionPreviousBlockIndex + 1)
	secondVersion := params.BlockVersion(previousBlockIndex + 1)
	if firstVersion == secondVersion {
		t.Fatalf("both test indexes are at version %d", firstVersion)
	}
	if params.BlockFutureTimeLimit(firstVersion) <= params.BlockFutureTimeLimit(secondVersion) {
		t.Fatalf("expected the first version to allow timestamps further ahead")
	}

	// A timestamp between the two future limits.
	aheadTimestamp := testNow + uint64(params.BlockFutureTimeLimit(secondVersion)/time.Second) + 60

	block := &externalapi.DomainBlock{
		Version:         firstVersion,
		UpgradeVote:     firstVersion,
		Timestamp:       aheadTimestamp,
		BaseTransaction: coinbaseManager.MinerTransaction(firstVersionPreviousBlockIndex+1, testReward, externalapi.PublicKey{1}),
	}
	_, err := validator.ValidateBlock(block, externalapi.DomainHash{}, firstVersionPreviousBlockIndex, &timestampsView{})
	if err != nil {
		t.Fatalf("ValidateBlock at version %d: %+v", firstVersion, err)
	}

	block = validBlock(params, coinbaseManager)
	block.Timestamp = aheadTimestamp
	_, err = validator.ValidateBlock(block, externalapi.DomainHash{}, previousBlockIndex, &timestampsView{})
	if !errors.Is(err, ruleerrors.ErrTimestampTooFarInFuture) {
		t.Fatalf("expected ErrTimestampTooFarInFuture at version %d, got %+v", secondVersion, err)
	}

	// The first version needs a longer history before the median applies.
	window := params.TimestampCheckWindow(secondVersion)
	timestamps := make([]uint64, window)
	for i := range timestamps {
		timestamps[i] = testNow - 3600 + uint64(i)*60
	}
	block = &externalapi.DomainBlock{
		Version:         firstVersion,
		UpgradeVote:     firstVersion,
		Timestamp:       timestamps[0],
		BaseTransaction: coinbaseManager.MinerTransaction(firstVersionPreviousBlockIndex+1, testReward, externalapi.PublicKey{1}),
	}
	_, err = validator.ValidateBlock(block, externalapi.DomainHash{}, firstVersionPreviousBlockIndex,
		&timestampsView{timestamps: timestamps})
	if err != nil {
		t.Fatalf("%d timestamps must not bound a version %d block: %+v", window, firstVersion, err)
	}
}

func TestStaticRewardBeforeItsVersion(t *testing.T) {
	params := testParams()
	validator, coinbaseManager := setup(params)

	const earlyPreviousBlockIndex = 3
	version := params.BlockVersion(earlyPreviousBlockIndex + 1)
	block := &externalapi.DomainBlock{
		Version:         version,
		UpgradeVote:     version,
		Timestamp:       testNow,
		BaseTransaction: coinbaseManager.MinerTransaction(earlyPreviousBlockIndex+1, testReward, externalapi.PublicKey{1}),
	}
	_, err := validator.ValidateBlock(block, externalapi.DomainHash{}, earlyPreviousBlockIndex, &timestampsView{})
	if err != nil {
		t.Fatalf("ValidateBlock: %+v", err)
	}

	staticRewardHash := uint16(1)
	block.StaticRewardHash = &staticRewardHash
	_, err = validator.ValidateBlock(block, externalapi.DomainHash{}, earlyPreviousBlockIndex, &timestampsView{})
	if !errors.Is(err, ruleerrors.ErrStaticRewardMismatch) {
		t.Fatalf("expected ErrStaticRewardMismatch, got %+v", err)
	}
}

func TestCheckMergeMiningTag(t *testing.T) {
	params := testParams()
	validator, _ := setup(params)

	tests := []struct {
		name          string
		version       uint8
		tag           externalapi.MergeMiningTag
		expectedError error
	}{
		{"no tag", 1, nil, nil},
		{"tag before merge mining", 1, &externalapi.RawMergeMiningTag{Prefix: []externalapi.DomainHash{{}}},
			ruleerrors.ErrMergeMiningTagDisabled},
		{"raw tag", 2, &externalapi.RawMergeMiningTag{Prefix: []externalapi.DomainHash{{}}}, nil},
		{"empty tag", 2, &externalapi.RawMergeMiningTag{}, ruleerrors.ErrMergeMiningTagEmpty},
		{"oversized tag", 2, &externalapi.RawMergeMiningTag{
			Prefix:  make([]externalapi.DomainHash, params.MaxMergeMiningTagSize),
			Postfix: make([]externalapi.DomainHash, 1),
		}, ruleerrors.ErrMergeMiningTagTooLarge},
		{"pruned tag", 2, &externalapi.PrunedMergeMiningTag{}, ruleerrors.ErrMergeMiningTagPruned},
	}
	for _, test := range tests {
		err := validator.CheckMergeMiningTag(&externalapi.DomainBlock{Version: test.version, MergeMiningTag: test.tag})
		if test.expectedError == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error: %+v", test.name, err)
			}
			continue
		}
		if !errors.Is(err, test.expectedError) {
			t.Fatalf("%s: expected error %s, got %+v", test.name, test.expectedError, err)
		}
	}
}

func TestCheckProofOfWork(t *testing.T) {
	params := testParams()
	validator, coinbaseManager := setup(params)
	block := validBlock(params, coinbaseManager)

	err := validator.CheckProofOfWork(block, 1)
	if err != nil {
		t.Fatalf("difficulty 1 accepts any proof of work: %+v", err)
	}
	err = validator.CheckProofOfWork(block, ^uint64(0))
	if !errors.Is(err, ruleerrors.ErrProofOfWorkTooWeak) {
		t.Fatalf("expected ErrProofOfWorkTooWeak, got %+v", err)
	}

	params.SkipProofOfWork = true
	err = validator.CheckProofOfWork(block, ^uint64(0))
	if err != nil {
		t.Fatalf("proof of work must not be checked when skipped: %+v", err)
	}
}
