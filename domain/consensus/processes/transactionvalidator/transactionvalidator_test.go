package transactionvalidator

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/devoracle"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	ringAmount     = 100
	ringOutputs    = 12
	lockedOutput   = 11
	testBlockIndex = 50
	testTimestamp  = 1_700_100_000
	testBlobSize   = 300
)

// ringView serves ringOutputs outputs of ringAmount, owned by secretOf.
// available is the number of outputs it reports as usable decoys.
type ringView struct {
	model.ChainView
	spent     map[externalapi.KeyImage]struct{}
	available uint64
}

func secretOf(globalIndex uint32) devoracle.SecretKey {
	seed := make([]byte, 4)
	binary.LittleEndian.PutUint32(seed, globalIndex)
	return devoracle.NewSecretKey(seed)
}

func (v *ringView) CheckIfSpent(keyImage externalapi.KeyImage, blockIndex uint32) (bool, error) {
	_, ok := v.spent[keyImage]
	return ok, nil
}

func (v *ringView) AvailableMixinsCount(amount uint64, blockIndex uint32, threshold uint64) (uint64, error) {
	if v.available > threshold {
		return threshold, nil
	}
	return v.available, nil
}

func (v *ringView) ExtractKeyOutputKeys(amount uint64, blockIndex uint32, timestamp uint64,
	globalIndexes []uint32) ([]externalapi.PublicKey, externalapi.ExtractOutputKeysResult, error) {

	keys := make([]externalapi.PublicKey, len(globalIndexes))
	for i, globalIndex := range globalIndexes {
		if amount != ringAmount || globalIndex >= ringOutputs {
			return nil, externalapi.ExtractOutputKeysInvalidGlobalIndex, nil
		}
		if globalIndex == lockedOutput {
			return nil, externalapi.ExtractOutputKeysOutputLocked, nil
		}
		keys[i] = devoracle.PublicKey(secretOf(globalIndex))
	}
	return keys, externalapi.ExtractOutputKeysSuccess, nil
}

// newRingView reports enough decoys for a required mixin of one, which
// the two output rings of the tests satisfy.
func newRingView() *ringView {
	return newRingViewWithDecoys(chaincfg.SimnetParams.MixinUpgradeSize)
}

func newRingViewWithDecoys(available uint64) *ringView {
	return &ringView{
		spent:     make(map[externalapi.KeyImage]struct{}),
		available: available,
	}
}

// ring describes one input: the global indexes of its ring and which of
// them it really spends.
type ring struct {
	globalIndexes []uint32
	real          int
}

func deltaEncode(globalIndexes []uint32) []uint32 {
	offsets := make([]uint32, len(globalIndexes))
	previous := uint32(0)
	for i, globalIndex := range globalIndexes {
		offsets[i] = globalIndex - previous
		previous = globalIndex
	}
	return offsets
}

func outputTo(amount uint64, seed byte) *externalapi.DomainTransactionOutput {
	return &externalapi.DomainTransactionOutput{
		Amount: amount,
		Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{seed}},
	}
}

func buildTransaction(rings []ring, outputAmounts []uint64) *externalapi.DomainTransaction {
	tx := &externalapi.DomainTransaction{
		Version: 1,
		Extra:   serialization.BuildTransactionExtra(externalapi.PublicKey{0x42}, nil),
	}
	for _, r := range rings {
		tx.Inputs = append(tx.Inputs, &externalapi.KeyInput{
			Amount:        ringAmount,
			OutputIndexes: deltaEncode(r.globalIndexes),
			KeyImage:      devoracle.KeyImage(secretOf(r.globalIndexes[r.real])),
		})
	}
	for i, outputAmount := range outputAmounts {
		tx.Outputs = append(tx.Outputs, outputTo(outputAmount, byte(i+1)))
	}
	return tx
}

func signTransaction(t *testing.T, tx *externalapi.DomainTransaction, rings []ring) {
	prefixHash := consensushashing.TransactionPrefixHash(tx)
	tx.Signatures = make([][]externalapi.Signature, len(rings))
	for i, r := range rings {
		publicKeys := make([]externalapi.PublicKey, len(r.globalIndexes))
		for j, globalIndex := range r.globalIndexes {
			publicKeys[j] = devoracle.PublicKey(secretOf(globalIndex))
		}
		_, signatures, err := devoracle.Sign(prefixHash, secretOf(r.globalIndexes[r.real]), publicKeys, r.real)
		require.NoError(t, err)
		tx.Signatures[i] = signatures
	}
}

func signedTransaction(t *testing.T, rings []ring, outputAmounts []uint64) *externalapi.DomainTransaction {
	tx := buildTransaction(rings, outputAmounts)
	signTransaction(t, tx, rings)
	return tx
}

func poolContext() *model.TransactionValidationContext {
	return &model.TransactionValidationContext{
		BlockIndex: testBlockIndex,
		Timestamp:  testTimestamp,
		IsPool:     true,
	}
}

func blockContext() *model.TransactionValidationContext {
	return &model.TransactionValidationContext{
		BlockIndex: testBlockIndex,
		Timestamp:  testTimestamp,
	}
}

var defaultRings = []ring{{globalIndexes: []uint32{0, 1}, real: 1}}

func TestValidateTransaction(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, devoracle.New())

	tests := []struct {
		name          string
		build         func(t *testing.T) *externalapi.DomainTransaction
		blobSize      uint64
		view          func() *ringView
		context       *model.TransactionValidationContext
		expectedFee   uint64
		expectedError error
	}{
		{
			name: "valid pool transaction",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{90})
			},
			expectedFee: 10,
		},
		{
			name: "too large",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{90})
			},
			blobSize:      params.MaxTransactionSize() + 1,
			expectedError: ruleerrors.ErrTransactionTooLarge,
		},
		{
			name: "unsupported version",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.Version = 2
				return tx
			},
			expectedError: ruleerrors.ErrInvalidVersion,
		},
		{
			name: "no inputs",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return buildTransaction(nil, []uint64{90})
			},
			expectedError: ruleerrors.ErrEmptyInputs,
		},
		{
			name: "no outputs",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, nil)
			},
			expectedError: ruleerrors.ErrEmptyOutputs,
		},
		{
			name: "unparsable extra",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := buildTransaction(defaultRings, []uint64{90})
				tx.Extra = []byte{0x01, 0x02}
				signTransaction(t, tx, defaultRings)
				return tx
			},
			expectedError: ruleerrors.ErrInvalidExtra,
		},
		{
			name: "extra too large",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := buildTransaction(defaultRings, []uint64{90})
				tx.Extra = make([]byte, params.MaxExtraSize+1)
				signTransaction(t, tx, defaultRings)
				return tx
			},
			expectedError: ruleerrors.ErrExtraTooLarge,
		},
		{
			name: "base input in a body transaction",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.Inputs = append(tx.Inputs, &externalapi.BaseInput{BlockIndex: 1})
				return tx
			},
			expectedError: ruleerrors.ErrBaseInputUnexpectedType,
		},
		{
			name: "zero amount output",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{90, 0})
			},
			expectedError: ruleerrors.ErrOutputZeroAmount,
		},
		{
			name: "non canonical output",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{85})
			},
			expectedError: ruleerrors.ErrOutputsNotCanonical,
		},
		{
			name: "invalid output key",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := buildTransaction(defaultRings, []uint64{90})
				tx.Outputs[0].Target = &externalapi.KeyOutput{}
				signTransaction(t, tx, defaultRings)
				return tx
			},
			expectedError: ruleerrors.ErrOutputInvalidKey,
		},
		{
			name: "outputs exceed inputs",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{200})
			},
			expectedError: ruleerrors.ErrInputAmountInsufficient,
		},
		{
			name: "same key image twice",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				rings := []ring{
					{globalIndexes: []uint32{0, 1}, real: 1},
					{globalIndexes: []uint32{1, 2}, real: 0},
				}
				return signedTransaction(t, rings, []uint64{100, 90})
			},
			expectedError: ruleerrors.ErrInputIdenticalKeyImages,
		},
		{
			name: "spent key image",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{90})
			},
			view: func() *ringView {
				view := newRingView()
				view.spent[devoracle.KeyImage(secretOf(1))] = struct{}{}
				return view
			},
			expectedError: ruleerrors.ErrInputKeyImageAlreadySpent,
		},
		{
			name: "ring larger than the required mixin",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				rings := []ring{{globalIndexes: []uint32{0, 1, 2, 3}, real: 2}}
				return signedTransaction(t, rings, []uint64{90})
			},
			expectedError: ruleerrors.ErrInputMixinTooHigh,
		},
		{
			name: "ring smaller than the required mixin",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				rings := []ring{{globalIndexes: []uint32{4}, real: 0}}
				return signedTransaction(t, rings, []uint64{90})
			},
			expectedError: ruleerrors.ErrInputMixinTooLow,
		},
		{
			name: "fee below the minimum",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{100})
			},
			expectedError: ruleerrors.ErrFeeInsufficient,
		},
		{
			name: "zero fee inside a block",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				return signedTransaction(t, defaultRings, []uint64{100})
			},
			context: blockContext(),
		},
		{
			name: "repeated output in a ring",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := buildTransaction(defaultRings, []uint64{90})
				tx.Inputs[0].(*externalapi.KeyInput).OutputIndexes = []uint32{1, 0}
				signTransaction(t, tx, defaultRings)
				return tx
			},
			expectedError: ruleerrors.ErrInputDuplicateGlobalIndex,
		},
		{
			name: "output shared by two inputs",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				rings := []ring{
					{globalIndexes: []uint32{0, 1}, real: 1},
					{globalIndexes: []uint32{1, 2}, real: 1},
				}
				return signedTransaction(t, rings, []uint64{100, 90})
			},
			expectedError: ruleerrors.ErrInputDuplicateGlobalIndex,
		},
		{
			name: "unknown output",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := buildTransaction(defaultRings, []uint64{90})
				tx.Inputs[0].(*externalapi.KeyInput).OutputIndexes = []uint32{1, ringOutputs}
				signTransaction(t, tx, defaultRings)
				return tx
			},
			expectedError: ruleerrors.ErrInputInvalidGlobalIndex,
		},
		{
			name: "locked output",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				rings := []ring{{globalIndexes: []uint32{1, lockedOutput}, real: 0}}
				return signedTransaction(t, rings, []uint64{90})
			},
			expectedError: ruleerrors.ErrInputSpendLockedOut,
		},
		{
			name: "missing signatures",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.Signatures = nil
				return tx
			},
			expectedError: ruleerrors.ErrInputInvalidSignaturesCount,
		},
		{
			name: "signature count differs from the ring",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.Signatures[0] = tx.Signatures[0][:1]
				return tx
			},
			expectedError: ruleerrors.ErrInputInvalidSignaturesCount,
		},
		{
			name: "signature over another prefix",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.UnlockTime = 7
				return tx
			},
			expectedError: ruleerrors.ErrInputInvalidSignatures,
		},
		{
			name: "broken signatures inside the checkpoint zone",
			build: func(t *testing.T) *externalapi.DomainTransaction {
				tx := signedTransaction(t, defaultRings, []uint64{90})
				tx.Signatures = nil
				return tx
			},
			context: &model.TransactionValidationContext{
				BlockIndex:         testBlockIndex,
				Timestamp:          testTimestamp,
				IsInCheckpointZone: true,
			},
			expectedFee: 10,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tx := test.build(t)
			blobSize := test.blobSize
			if blobSize == 0 {
				blobSize = testBlobSize
			}
			view := newRingView()
			if test.view != nil {
				view = test.view()
			}
			context := test.context
			if context == nil {
				context = poolContext()
			}

			result, err := validator.ValidateTransaction(tx, blobSize, view, context)
			if test.expectedError != nil {
				if !errors.Is(err, test.expectedError) {
					t.Fatalf("expected %s, got: %+v", test.expectedError, err)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expectedFee, result.Fee)
			require.False(t, result.IsFusion)
		})
	}
}

func TestFusionTransaction(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, devoracle.New())

	rings := make([]ring, params.FusionTxMinInputCount)
	for i := range rings {
		rings[i] = ring{globalIndexes: []uint32{uint32(2 * i), uint32(2*i + 1)}, real: i % 2}
	}
	tx := signedTransaction(t, rings, []uint64{400})

	result, err := validator.ValidateTransaction(tx, testBlobSize, newRingView(), poolContext())
	require.NoError(t, err)
	require.True(t, result.IsFusion)
	require.Zero(t, result.Fee)

	_, err = validator.ValidateTransaction(tx, params.FusionTxMaxSize+1, newRingView(), poolContext())
	require.True(t, errors.Is(err, ruleerrors.ErrFeeInsufficient), fmt.Sprintf("%+v", err))
}

func TestInvalidKeyImageDomain(t *testing.T) {
	params := chaincfg.SimnetParams
	validator := New(&params, &zeroKeyImageOracle{SignatureOracle: devoracle.New()})

	tx := signedTransaction(t, defaultRings, []uint64{90})
	_, err := validator.ValidateTransaction(tx, testBlobSize, newRingView(), poolContext())
	if !errors.Is(err, ruleerrors.ErrInputInvalidDomainKeyImages) {
		t.Fatalf("expected ErrInputInvalidDomainKeyImages, got: %+v", err)
	}
}

type zeroKeyImageOracle struct {
	model.SignatureOracle
}

func (o *zeroKeyImageOracle) CheckKeyImageDomain(externalapi.KeyImage) bool {
	return false
}
