package transactionvalidator

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/pkg/errors"
)

func (v *transactionValidator) checkKeyImages(tx *externalapi.DomainTransaction, view model.ChainView,
	context *model.TransactionValidationContext) error {

	keyImages := tx.KeyImages()
	seen := make(map[externalapi.KeyImage]struct{}, len(keyImages))
	for _, keyImage := range keyImages {
		if _, ok := seen[keyImage]; ok {
			return errors.Wrapf(ruleerrors.ErrInputIdenticalKeyImages, "key image %s is used twice", keyImage)
		}
		seen[keyImage] = struct{}{}
	}

	if context.IsInCheckpointZone {
		return nil
	}
	for _, keyImage := range keyImages {
		spent, err := view.CheckIfSpent(keyImage, context.BlockIndex)
		if err != nil {
			return err
		}
		if spent {
			return errors.Wrapf(ruleerrors.ErrInputKeyImageAlreadySpent, "key image %s", keyImage)
		}
	}
	return nil
}

// checkMixin requires every ring to hold exactly the required mixin of
// its amount, plus the real output.
func (v *transactionValidator) checkMixin(tx *externalapi.DomainTransaction, view model.ChainView,
	context *model.TransactionValidationContext) error {

	requiredMixins := make(map[uint64]uint64)
	for i, input := range tx.Inputs {
		keyInput := input.(*externalapi.KeyInput)
		requiredMixin, ok := requiredMixins[keyInput.Amount]
		if !ok {
			available, err := view.AvailableMixinsCount(keyInput.Amount, context.BlockIndex, v.params.MixinThreshold())
			if err != nil {
				return err
			}
			requiredMixin = v.params.RequiredMixin(available)
			requiredMixins[keyInput.Amount] = requiredMixin
		}

		ringSize := uint64(len(keyInput.OutputIndexes))
		switch {
		case ringSize == 0:
			return errors.Wrapf(ruleerrors.ErrInputEmptyOutputUsage, "input %d references no outputs", i)
		case ringSize > requiredMixin+1:
			return errors.Wrapf(ruleerrors.ErrInputMixinTooHigh, "input %d has a ring of %d, %d required",
				i, ringSize, requiredMixin+1)
		case ringSize < requiredMixin+1:
			return errors.Wrapf(ruleerrors.ErrInputMixinTooLow, "input %d has a ring of %d, %d required",
				i, ringSize, requiredMixin+1)
		}
	}
	return nil
}

// checkFee enforces the minimum fee on pool transactions. Fusion
// transactions pay no fee.
func (v *transactionValidator) checkFee(tx *externalapi.DomainTransaction, blobSize uint64,
	inputAmount uint64, outputAmount uint64,
	context *model.TransactionValidationContext) (*model.TransactionValidationResult, error) {

	if inputAmount < outputAmount {
		return nil, errors.Wrapf(ruleerrors.ErrInputAmountInsufficient, "inputs of %d cannot pay outputs of %d",
			inputAmount, outputAmount)
	}
	fee := inputAmount - outputAmount
	result := &model.TransactionValidationResult{Fee: fee}
	if !context.IsPool {
		return result, nil
	}

	if fee == 0 {
		inputAmounts := make([]uint64, len(tx.Inputs))
		for i, input := range tx.Inputs {
			inputAmounts[i] = input.(*externalapi.KeyInput).Amount
		}
		outputAmounts := make([]uint64, len(tx.Outputs))
		for i, output := range tx.Outputs {
			outputAmounts[i] = output.Amount
		}
		result.IsFusion = amount.IsFusionTransaction(inputAmounts, outputAmounts, blobSize, v.params.FusionRules())
	}
	if !result.IsFusion && fee < v.params.MinimumFee {
		return nil, errors.Wrapf(ruleerrors.ErrFeeInsufficient, "fee %d, at least %d required", fee, v.params.MinimumFee)
	}
	return result, nil
}

// absoluteOutputIndexes turns the delta encoded output indexes of an input
// into global indexes. Every index after the first must be a positive
// offset.
func absoluteOutputIndexes(keyInput *externalapi.KeyInput) ([]uint32, error) {
	if len(keyInput.OutputIndexes) == 0 {
		return nil, errors.Wrap(ruleerrors.ErrInputEmptyOutputUsage, "input references no outputs")
	}
	globalIndexes := make([]uint32, len(keyInput.OutputIndexes))
	globalIndexes[0] = keyInput.OutputIndexes[0]
	for i := 1; i < len(keyInput.OutputIndexes); i++ {
		offset := keyInput.OutputIndexes[i]
		if offset == 0 {
			return nil, errors.Wrapf(ruleerrors.ErrInputDuplicateGlobalIndex, "output %d is referenced twice",
				globalIndexes[i-1])
		}
		if globalIndexes[i-1]+offset < globalIndexes[i-1] {
			return nil, errors.Wrap(ruleerrors.ErrInputInvalidGlobalIndex, "output index overflows")
		}
		globalIndexes[i] = globalIndexes[i-1] + offset
	}
	return globalIndexes, nil
}

type amountOutput struct {
	amount      uint64
	globalIndex uint32
}

func (v *transactionValidator) checkInputs(tx *externalapi.DomainTransaction, view model.ChainView,
	context *model.TransactionValidationContext) error {

	if len(tx.Signatures) != len(tx.Inputs) {
		return errors.Wrapf(ruleerrors.ErrInputInvalidSignaturesCount, "%d signatures for %d inputs",
			len(tx.Signatures), len(tx.Inputs))
	}

	prefixHash := consensushashing.TransactionPrefixHash(tx)
	referenced := make(map[amountOutput]struct{})
	for i, input := range tx.Inputs {
		keyInput := input.(*externalapi.KeyInput)
		globalIndexes, err := absoluteOutputIndexes(keyInput)
		if err != nil {
			return errors.Wrapf(err, "input %d", i)
		}
		for _, globalIndex := range globalIndexes {
			output := amountOutput{amount: keyInput.Amount, globalIndex: globalIndex}
			if _, ok := referenced[output]; ok {
				return errors.Wrapf(ruleerrors.ErrInputDuplicateGlobalIndex, "output %d of amount %d is referenced "+
					"by two inputs", globalIndex, keyInput.Amount)
			}
			referenced[output] = struct{}{}
		}

		publicKeys, result, err := view.ExtractKeyOutputKeys(keyInput.Amount, context.BlockIndex, context.Timestamp,
			globalIndexes)
		if err != nil {
			return err
		}
		switch result {
		case externalapi.ExtractOutputKeysSuccess:
		case externalapi.ExtractOutputKeysInvalidGlobalIndex:
			return errors.Wrapf(ruleerrors.ErrInputInvalidGlobalIndex, "input %d references an unknown output", i)
		case externalapi.ExtractOutputKeysOutputLocked:
			return errors.Wrapf(ruleerrors.ErrInputSpendLockedOut, "input %d references a locked output", i)
		default:
			return errors.Wrapf(ruleerrors.ErrInputInvalidUnknown, "input %d: %s", i, result)
		}

		if len(tx.Signatures[i]) != len(publicKeys) {
			return errors.Wrapf(ruleerrors.ErrInputInvalidSignaturesCount, "input %d has %d signatures for a ring of %d",
				i, len(tx.Signatures[i]), len(publicKeys))
		}
		if !v.signatureOracle.CheckRingSignature(prefixHash, keyInput.KeyImage, publicKeys, tx.Signatures[i]) {
			return errors.Wrapf(ruleerrors.ErrInputInvalidSignatures, "input %d", i)
		}
	}
	log.Tracef("Verified %d rings over prefix %s", len(tx.Inputs), prefixHash)
	return nil
}

func (v *transactionValidator) checkKeyImagesDomain(tx *externalapi.DomainTransaction) error {
	for _, keyImage := range tx.KeyImages() {
		if !v.signatureOracle.CheckKeyImageDomain(keyImage) {
			return errors.Wrapf(ruleerrors.ErrInputInvalidDomainKeyImages, "key image %s", keyImage)
		}
	}
	return nil
}
