package transactionvalidator

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

func (v *transactionValidator) checkTransactionInIsolation(tx *externalapi.DomainTransaction, blobSize uint64) error {
	err := v.checkTransactionSize(blobSize)
	if err != nil {
		return err
	}
	err = v.checkVersion(tx)
	if err != nil {
		return err
	}
	if len(tx.Inputs) == 0 {
		return errors.Wrap(ruleerrors.ErrEmptyInputs, "transaction has no inputs")
	}
	if len(tx.Outputs) == 0 {
		return errors.Wrap(ruleerrors.ErrEmptyOutputs, "transaction has no outputs")
	}
	err = v.checkExtra(tx)
	if err != nil {
		return err
	}
	err = checkTransactionInputs(tx)
	if err != nil {
		return err
	}
	return v.checkTransactionOutputs(tx)
}

func (v *transactionValidator) checkTransactionSize(blobSize uint64) error {
	maxSize := v.params.MaxTransactionSize()
	if blobSize > maxSize {
		return errors.Wrapf(ruleerrors.ErrTransactionTooLarge, "transaction size %d is over the limit of %d",
			blobSize, maxSize)
	}
	return nil
}

func (v *transactionValidator) checkVersion(tx *externalapi.DomainTransaction) error {
	if tx.Version < v.params.TransactionMinVersion || tx.Version > v.params.TransactionMaxVersion {
		return errors.Wrapf(ruleerrors.ErrInvalidVersion, "transaction version %d is outside [%d, %d]",
			tx.Version, v.params.TransactionMinVersion, v.params.TransactionMaxVersion)
	}
	return nil
}

func checkTransactionInputs(tx *externalapi.DomainTransaction) error {
	for i, input := range tx.Inputs {
		if _, ok := input.(*externalapi.KeyInput); !ok {
			return errors.Wrapf(ruleerrors.ErrBaseInputUnexpectedType, "input %d is a %T", i, input)
		}
	}
	return nil
}

func (v *transactionValidator) checkExtra(tx *externalapi.DomainTransaction) error {
	_, err := serialization.ParseTransactionExtra(tx.Extra)
	if err != nil {
		return errors.Wrapf(ruleerrors.ErrInvalidExtra, "%s", err)
	}
	if len(tx.Extra) > v.params.MaxExtraSize {
		return errors.Wrapf(ruleerrors.ErrExtraTooLarge, "extra of %d bytes, at most %d allowed",
			len(tx.Extra), v.params.MaxExtraSize)
	}
	return nil
}

func (v *transactionValidator) checkTransactionOutputs(tx *externalapi.DomainTransaction) error {
	for i, output := range tx.Outputs {
		if _, ok := output.Target.(*externalapi.KeyOutput); !ok {
			return errors.Wrapf(ruleerrors.ErrOutputUnexpectedType, "output %d is a %T", i, output.Target)
		}
	}
	for i, output := range tx.Outputs {
		if output.Amount == 0 {
			return errors.Wrapf(ruleerrors.ErrOutputZeroAmount, "output %d", i)
		}
		if !amount.IsCanonical(output.Amount) {
			return errors.Wrapf(ruleerrors.ErrOutputsNotCanonical, "output %d has amount %d", i, output.Amount)
		}
	}
	for i, output := range tx.Outputs {
		key, _ := output.KeyOutputKey()
		if !v.signatureOracle.CheckPublicKey(key) {
			return errors.Wrapf(ruleerrors.ErrOutputInvalidKey, "output %d", i)
		}
	}
	return nil
}

// checkAmounts returns the sums of the inputs and the outputs of tx.
func (v *transactionValidator) checkAmounts(tx *externalapi.DomainTransaction) (inputAmount, outputAmount uint64, err error) {
	for _, input := range tx.Inputs {
		keyInput := input.(*externalapi.KeyInput)
		if inputAmount+keyInput.Amount < inputAmount {
			return 0, 0, errors.Wrap(ruleerrors.ErrInputsAmountOverflow, "sum of the inputs overflows")
		}
		inputAmount += keyInput.Amount
	}
	for _, output := range tx.Outputs {
		if outputAmount+output.Amount < outputAmount {
			return 0, 0, errors.Wrap(ruleerrors.ErrOutputsAmountOverflow, "sum of the outputs overflows")
		}
		outputAmount += output.Amount
	}
	return inputAmount, outputAmount, nil
}
