package transactionvalidator

import (
	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// transactionValidator exposes a set of validation classes, after which
// it's possible to determine whether either a transaction is valid
type transactionValidator struct {
	params          *chaincfg.Params
	signatureOracle model.SignatureOracle
}

// New instantiates a new TransactionValidator
func New(params *chaincfg.Params, signatureOracle model.SignatureOracle) model.TransactionValidator {
	return &transactionValidator{
		params:          params,
		signatureOracle: signatureOracle,
	}
}

// ValidateTransaction validates a body transaction. The checks that only
// look at the transaction come first, then the ones that consult view:
// spent key images, mixin, fee and finally every input's ring.
func (v *transactionValidator) ValidateTransaction(tx *externalapi.DomainTransaction, blobSize uint64,
	view model.ChainView, context *model.TransactionValidationContext) (*model.TransactionValidationResult, error) {

	err := v.checkTransactionInIsolation(tx, blobSize)
	if err != nil {
		return nil, err
	}

	inputAmount, outputAmount, err := v.checkAmounts(tx)
	if err != nil {
		return nil, err
	}
	err = v.checkKeyImages(tx, view, context)
	if err != nil {
		return nil, err
	}
	err = v.checkMixin(tx, view, context)
	if err != nil {
		return nil, err
	}

	result, err := v.checkFee(tx, blobSize, inputAmount, outputAmount, context)
	if err != nil {
		return nil, err
	}

	if !context.IsInCheckpointZone {
		err = v.checkInputs(tx, view, context)
		if err != nil {
			return nil, err
		}
		err = v.checkKeyImagesDomain(tx)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
