package blockvalidator

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// checkMinerTransaction validates the structure of the miner transaction
// and returns the reward it claims.
func (v *blockValidator) checkMinerTransaction(block *externalapi.DomainBlock, previousBlockIndex uint32) (uint64, error) {
	tx := block.BaseTransaction
	if tx == nil {
		return 0, errors.Wrap(ruleerrors.ErrBaseInputWrongCount, "block has no miner transaction")
	}
	if tx.Version < v.params.TransactionMinVersion || tx.Version > v.params.TransactionMaxVersion {
		return 0, errors.Wrapf(ruleerrors.ErrInvalidVersion, "miner transaction version %d", tx.Version)
	}

	extra, err := serialization.ParseTransactionExtra(tx.Extra)
	if err != nil {
		return 0, errors.Wrapf(ruleerrors.ErrInvalidExtra, "miner transaction extra: %s", err)
	}
	if extra.PublicKey == nil {
		return 0, errors.Wrap(ruleerrors.ErrInvalidExtra, "miner transaction extra has no public key")
	}

	if len(tx.Inputs) != 1 {
		return 0, errors.Wrapf(ruleerrors.ErrBaseInputWrongCount, "miner transaction has %d inputs", len(tx.Inputs))
	}
	baseInput, ok := tx.Inputs[0].(*externalapi.BaseInput)
	if !ok {
		return 0, errors.Wrapf(ruleerrors.ErrBaseInputUnexpectedType, "miner transaction input is a %T", tx.Inputs[0])
	}
	if baseInput.BlockIndex != previousBlockIndex+1 {
		return 0, errors.Wrapf(ruleerrors.ErrBaseInputWrongBlockIndex, "miner transaction is for block %d, expected %d",
			baseInput.BlockIndex, previousBlockIndex+1)
	}
	expectedUnlockTime := uint64(previousBlockIndex) + 1 + uint64(v.params.MinedMoneyUnlockWindow)
	if tx.UnlockTime != expectedUnlockTime {
		return 0, errors.Wrapf(ruleerrors.ErrBaseTransactionWrongUnlockTime, "miner transaction unlock time %d, expected %d",
			tx.UnlockTime, expectedUnlockTime)
	}
	if len(tx.Signatures) != 0 {
		return 0, errors.Wrapf(ruleerrors.ErrBaseInvalidSignaturesCount, "miner transaction has %d signatures",
			len(tx.Signatures))
	}

	minerReward := uint64(0)
	amounts := make([]uint64, 0, len(tx.Outputs))
	for i, output := range tx.Outputs {
		if output.Amount == 0 {
			return 0, errors.Wrapf(ruleerrors.ErrOutputZeroAmount, "miner transaction output %d", i)
		}
		key, ok := output.KeyOutputKey()
		if !ok {
			return 0, errors.Wrapf(ruleerrors.ErrOutputUnexpectedType, "miner transaction output %d is a %T", i, output.Target)
		}
		if !v.signatureOracle.CheckPublicKey(key) {
			return 0, errors.Wrapf(ruleerrors.ErrOutputInvalidKey, "miner transaction output %d", i)
		}
		if minerReward+output.Amount < minerReward {
			return 0, errors.Wrap(ruleerrors.ErrOutputsAmountOverflow, "miner transaction outputs")
		}
		minerReward += output.Amount
		amounts = append(amounts, output.Amount)
	}

	if !amount.IsDecomposition(amounts) {
		return 0, errors.Wrapf(ruleerrors.ErrOutputsNotCanonical, "miner transaction outputs %v are not the "+
			"canonical decomposition of %d", amounts, minerReward)
	}
	return minerReward, nil
}

// checkStaticReward requires the block to carry the truncated hash of the
// static reward transaction exactly when its version mandates one.
func (v *blockValidator) checkStaticReward(block *externalapi.DomainBlock, previousBlockIndex uint32) error {
	expected := v.coinbaseManager.StaticRewardHash(block.Version, previousBlockIndex+1)
	switch {
	case expected == nil && block.StaticRewardHash == nil:
		return nil
	case expected == nil:
		return errors.Wrapf(ruleerrors.ErrStaticRewardMismatch, "blocks of version %d have no static reward",
			block.Version)
	case block.StaticRewardHash == nil:
		return errors.Wrapf(ruleerrors.ErrStaticRewardMismatch, "blocks of version %d must have a static reward",
			block.Version)
	case *block.StaticRewardHash != *expected:
		return errors.Wrapf(ruleerrors.ErrStaticRewardMismatch, "static reward hash %04x, expected %04x",
			*block.StaticRewardHash, *expected)
	}
	return nil
}
