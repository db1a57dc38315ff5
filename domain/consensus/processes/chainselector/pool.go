package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

func (cs *chainSelector) AddTransactionToPool(transaction *externalapi.DomainTransaction) error {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return err
	}

	transactionHash := consensushashing.TransactionHash(transaction)
	if cs.pool.ContainsTransaction(transactionHash) {
		return errors.Wrapf(ruleerrors.ErrTransactionAlreadyInPool, "transaction %s", transactionHash)
	}
	transactionBytes, err := serialization.TransactionToBytes(transaction)
	if err != nil {
		return errors.Wrapf(ruleerrors.ErrDeserializationFailed, "transaction %s: %s", transactionHash, err)
	}
	poolTransaction, err := cs.validatePoolTransaction(transaction, transactionBytes)
	if err != nil {
		return err
	}
	err = cs.pool.AddTransaction(poolTransaction)
	if err != nil {
		return err
	}
	log.Debugf("Transaction %s added to the pool", transactionHash)
	return nil
}

func (cs *chainSelector) RevalidatePoolTransaction(transaction *model.PoolTransaction) error {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return err
	}
	_, err = cs.validatePoolTransaction(transaction.Transaction, transaction.Blob)
	return err
}

// validatePoolTransaction checks transaction on top of the main chain as
// the pool would hold it.
func (cs *chainSelector) validatePoolTransaction(transaction *externalapi.DomainTransaction,
	transactionBytes []byte) (*model.PoolTransaction, error) {

	transactionHash := consensushashing.TransactionHash(transaction)
	_, found, err := cs.tree.TransactionInfo(cs.mainLeaf(), transactionHash)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, errors.Wrapf(ruleerrors.ErrTransactionAlreadyInChain, "transaction %s", transactionHash)
	}

	context := &model.TransactionValidationContext{
		BlockIndex: cs.topBlockIndex,
		Timestamp:  uint64(cs.clock.Now().Unix()),
		IsPool:     true,
	}
	result, err := cs.transactionValidator.ValidateTransaction(transaction, uint64(len(transactionBytes)),
		cs.tree.View(cs.mainLeaf()), context)
	if err != nil {
		return nil, err
	}
	return &model.PoolTransaction{
		Transaction: transaction,
		Hash:        transactionHash,
		Blob:        transactionBytes,
		Fee:         result.Fee,
		IsFusion:    result.IsFusion,
	}, nil
}
