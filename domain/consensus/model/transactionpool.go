package model

import (
	"context"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// PoolTransaction is a transaction held by a TransactionPool together with
// what the pool knows about it.
type PoolTransaction struct {
	Transaction *externalapi.DomainTransaction
	Hash        externalapi.DomainHash
	Blob        []byte
	Fee         uint64
	IsFusion    bool
}

// Size returns the size of the transaction blob.
func (tx *PoolTransaction) Size() uint64 {
	return uint64(len(tx.Blob))
}

// TransactionPool is the surface of the transaction pool consumed by
// consensus.
type TransactionPool interface {
	// EligibleTransactions returns the transactions that may be put into a
	// block template, best fee per byte first.
	EligibleTransactions(ctx context.Context) ([]*PoolTransaction, error)
	ContainsTransaction(transactionHash externalapi.DomainHash) bool
	ContainsKeyImage(keyImage externalapi.KeyImage) bool
	GetTransaction(transactionHash externalapi.DomainHash) (*PoolTransaction, bool)
	GetTransactionHashes() []externalapi.DomainHash
	TransactionHashesByPaymentID(paymentID externalapi.DomainHash) []externalapi.DomainHash

	AddTransaction(transaction *PoolTransaction) error
	// RemoveTransactions drops the given transactions and reports them
	// deleted with reason.
	RemoveTransactions(transactionHashes []externalapi.DomainHash, reason externalapi.DeletionReason)
	// RemoveTransactionsSpending drops the transactions spending any of
	// keyImages, which a main chain block spent.
	RemoveTransactionsSpending(keyImages []externalapi.KeyImage)
	// PushBackTransactions returns transactions of blocks that left the main
	// chain to the pool.
	PushBackTransactions(transactions []*PoolTransaction)
}
