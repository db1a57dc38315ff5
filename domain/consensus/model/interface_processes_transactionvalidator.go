package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// TransactionValidationContext is where a transaction is validated: inside
// a block on top of BlockIndex, or for the pool on top of the main chain.
type TransactionValidationContext struct {
	// BlockIndex is the validation height: the index of the block the
	// transaction's block builds on, or the main chain top for the pool.
	BlockIndex uint32
	// Timestamp is used to unlock outputs locked until a time.
	Timestamp uint64
	IsPool    bool
	// IsInCheckpointZone skips the spend checks of blocks covered by a
	// checkpoint.
	IsInCheckpointZone bool
}

// TransactionValidationResult is what validating a transaction learns
// about it.
type TransactionValidationResult struct {
	Fee      uint64
	IsFusion bool
}

// TransactionValidator exposes a set of validation classes, after which
// it's possible to determine whether a transaction is valid
type TransactionValidator interface {
	ValidateTransaction(transaction *externalapi.DomainTransaction, blobSize uint64,
		view ChainView, context *TransactionValidationContext) (*TransactionValidationResult, error)
}
