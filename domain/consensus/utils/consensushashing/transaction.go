package consensushashing

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// TransactionHash returns the hash of the transaction's full wire form,
// signatures included.
func TransactionHash(tx *externalapi.DomainTransaction) externalapi.DomainHash {
	blob, err := serialization.TransactionToBytes(tx)
	if err != nil {
		panic(errors.Wrap(err, "TransactionHash() failed. this should never fail for structurally-valid transactions"))
	}
	return hashes.Keccak(blob)
}

// TransactionPrefixHash returns the hash ring signatures sign.
func TransactionPrefixHash(tx *externalapi.DomainTransaction) externalapi.DomainHash {
	prefix, err := serialization.TransactionPrefixToBytes(tx)
	if err != nil {
		panic(errors.Wrap(err, "TransactionPrefixHash() failed. this should never fail for structurally-valid transactions"))
	}
	return hashes.Keccak(prefix)
}

// TransactionBlobSize returns the size of the transaction's wire form.
func TransactionBlobSize(tx *externalapi.DomainTransaction) uint64 {
	blob, err := serialization.TransactionToBytes(tx)
	if err != nil {
		panic(errors.Wrap(err, "TransactionBlobSize() failed. this should never fail for structurally-valid transactions"))
	}
	return uint64(len(blob))
}
