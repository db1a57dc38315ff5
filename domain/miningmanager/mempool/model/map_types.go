package model

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// HashToTransaction maps a transaction hash to a MempoolTransaction
type HashToTransaction map[externalapi.DomainHash]*MempoolTransaction

// KeyImageToTransaction maps a key image to the MempoolTransaction spending it
type KeyImageToTransaction map[externalapi.KeyImage]*MempoolTransaction

// PaymentIDToTransactions maps a payment id to the hashes of the
// transactions carrying it
type PaymentIDToTransactions map[externalapi.DomainHash][]externalapi.DomainHash
