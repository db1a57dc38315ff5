package model

import (
	"time"

	consensusmodel "github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// MempoolTransaction represents a transaction inside the main TransactionPool
type MempoolTransaction struct {
	*consensusmodel.PoolTransaction
	PaymentID   *externalapi.DomainHash
	ReceiveTime time.Time
}

// TransactionHash returns the hash of this MempoolTransaction
func (mt *MempoolTransaction) TransactionHash() externalapi.DomainHash {
	return mt.Hash
}
