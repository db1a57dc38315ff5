package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// BlockValidator exposes a set of validation classes, after which
// it's possible to determine whether a block is valid
type BlockValidator interface {
	// ValidateBlock checks block against the chain seen through view up to
	// previousBlockIndex and returns the reward its miner transaction
	// claims.
	ValidateBlock(block *externalapi.DomainBlock, blockHash externalapi.DomainHash,
		previousBlockIndex uint32, view ChainView) (minerReward uint64, err error)
	CheckMergeMiningTag(block *externalapi.DomainBlock) error
	CheckProofOfWork(block *externalapi.DomainBlock, difficulty uint64) error
}
