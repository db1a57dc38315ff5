package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// CoinbaseManager computes block rewards and builds the transactions that
// create coins.
type CoinbaseManager interface {
	// BlockReward returns the reward a miner may claim for a block of the
	// given size and fees, and the number of coins the block creates.
	// ok is false if the block is too large to be rewarded at all.
	BlockReward(version uint8, medianSize uint64, currentBlockSize uint64,
		alreadyGeneratedCoins uint64, fee uint64) (reward uint64, emissionChange uint64, ok bool)

	// StaticRewardTransaction returns the static reward transaction of the
	// block at blockIndex, or nil if blocks of version have none.
	StaticRewardTransaction(version uint8, blockIndex uint32) *externalapi.DomainTransaction
	// StaticRewardHash returns the truncated hash a block of version at
	// blockIndex must carry, or nil.
	StaticRewardHash(version uint8, blockIndex uint32) *uint16

	// MinerTransaction builds a miner transaction paying reward to
	// publicKey.
	MinerTransaction(blockIndex uint32, reward uint64, publicKey externalapi.PublicKey) *externalapi.DomainTransaction
}
