package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// ChainView is a read only view of one branch of the segment tree: a
// segment and its ancestors up to the root. Every query is bounded by an
// explicit block index so a view can be used to validate a block that
// forks below the top of the segment.
type ChainView interface {
	BlockInfo(blockIndex uint32) (*externalapi.CachedBlockInfo, error)

	CheckIfSpent(keyImage externalapi.KeyImage, blockIndex uint32) (bool, error)
	CheckIfAnySpent(keyImages []externalapi.KeyImage, blockIndex uint32) (bool, error)

	// ExtractKeyOutputKeys resolves sorted unique global indexes of outputs
	// of amount to their keys. Outputs are unlocked against blockIndex and
	// timestamp.
	ExtractKeyOutputKeys(amount uint64, blockIndex uint32, timestamp uint64,
		globalIndexes []uint32) ([]externalapi.PublicKey, externalapi.ExtractOutputKeysResult, error)

	// AvailableMixinsCount counts the outputs of amount that are old enough
	// to be used as mixins at blockIndex, stopping at threshold.
	AvailableMixinsCount(amount uint64, blockIndex uint32, threshold uint64) (uint64, error)

	LastTimestamps(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error)
	LastBlockSizes(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error)
	LastCumulativeDifficulties(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error)
}
