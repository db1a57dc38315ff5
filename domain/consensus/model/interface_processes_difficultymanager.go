package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// DifficultyManager provides a method to resolve the
// difficulty value of a block
type DifficultyManager interface {
	// NextDifficulty returns the difficulty required of the block following
	// the blocks whose timestamps and cumulative difficulties are given,
	// oldest first.
	NextDifficulty(timestamps []uint64, cumulativeDifficulties []uint64) uint64
	// DifficultyForNextBlock returns the difficulty required of a block on
	// top of previousBlockIndex.
	DifficultyForNextBlock(view ChainView, previousBlockIndex uint32) (uint64, error)
	CheckProofOfWork(proofOfWorkHash externalapi.DomainHash, difficulty uint64) bool
}
