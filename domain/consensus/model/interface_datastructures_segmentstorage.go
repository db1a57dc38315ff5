package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// BlockPush is everything a segment needs to append one validated block
// to its top.
type BlockPush struct {
	BlockHash      externalapi.DomainHash
	Version        uint8
	UpgradeVote    uint8
	Timestamp      uint64
	Transactions   []*PushedTransaction
	SpentKeyImages []externalapi.KeyImage
	BlobSize       uint64
	GeneratedCoins uint64
	Difficulty     uint64
	RawBlock       *externalapi.RawBlock
}

// PushedTransaction is what a segment indexes of one transaction of a
// BlockPush. The miner transaction comes first, then the static reward
// transaction if there is one, then the body transactions in block order.
type PushedTransaction struct {
	Hash                         externalapi.DomainHash
	UnlockTime                   uint64
	Outputs                      []*externalapi.DomainTransactionOutput
	PaymentID                    *externalapi.DomainHash
	IsDeterministicallyGenerated bool
}

// OutputCounter returns the number of key outputs of the given amount
// known to the ancestors of a segment. It is used to seed the global
// index of the first output of an amount that a segment receives.
type OutputCounter func(amount uint64) (uint32, error)

// SegmentStorage is the local data of one cache segment: the blocks in
// [StartIndex, StartIndex+BlockCount) and every index derived from them.
// Nothing in a SegmentStorage looks at ancestors; walking the tree is the
// job of the segment tree.
//
// Block indexes passed to and returned from a SegmentStorage are always
// absolute chain indexes.
type SegmentStorage interface {
	StartIndex() uint32
	BlockCount() uint32

	// PushBlock appends a block to the top of the segment. previous is the
	// info of the block directly below the pushed one, or nil for genesis.
	PushBlock(push *BlockPush, previous *externalapi.CachedBlockInfo, parentOutputs OutputCounter) error

	// Split moves every block with index >= at into upper, which must be an
	// empty storage of the same kind created with start index at.
	Split(at uint32, upper SegmentStorage) error

	// Delete drops all the data of the segment.
	Delete() error

	BlockInfo(blockIndex uint32) (*externalapi.CachedBlockInfo, error)
	BlockIndexByHash(blockHash externalapi.DomainHash) (blockIndex uint32, found bool, err error)
	RawBlock(blockIndex uint32) (*externalapi.RawBlock, error)

	// KeyImageSpentAt returns the index of the block that spent the key image
	// if this segment recorded it.
	KeyImageSpentAt(keyImage externalapi.KeyImage) (blockIndex uint32, found bool, err error)
	SpentKeyImagesAt(blockIndex uint32) ([]externalapi.KeyImage, error)

	TransactionInfo(transactionHash externalapi.DomainHash) (*externalapi.CachedTransactionInfo, bool, error)
	TransactionInfoAt(blockIndex uint32, transactionIndex uint16) (*externalapi.CachedTransactionInfo, error)
	TransactionCount() (uint64, error)

	// KeyOutputs returns the global index of the first local output of the
	// given amount and the number of local outputs of that amount.
	KeyOutputs(amount uint64) (startIndex uint32, count uint32, err error)
	// KeyOutputAt returns the locator of the output with the given global
	// index, which must be inside the local range of the amount.
	KeyOutputAt(amount uint64, globalIndex uint32) (externalapi.PackedOutIndex, error)
	// KeyOutputsUpTo returns how many local outputs of the amount were
	// created in blocks with index <= blockIndex.
	KeyOutputsUpTo(amount uint64, blockIndex uint32) (uint32, error)

	PaymentIDTransactions(paymentID externalapi.DomainHash) ([]externalapi.DomainHash, error)

	// TimestampLowerBound returns the first local block whose timestamp is
	// >= timestamp, assuming timestamps were non-decreasing.
	TimestampLowerBound(timestamp uint64) (uint32, error)
	// BlockHashesByTimestampRange returns the hashes of local blocks with
	// begin <= timestamp <= end, ordered by timestamp and then block index.
	BlockHashesByTimestampRange(begin, end uint64) ([]externalapi.DomainHash, error)

	// KeyImageCommitment is a multiset commitment over every key image the
	// segment recorded as spent.
	KeyImageCommitment() (Multiset, error)
}

// SegmentStorageFactory creates and loads segment storages of one kind.
type SegmentStorageFactory interface {
	NewSegmentStorage(startIndex uint32) (SegmentStorage, error)

	// LoadRoot returns the stored root segment if one exists.
	LoadRoot() (SegmentStorage, bool, error)
}

// CachedBlockInfo returns the info a segment keeps for the pushed block.
// previous is the info of the block below it, or nil for genesis.
func (push *BlockPush) CachedBlockInfo(previous *externalapi.CachedBlockInfo) *externalapi.CachedBlockInfo {
	info := &externalapi.CachedBlockInfo{
		BlockHash:                    push.BlockHash,
		Version:                      push.Version,
		UpgradeVote:                  push.UpgradeVote,
		Timestamp:                    push.Timestamp,
		BlobSize:                     push.BlobSize,
		CumulativeDifficulty:         push.Difficulty,
		AlreadyGeneratedCoins:        push.GeneratedCoins,
		AlreadyGeneratedTransactions: uint64(len(push.Transactions)),
	}
	if previous != nil {
		info.CumulativeDifficulty += previous.CumulativeDifficulty
		info.AlreadyGeneratedCoins += previous.AlreadyGeneratedCoins
		info.AlreadyGeneratedTransactions += previous.AlreadyGeneratedTransactions
	}
	return info
}
