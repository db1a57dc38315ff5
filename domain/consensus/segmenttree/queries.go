package segmenttree

import (
	"math"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/multiset"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// owner returns the segment on the path of id that holds blockIndex.
func (t *Tree) owner(id SegmentID, blockIndex uint32) (*segment, error) {
	seg, err := t.segment(id)
	if err != nil {
		return nil, err
	}
	top, err := topIndex(seg)
	if err != nil || blockIndex > top {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d is above the top of segment %d", blockIndex, id)
	}
	for blockIndex < seg.storage.StartIndex() {
		seg = t.segments[seg.parent]
	}
	return seg, nil
}

// BlockInfo returns the info of the block at blockIndex on the path of id.
func (t *Tree) BlockInfo(id SegmentID, blockIndex uint32) (*externalapi.CachedBlockInfo, error) {
	seg, err := t.owner(id, blockIndex)
	if err != nil {
		return nil, err
	}
	return seg.storage.BlockInfo(blockIndex)
}

// BlockHash returns the hash of the block at blockIndex on the path of id.
func (t *Tree) BlockHash(id SegmentID, blockIndex uint32) (externalapi.DomainHash, error) {
	info, err := t.BlockInfo(id, blockIndex)
	if err != nil {
		return externalapi.DomainHash{}, err
	}
	return info.BlockHash, nil
}

// TopBlockInfo returns the info of the highest block on the path of id.
func (t *Tree) TopBlockInfo(id SegmentID) (*externalapi.CachedBlockInfo, error) {
	top, err := t.TopBlockIndex(id)
	if err != nil {
		return nil, err
	}
	return t.BlockInfo(id, top)
}

// RawBlock returns the block at blockIndex on the path of id.
func (t *Tree) RawBlock(id SegmentID, blockIndex uint32) (*externalapi.RawBlock, error) {
	seg, err := t.owner(id, blockIndex)
	if err != nil {
		return nil, err
	}
	return seg.storage.RawBlock(blockIndex)
}

// SpentKeyImagesAt returns the key images spent by the block at blockIndex
// on the path of id.
func (t *Tree) SpentKeyImagesAt(id SegmentID, blockIndex uint32) ([]externalapi.KeyImage, error) {
	seg, err := t.owner(id, blockIndex)
	if err != nil {
		return nil, err
	}
	return seg.storage.SpentKeyImagesAt(blockIndex)
}

// BlockIndexByHash looks blockHash up on the path of id.
func (t *Tree) BlockIndexByHash(id SegmentID, blockHash externalapi.DomainHash) (uint32, bool, error) {
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return 0, false, err
		}
		blockIndex, found, err := seg.storage.BlockIndexByHash(blockHash)
		if err != nil || found {
			return blockIndex, found, err
		}
		current = seg.parent
	}
	return 0, false, nil
}

// FindBlock looks blockHash up in every segment of the tree and returns
// the segment that holds it.
func (t *Tree) FindBlock(blockHash externalapi.DomainHash) (SegmentID, uint32, bool, error) {
	for _, id := range t.Segments() {
		blockIndex, found, err := t.segments[id].storage.BlockIndexByHash(blockHash)
		if err != nil {
			return NoSegment, 0, false, err
		}
		if found {
			return id, blockIndex, true, nil
		}
	}
	return NoSegment, 0, false, nil
}

// TransactionInfo looks transactionHash up on the path of id.
func (t *Tree) TransactionInfo(id SegmentID, transactionHash externalapi.DomainHash) (
	*externalapi.CachedTransactionInfo, bool, error) {

	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return nil, false, err
		}
		info, found, err := seg.storage.TransactionInfo(transactionHash)
		if err != nil || found {
			return info, found, err
		}
		current = seg.parent
	}
	return nil, false, nil
}

// TransactionInfoAt returns the transaction at transactionIndex of the
// block at blockIndex on the path of id.
func (t *Tree) TransactionInfoAt(id SegmentID, blockIndex uint32, transactionIndex uint16) (
	*externalapi.CachedTransactionInfo, error) {

	seg, err := t.owner(id, blockIndex)
	if err != nil {
		return nil, err
	}
	return seg.storage.TransactionInfoAt(blockIndex, transactionIndex)
}

// TransactionCount returns the number of transactions on the path of id.
func (t *Tree) TransactionCount(id SegmentID) (uint64, error) {
	count := uint64(0)
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return 0, err
		}
		segmentCount, err := seg.storage.TransactionCount()
		if err != nil {
			return 0, err
		}
		count += segmentCount
		current = seg.parent
	}
	return count, nil
}

// CheckIfSpent returns whether keyImage was spent by a block at or below
// blockIndex on the path of id.
func (t *Tree) CheckIfSpent(id SegmentID, keyImage externalapi.KeyImage, blockIndex uint32) (bool, error) {
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return false, err
		}
		current = seg.parent
		if blockIndex < seg.storage.StartIndex() {
			continue
		}
		spentAt, found, err := seg.storage.KeyImageSpentAt(keyImage)
		if err != nil {
			return false, err
		}
		if found {
			return spentAt <= blockIndex, nil
		}
	}
	return false, nil
}

// CheckIfAnySpent returns whether any of keyImages was spent by a block at
// or below blockIndex on the path of id.
func (t *Tree) CheckIfAnySpent(id SegmentID, keyImages []externalapi.KeyImage, blockIndex uint32) (bool, error) {
	for _, keyImage := range keyImages {
		spent, err := t.CheckIfSpent(id, keyImage, blockIndex)
		if err != nil || spent {
			return spent, err
		}
	}
	return false, nil
}

// BlockHashes returns up to maxCount main chain hashes of the path of id,
// starting at startIndex.
func (t *Tree) BlockHashes(id SegmentID, startIndex uint32, maxCount uint32) ([]externalapi.DomainHash, error) {
	path, err := t.Path(id)
	if err != nil {
		return nil, err
	}
	var blockHashes []externalapi.DomainHash
	for i := len(path) - 1; i >= 0; i-- {
		storage := t.segments[path[i]].storage
		end := storage.StartIndex() + storage.BlockCount()
		blockIndex := storage.StartIndex()
		if startIndex > blockIndex {
			blockIndex = startIndex
		}
		for ; blockIndex < end && uint32(len(blockHashes)) < maxCount; blockIndex++ {
			info, err := storage.BlockInfo(blockIndex)
			if err != nil {
				return nil, err
			}
			blockHashes = append(blockHashes, info.BlockHash)
		}
	}
	return blockHashes, nil
}

// TransactionHashesByPaymentID returns the transactions on the path of id
// carrying paymentID, oldest first.
func (t *Tree) TransactionHashesByPaymentID(id SegmentID, paymentID externalapi.DomainHash) (
	[]externalapi.DomainHash, error) {

	path, err := t.Path(id)
	if err != nil {
		return nil, err
	}
	var transactionHashes []externalapi.DomainHash
	for i := len(path) - 1; i >= 0; i-- {
		segmentHashes, err := t.segments[path[i]].storage.PaymentIDTransactions(paymentID)
		if err != nil {
			return nil, err
		}
		transactionHashes = append(transactionHashes, segmentHashes...)
	}
	log.Debugf("Found %d transactions with payment id %s", len(transactionHashes), paymentID)
	return transactionHashes, nil
}

// BlockHashesByTimestamps returns the hashes of the blocks on the path of
// id whose timestamp is in [timestampBegin, timestampBegin+secondsCount).
func (t *Tree) BlockHashesByTimestamps(id SegmentID, timestampBegin uint64, secondsCount uint64) (
	[]externalapi.DomainHash, error) {

	if secondsCount == 0 {
		return nil, nil
	}
	timestampEnd := uint64(math.MaxUint64)
	if timestampBegin <= math.MaxUint64-(secondsCount-1) {
		timestampEnd = timestampBegin + secondsCount - 1
	}

	path, err := t.Path(id)
	if err != nil {
		return nil, err
	}
	var blockHashes []externalapi.DomainHash
	for i := len(path) - 1; i >= 0; i-- {
		segmentHashes, err := t.segments[path[i]].storage.BlockHashesByTimestampRange(timestampBegin, timestampEnd)
		if err != nil {
			return nil, err
		}
		blockHashes = append(blockHashes, segmentHashes...)
	}
	return blockHashes, nil
}

// TimestampLowerBound returns the index of the first block on the path of
// id whose timestamp is at least timestamp. found is false when the top
// block of id is older than timestamp.
func (t *Tree) TimestampLowerBound(id SegmentID, timestamp uint64) (blockIndex uint32, found bool, err error) {
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return 0, false, err
		}
		current = seg.parent
		storage := seg.storage
		if storage.BlockCount() == 0 {
			continue
		}

		top, err := storage.BlockInfo(storage.StartIndex() + storage.BlockCount() - 1)
		if err != nil {
			return 0, false, err
		}
		if top.Timestamp < timestamp {
			// The segment above, if any, starts with the block we look for.
			return blockIndex, found, nil
		}
		first, err := storage.BlockInfo(storage.StartIndex())
		if err != nil {
			return 0, false, err
		}
		if first.Timestamp < timestamp {
			blockIndex, err = storage.TimestampLowerBound(timestamp)
			if err != nil {
				return 0, false, err
			}
			return blockIndex, true, nil
		}
		blockIndex, found = storage.StartIndex(), true
	}
	return blockIndex, found, nil
}

// lastUnits returns the values pick extracts from the infos of up to count
// blocks ending at blockIndex on the path of id, oldest first. Genesis is
// left out unless useGenesis is set.
func (t *Tree) lastUnits(id SegmentID, count uint32, blockIndex uint32, useGenesis bool,
	pick func(*externalapi.CachedBlockInfo) uint64) ([]uint64, error) {

	seg, err := t.segment(id)
	if err != nil {
		return nil, err
	}
	top, err := topIndex(seg)
	if err != nil {
		return nil, err
	}
	if blockIndex > top {
		return nil, nil
	}

	// Chunks are collected from the top down and reversed at the end.
	var chunks [][]uint64
	remaining := count
	for remaining > 0 {
		storage := seg.storage
		to := uint32(0)
		if blockIndex >= storage.StartIndex() {
			to = blockIndex - storage.StartIndex() + 1
		}
		realCount := remaining
		if to < realCount {
			realCount = to
		}
		from := to - realCount
		if !useGenesis && from == 0 && realCount != 0 && seg.parent == NoSegment {
			from++
			realCount--
		}

		chunk := make([]uint64, 0, realCount)
		for offset := from; offset < to; offset++ {
			info, err := storage.BlockInfo(storage.StartIndex() + offset)
			if err != nil {
				return nil, err
			}
			chunk = append(chunk, pick(info))
		}
		chunks = append(chunks, chunk)
		remaining -= realCount

		if seg.parent == NoSegment {
			break
		}
		seg = t.segments[seg.parent]
		parentTop, err := topIndex(seg)
		if err != nil {
			return nil, err
		}
		if parentTop < blockIndex {
			blockIndex = parentTop
		}
	}

	var units []uint64
	for i := len(chunks) - 1; i >= 0; i-- {
		units = append(units, chunks[i]...)
	}
	return units, nil
}

// LastTimestamps returns the timestamps of up to count blocks ending at
// blockIndex on the path of id, oldest first.
func (t *Tree) LastTimestamps(id SegmentID, count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	return t.lastUnits(id, count, blockIndex, useGenesis, func(info *externalapi.CachedBlockInfo) uint64 {
		return info.Timestamp
	})
}

// LastBlockSizes returns the blob sizes of up to count blocks ending at
// blockIndex on the path of id, oldest first.
func (t *Tree) LastBlockSizes(id SegmentID, count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	return t.lastUnits(id, count, blockIndex, useGenesis, func(info *externalapi.CachedBlockInfo) uint64 {
		return info.BlobSize
	})
}

// LastCumulativeDifficulties returns the cumulative difficulties of up to
// count blocks ending at blockIndex on the path of id, oldest first.
func (t *Tree) LastCumulativeDifficulties(id SegmentID, count uint32, blockIndex uint32, useGenesis bool) (
	[]uint64, error) {

	return t.lastUnits(id, count, blockIndex, useGenesis, func(info *externalapi.CachedBlockInfo) uint64 {
		return info.CumulativeDifficulty
	})
}

// KeyImageCommitment combines the key image commitments of every segment
// on the path of id.
func (t *Tree) KeyImageCommitment(id SegmentID) (model.Multiset, error) {
	commitment := multiset.New()
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return nil, err
		}
		segmentCommitment, err := seg.storage.KeyImageCommitment()
		if err != nil {
			return nil, err
		}
		commitment.Combine(segmentCommitment)
		current = seg.parent
	}
	return commitment, nil
}
