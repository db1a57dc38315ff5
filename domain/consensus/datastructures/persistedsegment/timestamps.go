package persistedsegment

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/infrastructure/db/database"
)

func (ps *persistedSegment) PaymentIDTransactions(paymentID externalapi.DomainHash) ([]externalapi.DomainHash, error) {
	cursor, err := ps.db.Cursor(ps.keys.paymentIDBucket(paymentID))
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var transactionHashes []externalapi.DomainHash
	for ok := cursor.First(); ok; ok = cursor.Next() {
		value, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		transactionHash, err := externalapi.NewDomainHashFromByteSlice(value)
		if err != nil {
			return nil, err
		}
		transactionHashes = append(transactionHashes, transactionHash)
	}
	return transactionHashes, nil
}

// TimestampLowerBound starts from the first block of the UTC day of
// timestamp, found through the midnight index, and scans forward from
// there.
func (ps *persistedSegment) TimestampLowerBound(timestamp uint64) (uint32, error) {
	end := ps.startIndex + ps.blockCount

	cursor, err := ps.db.Cursor(ps.keys.midnights)
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	midnight := utcMidnight(timestamp)
	err = cursor.Seek(ps.keys.midnightKey(midnight))
	if err != nil {
		if database.IsNotFoundError(err) {
			return end, nil
		}
		return 0, err
	}
	key, err := cursor.Key()
	if err != nil {
		return 0, err
	}
	value, err := cursor.Value()
	if err != nil {
		return 0, err
	}
	foundMidnight, err := bytesUint64(key.Suffix())
	if err != nil {
		return 0, err
	}
	blockIndex, err := bytesUint32(value)
	if err != nil {
		return 0, err
	}
	if foundMidnight != midnight {
		// No block of that day: the first block of a later day is the
		// first block past timestamp.
		return blockIndex, nil
	}

	for ; blockIndex < end; blockIndex++ {
		info, err := ps.BlockInfo(blockIndex)
		if err != nil {
			return 0, err
		}
		if info.Timestamp >= timestamp {
			return blockIndex, nil
		}
	}
	return end, nil
}

func (ps *persistedSegment) BlockHashesByTimestampRange(begin, end uint64) ([]externalapi.DomainHash, error) {
	if begin > end {
		return nil, nil
	}
	firstBlockIndex, err := ps.TimestampLowerBound(begin)
	if err != nil {
		return nil, err
	}

	var matching []*externalapi.CachedBlockInfo
	for blockIndex := firstBlockIndex; blockIndex < ps.startIndex+ps.blockCount; blockIndex++ {
		info, err := ps.BlockInfo(blockIndex)
		if err != nil {
			return nil, err
		}
		if info.Timestamp > end {
			break
		}
		if info.Timestamp >= begin {
			matching = append(matching, info)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Timestamp < matching[j].Timestamp
	})

	blockHashes := make([]externalapi.DomainHash, len(matching))
	for i, info := range matching {
		blockHashes[i] = info.BlockHash
	}
	return blockHashes, nil
}
