package persistedsegment

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// moveKey moves the value of from to to and returns it.
func (ps *persistedSegment) moveKey(dbTx database.DataAccessor, from, to *database.Key) ([]byte, error) {
	value, err := ps.db.Get(from)
	if err != nil {
		return nil, err
	}
	err = dbTx.Put(to, value)
	if err != nil {
		return nil, err
	}
	err = dbTx.Delete(from)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (ps *persistedSegment) Split(at uint32, upperStorage model.SegmentStorage) error {
	upper, ok := upperStorage.(*persistedSegment)
	if !ok {
		return errors.Errorf("cannot split a persisted segment into %T", upperStorage)
	}
	top := ps.startIndex + ps.blockCount
	if at <= ps.startIndex || at >= top {
		return errors.Errorf("split index %d is outside of (%d, %d)", at, ps.startIndex, top)
	}
	if upper.startIndex != at || upper.blockCount != 0 {
		return errors.Errorf("split target must be empty and start at %d", at)
	}

	dbTx, err := ps.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	lowerCommitment := ps.keyImageCommitment.Clone()
	upperCommitment := upper.keyImageCommitment.Clone()
	movedAmounts := make(map[uint64]struct{})
	upperMidnights := make(map[uint64]struct{})
	movedTransactionCount := uint64(0)

	for blockIndex := at; blockIndex < top; blockIndex++ {
		infoBytes, err := ps.moveKey(dbTx, ps.keys.blockInfoKey(blockIndex), upper.keys.blockInfoKey(blockIndex))
		if err != nil {
			return err
		}
		info, err := serialization.CachedBlockInfoFromBytes(infoBytes)
		if err != nil {
			return err
		}
		_, err = ps.moveKey(dbTx, ps.keys.blockHashKey(info.BlockHash), upper.keys.blockHashKey(info.BlockHash))
		if err != nil {
			return err
		}
		_, err = ps.moveKey(dbTx, ps.keys.rawBlockKey(blockIndex), upper.keys.rawBlockKey(blockIndex))
		if err != nil {
			return err
		}

		midnight := utcMidnight(info.Timestamp)
		if _, ok := upperMidnights[midnight]; !ok {
			upperMidnights[midnight] = struct{}{}
			err = dbTx.Put(upper.keys.midnightKey(midnight), uint32Bytes(blockIndex))
			if err != nil {
				return err
			}
		}

		keyImagesBytes, err := ps.moveKey(dbTx, ps.keys.blockKeyImagesKey(blockIndex), upper.keys.blockKeyImagesKey(blockIndex))
		if err != nil {
			return err
		}
		keyImages, err := serialization.KeyImagesFromBytes(keyImagesBytes)
		if err != nil {
			return err
		}
		for _, keyImage := range keyImages {
			_, err = ps.moveKey(dbTx, ps.keys.spentKeyImageKey(keyImage), upper.keys.spentKeyImageKey(keyImage))
			if err != nil {
				return err
			}
			lowerCommitment.Remove(keyImage[:])
			upperCommitment.Add(keyImage[:])
		}

		transactionHashesBytes, err := ps.moveKey(dbTx, ps.keys.blockTransactionsKey(blockIndex),
			upper.keys.blockTransactionsKey(blockIndex))
		if err != nil {
			return err
		}
		transactionHashes, err := serialization.HashesFromBytes(transactionHashesBytes)
		if err != nil {
			return err
		}
		for transactionIndex, transactionHash := range transactionHashes {
			transactionBytes, err := ps.moveKey(dbTx, ps.keys.transactionKey(transactionHash),
				upper.keys.transactionKey(transactionHash))
			if err != nil {
				return err
			}
			transactionInfo, err := serialization.CachedTransactionInfoFromBytes(transactionBytes)
			if err != nil {
				return err
			}
			for _, output := range transactionInfo.Outputs {
				movedAmounts[output.Amount] = struct{}{}
			}

			err = ps.movePaymentID(dbTx, upper, transactionHash, blockIndex, uint16(transactionIndex))
			if err != nil {
				return err
			}
		}
		movedTransactionCount += uint64(len(transactionHashes))
	}

	for amount := range movedAmounts {
		err = ps.splitOutputs(dbTx, upper, amount, at)
		if err != nil {
			return err
		}
	}

	err = ps.deleteMidnightsFrom(dbTx, at)
	if err != nil {
		return err
	}

	lower := *ps
	lower.blockCount = at - ps.startIndex
	lower.transactionCount -= movedTransactionCount
	lower.keyImageCommitment = lowerCommitment
	err = lower.writeMetadata(dbTx)
	if err != nil {
		return err
	}
	upperResult := *upper
	upperResult.blockCount = top - at
	upperResult.transactionCount = movedTransactionCount
	upperResult.keyImageCommitment = upperCommitment
	err = upperResult.writeMetadata(dbTx)
	if err != nil {
		return err
	}

	err = dbTx.Commit()
	if err != nil {
		return err
	}

	ps.blockCount = lower.blockCount
	ps.transactionCount = lower.transactionCount
	ps.keyImageCommitment = lowerCommitment
	ps.recentBlockInfos.TruncateFrom(at)
	upper.blockCount = upperResult.blockCount
	upper.transactionCount = upperResult.transactionCount
	upper.keyImageCommitment = upperCommitment
	upper.recentBlockInfos.Clear()

	log.Debugf("Split persisted segment [%d, %d) at %d", ps.startIndex, top, at)
	return nil
}

func (ps *persistedSegment) movePaymentID(dbTx database.DataAccessor, upper *persistedSegment,
	transactionHash externalapi.DomainHash, blockIndex uint32, transactionIndex uint16) error {

	paymentIDBytes, err := ps.db.Get(ps.keys.transactionPaymentKey(transactionHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	paymentID, err := externalapi.NewDomainHashFromByteSlice(paymentIDBytes)
	if err != nil {
		return err
	}
	_, err = ps.moveKey(dbTx, ps.keys.transactionPaymentKey(transactionHash), upper.keys.transactionPaymentKey(transactionHash))
	if err != nil {
		return err
	}
	_, err = ps.moveKey(dbTx, ps.keys.paymentIDKey(paymentID, blockIndex, transactionIndex),
		upper.keys.paymentIDKey(paymentID, blockIndex, transactionIndex))
	return err
}

// splitOutputs moves the outputs of amount created at or above at to
// upper. Global indexes are absolute, so the keys keep their suffixes.
func (ps *persistedSegment) splitOutputs(dbTx database.DataAccessor, upper *persistedSegment, amount uint64, at uint32) error {
	counter, found, err := ps.outputCount(amount)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("moved an output of amount %d the segment has no counter for", amount)
	}
	lowerCount, err := ps.KeyOutputsUpTo(amount, at-1)
	if err != nil {
		return err
	}

	for globalIndex := counter.startIndex + lowerCount; globalIndex < counter.startIndex+counter.count; globalIndex++ {
		_, err = ps.moveKey(dbTx, ps.keys.outputKey(amount, globalIndex), upper.keys.outputKey(amount, globalIndex))
		if err != nil {
			return err
		}
	}

	upperCounter := &outputCount{startIndex: counter.startIndex + lowerCount, count: counter.count - lowerCount}
	err = dbTx.Put(upper.keys.outputCountKey(amount), serializeOutputCount(upperCounter))
	if err != nil {
		return err
	}
	if lowerCount == 0 {
		return dbTx.Delete(ps.keys.outputCountKey(amount))
	}
	return dbTx.Put(ps.keys.outputCountKey(amount), serializeOutputCount(&outputCount{
		startIndex: counter.startIndex,
		count:      lowerCount,
	}))
}

func (ps *persistedSegment) deleteMidnightsFrom(dbTx database.DataAccessor, at uint32) error {
	cursor, err := ps.db.Cursor(ps.keys.midnights)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for ok := cursor.First(); ok; ok = cursor.Next() {
		value, err := cursor.Value()
		if err != nil {
			return err
		}
		blockIndex, err := bytesUint32(value)
		if err != nil {
			return err
		}
		if blockIndex < at {
			continue
		}
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		err = dbTx.Delete(key)
		if err != nil {
			return err
		}
	}
	return nil
}
