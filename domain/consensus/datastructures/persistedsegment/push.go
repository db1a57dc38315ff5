package persistedsegment

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

const secondsPerDay = 24 * 60 * 60

// utcMidnight returns the start of the UTC day timestamp falls in.
func utcMidnight(timestamp uint64) uint64 {
	return timestamp - timestamp%secondsPerDay
}

func (ps *persistedSegment) PushBlock(push *model.BlockPush, previous *externalapi.CachedBlockInfo,
	parentOutputs model.OutputCounter) error {

	blockIndex := ps.startIndex + ps.blockCount
	_, exists, err := ps.BlockIndexByHash(push.BlockHash)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("block %s is already in the segment", push.BlockHash)
	}

	dbTx, err := ps.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	info := push.CachedBlockInfo(previous)
	err = dbTx.Put(ps.keys.blockInfoKey(blockIndex), serialization.CachedBlockInfoToBytes(info))
	if err != nil {
		return err
	}
	err = dbTx.Put(ps.keys.blockHashKey(push.BlockHash), uint32Bytes(blockIndex))
	if err != nil {
		return err
	}
	err = dbTx.Put(ps.keys.rawBlockKey(blockIndex), serialization.RawBlockToBytes(push.RawBlock))
	if err != nil {
		return err
	}

	// Writes of a transaction are not visible to its reads, so counters
	// touched by this block are staged here.
	stagedOutputCounts := make(map[uint64]*outputCount)
	transactionHashes := make([]externalapi.DomainHash, len(push.Transactions))
	for transactionIndex, transaction := range push.Transactions {
		globalIndexes := make([]uint32, len(transaction.Outputs))
		for outputIndex, output := range transaction.Outputs {
			counter, ok := stagedOutputCounts[output.Amount]
			if !ok {
				var found bool
				counter, found, err = ps.outputCount(output.Amount)
				if err != nil {
					return err
				}
				if !found {
					startIndex, err := parentOutputs(output.Amount)
					if err != nil {
						return err
					}
					counter = &outputCount{startIndex: startIndex}
				}
				stagedOutputCounts[output.Amount] = counter
			}

			globalIndex := counter.startIndex + counter.count
			globalIndexes[outputIndex] = globalIndex
			counter.count++
			packed := externalapi.PackedOutIndex{
				BlockIndex:       blockIndex,
				TransactionIndex: uint16(transactionIndex),
				OutputIndex:      uint16(outputIndex),
			}
			err = dbTx.Put(ps.keys.outputKey(output.Amount, globalIndex), serialization.PackedOutIndexToBytes(packed))
			if err != nil {
				return err
			}
		}

		infoBytes, err := serialization.CachedTransactionInfoToBytes(&externalapi.CachedTransactionInfo{
			BlockIndex:                   blockIndex,
			TransactionIndex:             uint16(transactionIndex),
			TransactionHash:              transaction.Hash,
			UnlockTime:                   transaction.UnlockTime,
			Outputs:                      transaction.Outputs,
			GlobalIndexes:                globalIndexes,
			IsDeterministicallyGenerated: transaction.IsDeterministicallyGenerated,
		})
		if err != nil {
			return err
		}
		err = dbTx.Put(ps.keys.transactionKey(transaction.Hash), infoBytes)
		if err != nil {
			return err
		}
		transactionHashes[transactionIndex] = transaction.Hash

		if transaction.PaymentID != nil {
			err = ps.putPaymentID(dbTx, *transaction.PaymentID, transaction.Hash, blockIndex, uint16(transactionIndex))
			if err != nil {
				return err
			}
		}
	}
	for amount, counter := range stagedOutputCounts {
		err = dbTx.Put(ps.keys.outputCountKey(amount), serializeOutputCount(counter))
		if err != nil {
			return err
		}
	}
	err = dbTx.Put(ps.keys.blockTransactionsKey(blockIndex), serialization.HashesToBytes(transactionHashes))
	if err != nil {
		return err
	}

	err = dbTx.Put(ps.keys.blockKeyImagesKey(blockIndex), serialization.KeyImagesToBytes(push.SpentKeyImages))
	if err != nil {
		return err
	}
	keyImageCommitment := ps.keyImageCommitment.Clone()
	for _, keyImage := range push.SpentKeyImages {
		err = dbTx.Put(ps.keys.spentKeyImageKey(keyImage), uint32Bytes(blockIndex))
		if err != nil {
			return err
		}
		keyImageCommitment.Add(keyImage[:])
	}

	err = ps.indexMidnight(dbTx, push.Timestamp, blockIndex)
	if err != nil {
		return err
	}

	pushed := *ps
	pushed.blockCount++
	pushed.transactionCount += uint64(len(push.Transactions))
	pushed.keyImageCommitment = keyImageCommitment
	err = pushed.writeMetadata(dbTx)
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}

	ps.blockCount = pushed.blockCount
	ps.transactionCount = pushed.transactionCount
	ps.keyImageCommitment = keyImageCommitment
	ps.recentBlockInfos.Push(blockIndex, info)
	return nil
}

func (ps *persistedSegment) putPaymentID(dbTx database.DataAccessor, paymentID externalapi.DomainHash,
	transactionHash externalapi.DomainHash, blockIndex uint32, transactionIndex uint16) error {

	err := dbTx.Put(ps.keys.paymentIDKey(paymentID, blockIndex, transactionIndex), transactionHash.ByteSlice())
	if err != nil {
		return err
	}
	return dbTx.Put(ps.keys.transactionPaymentKey(transactionHash), paymentID.ByteSlice())
}

// indexMidnight records blockIndex as the first block of the UTC day of
// timestamp unless an earlier block of that day is already recorded.
func (ps *persistedSegment) indexMidnight(dbTx database.DataAccessor, timestamp uint64, blockIndex uint32) error {
	midnightKey := ps.keys.midnightKey(utcMidnight(timestamp))
	// The transaction cannot see its own writes, so check the database.
	exists, err := ps.db.Has(midnightKey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return dbTx.Put(midnightKey, uint32Bytes(blockIndex))
}
