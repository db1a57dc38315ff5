package segmenttree

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// PaymentID returns the payment id carried in the extra of tx, or nil if
// it carries none or the extra cannot be parsed.
func PaymentID(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	extra, err := serialization.ParseTransactionExtra(tx.Extra)
	if err != nil {
		return nil
	}
	return extra.PaymentID
}

// NewPushedTransaction returns what a segment indexes of tx. The static
// reward transaction is deterministically generated and is never indexed
// by payment id.
func NewPushedTransaction(tx *externalapi.DomainTransaction, isStaticReward bool) *model.PushedTransaction {
	pushed := &model.PushedTransaction{
		Hash:                         consensushashing.TransactionHash(tx),
		UnlockTime:                   tx.UnlockTime,
		Outputs:                      tx.Outputs,
		IsDeterministicallyGenerated: isStaticReward,
	}
	if !isStaticReward {
		pushed.PaymentID = PaymentID(tx)
	}
	return pushed
}

// blockDiff returns the info of blockIndex and the difficulty and coins
// the block itself contributed to the cumulative fields.
func (t *Tree) blockDiff(id SegmentID, blockIndex uint32) (info *externalapi.CachedBlockInfo,
	difficulty, generatedCoins, transactionCount uint64, err error) {

	info, err = t.BlockInfo(id, blockIndex)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if blockIndex == 0 {
		return info, info.CumulativeDifficulty, info.AlreadyGeneratedCoins, info.AlreadyGeneratedTransactions, nil
	}
	previous, err := t.BlockInfo(id, blockIndex-1)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return info,
		info.CumulativeDifficulty - previous.CumulativeDifficulty,
		info.AlreadyGeneratedCoins - previous.AlreadyGeneratedCoins,
		info.AlreadyGeneratedTransactions - previous.AlreadyGeneratedTransactions,
		nil
}

// PushedBlockInfo returns the block at blockIndex on the path of id in the
// form it was pushed in.
func (t *Tree) PushedBlockInfo(id SegmentID, blockIndex uint32) (*externalapi.PushedBlockInfo, error) {
	info, difficulty, generatedCoins, _, err := t.blockDiff(id, blockIndex)
	if err != nil {
		return nil, err
	}
	rawBlock, err := t.RawBlock(id, blockIndex)
	if err != nil {
		return nil, err
	}
	spentKeyImages, err := t.SpentKeyImagesAt(id, blockIndex)
	if err != nil {
		return nil, err
	}
	return &externalapi.PushedBlockInfo{
		RawBlock:       rawBlock,
		SpentKeyImages: spentKeyImages,
		BlobSize:       info.BlobSize,
		GeneratedCoins: generatedCoins,
		Difficulty:     difficulty,
	}, nil
}

// BlockPush rebuilds the push of the block at blockIndex on the path of id
// so that it can be pushed again into another segment.
func (t *Tree) BlockPush(id SegmentID, blockIndex uint32) (*model.BlockPush, error) {
	info, difficulty, generatedCoins, transactionCount, err := t.blockDiff(id, blockIndex)
	if err != nil {
		return nil, err
	}
	rawBlock, err := t.RawBlock(id, blockIndex)
	if err != nil {
		return nil, err
	}
	spentKeyImages, err := t.SpentKeyImagesAt(id, blockIndex)
	if err != nil {
		return nil, err
	}
	block, err := serialization.BlockFromBytes(rawBlock.Block)
	if err != nil {
		return nil, errors.Wrapf(err, "stored block %d cannot be parsed", blockIndex)
	}

	staticTransactions := uint64(1)
	if block.HasStaticReward() {
		staticTransactions++
	}
	if transactionCount != staticTransactions+uint64(len(rawBlock.Transactions)) {
		return nil, errors.Errorf("block %d has %d stored transactions, expected %d", blockIndex,
			transactionCount, staticTransactions+uint64(len(rawBlock.Transactions)))
	}

	transactions := make([]*model.PushedTransaction, transactionCount)
	for i := range transactions {
		transactionInfo, err := t.TransactionInfoAt(id, blockIndex, uint16(i))
		if err != nil {
			return nil, err
		}
		transactions[i] = &model.PushedTransaction{
			Hash:                         transactionInfo.TransactionHash,
			UnlockTime:                   transactionInfo.UnlockTime,
			Outputs:                      transactionInfo.Outputs,
			IsDeterministicallyGenerated: transactionInfo.IsDeterministicallyGenerated,
		}
	}
	transactions[0].PaymentID = PaymentID(block.BaseTransaction)
	for i, transactionBytes := range rawBlock.Transactions {
		tx, err := serialization.TransactionFromBytes(transactionBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "stored transaction %d of block %d cannot be parsed", i, blockIndex)
		}
		transactions[staticTransactions+uint64(i)].PaymentID = PaymentID(tx)
	}

	return &model.BlockPush{
		BlockHash:      info.BlockHash,
		Version:        info.Version,
		UpgradeVote:    info.UpgradeVote,
		Timestamp:      info.Timestamp,
		Transactions:   transactions,
		SpentKeyImages: spentKeyImages,
		BlobSize:       info.BlobSize,
		GeneratedCoins: generatedCoins,
		Difficulty:     difficulty,
		RawBlock:       rawBlock,
	}, nil
}
