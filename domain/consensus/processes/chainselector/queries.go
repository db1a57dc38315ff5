package chainselector

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

func (cs *chainSelector) GetTopBlockIndex() uint32 {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.topBlockIndex
}

func (cs *chainSelector) GetTopBlockHash() externalapi.DomainHash {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.topBlockHash
}

func (cs *chainSelector) GetBlockByIndex(blockIndex uint32) (*externalapi.BlockInfo, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	if blockIndex > cs.topBlockIndex {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d is above the main chain top %d",
			blockIndex, cs.topBlockIndex)
	}
	return cs.blockInfo(cs.mainLeaf(), blockIndex, true)
}

func (cs *chainSelector) GetBlockByHash(blockHash externalapi.DomainHash) (*externalapi.BlockInfo, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	id, blockIndex, found, err := cs.tree.FindBlock(blockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(database.ErrNotFound, "block %s", blockHash)
	}
	return cs.blockInfo(id, blockIndex, cs.isMainChainSegment(id))
}

func (cs *chainSelector) blockInfo(id segmenttree.SegmentID, blockIndex uint32,
	isMainChain bool) (*externalapi.BlockInfo, error) {

	info, err := cs.tree.BlockInfo(id, blockIndex)
	if err != nil {
		return nil, err
	}
	rawBlock, err := cs.tree.RawBlock(id, blockIndex)
	if err != nil {
		return nil, err
	}
	block, err := serialization.BlockFromBytes(rawBlock.Block)
	if err != nil {
		return nil, err
	}
	return &externalapi.BlockInfo{
		Index:       blockIndex,
		Block:       block,
		RawBlock:    rawBlock,
		Info:        info,
		IsMainChain: isMainChain,
	}, nil
}

func (cs *chainSelector) GetBlockHashes(startIndex uint32, maxCount uint32) ([]externalapi.DomainHash, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	return cs.tree.BlockHashes(cs.mainLeaf(), startIndex, maxCount)
}

// GetTransaction looks the transaction up on the main chain first and then
// on every alternative chain.
func (cs *chainSelector) GetTransaction(transactionHash externalapi.DomainHash) (*externalapi.TransactionInfo, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	for i, leaf := range cs.leaves {
		info, found, err := cs.tree.TransactionInfo(leaf, transactionHash)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		transaction, err := cs.transactionAt(leaf, info.BlockIndex, info.TransactionIndex)
		if err != nil {
			return nil, err
		}
		return &externalapi.TransactionInfo{
			Transaction: transaction,
			Info:        info,
			IsMainChain: i == 0,
		}, nil
	}
	return nil, errors.Wrapf(database.ErrNotFound, "transaction %s", transactionHash)
}

// transactionAt rebuilds a transaction from the raw block holding it,
// where transaction indexes count the miner transaction and the static
// reward transaction before the body.
func (cs *chainSelector) transactionAt(id segmenttree.SegmentID, blockIndex uint32,
	transactionIndex uint16) (*externalapi.DomainTransaction, error) {

	rawBlock, err := cs.tree.RawBlock(id, blockIndex)
	if err != nil {
		return nil, err
	}
	block, err := serialization.BlockFromBytes(rawBlock.Block)
	if err != nil {
		return nil, err
	}
	if transactionIndex == 0 {
		return block.BaseTransaction, nil
	}
	bodyIndex := int(transactionIndex) - 1
	if block.HasStaticReward() {
		if transactionIndex == 1 {
			return cs.coinbaseManager.StaticRewardTransaction(block.Version, blockIndex), nil
		}
		bodyIndex--
	}
	if bodyIndex >= len(rawBlock.Transactions) {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d has no transaction %d", blockIndex, transactionIndex)
	}
	return serialization.TransactionFromBytes(rawBlock.Transactions[bodyIndex])
}

func (cs *chainSelector) GetTransactionGlobalIndexes(transactionHash externalapi.DomainHash) ([]uint32, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	globalIndexes, found, err := cs.tree.TransactionGlobalIndexes(cs.mainLeaf(), transactionHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(database.ErrNotFound, "transaction %s is not on the main chain", transactionHash)
	}
	return globalIndexes, nil
}

// GetTransactionHashesByPaymentID returns the main chain transactions
// carrying paymentID followed by the pool transactions carrying it.
func (cs *chainSelector) GetTransactionHashesByPaymentID(paymentID externalapi.DomainHash) (
	[]externalapi.DomainHash, error) {

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	transactionHashes, err := cs.tree.TransactionHashesByPaymentID(cs.mainLeaf(), paymentID)
	if err != nil {
		return nil, err
	}
	return append(transactionHashes, cs.pool.TransactionHashesByPaymentID(paymentID)...), nil
}

func (cs *chainSelector) GetBlockHashesByTimestamps(timestampBegin uint64, secondsCount uint64) (
	[]externalapi.DomainHash, error) {

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	return cs.tree.BlockHashesByTimestamps(cs.mainLeaf(), timestampBegin, secondsCount)
}

// GetRandomOutsByAmount returns up to count sorted global indexes of
// outputs of amount that a transaction could use as mixins right now.
func (cs *chainSelector) GetRandomOutsByAmount(amount uint64, count uint64) ([]uint32, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	if cs.topBlockIndex < 2*cs.params.MinedMoneyUnlockWindow {
		return nil, errors.Errorf("the chain of %d blocks is too short to pick outputs from", cs.topBlockIndex+1)
	}
	globalIndexes, err := cs.tree.RandomOutsByAmount(cs.mainLeaf(), amount, count, cs.topBlockIndex,
		uint64(cs.clock.Now().Unix()))
	if err != nil {
		return nil, err
	}
	sort.Slice(globalIndexes, func(i, j int) bool { return globalIndexes[i] < globalIndexes[j] })
	return globalIndexes, nil
}

// GetCurrentRequiredMixin returns the number of decoys every ring of
// amount must hold in a transaction entering the pool now.
func (cs *chainSelector) GetCurrentRequiredMixin(amount uint64) (uint64, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return 0, err
	}
	return cs.tree.RequiredMixin(cs.mainLeaf(), amount, cs.topBlockIndex)
}

func (cs *chainSelector) GetDifficultyForNextBlock() (uint64, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return 0, err
	}
	return cs.difficultyManager.DifficultyForNextBlock(cs.tree.View(cs.mainLeaf()), cs.topBlockIndex)
}

// KeyImageCommitment returns the serialized multiset of every key image
// spent on the main chain.
func (cs *chainSelector) KeyImageCommitment() ([]byte, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	commitment, err := cs.tree.KeyImageCommitment(cs.mainLeaf())
	if err != nil {
		return nil, err
	}
	return commitment.Serialize(), nil
}
