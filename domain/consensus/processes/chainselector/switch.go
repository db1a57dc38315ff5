package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/metrics"
)

// switchTo makes leaf the main chain leaf. The main chain store is
// rewound to the fork point and refilled from the new main chain, and the
// pool gets back the transactions of the blocks that left the main chain.
func (cs *chainSelector) switchTo(leaf segmenttree.SegmentID) error {
	oldLeaf := cs.mainLeaf()
	oldTopIndex := cs.topBlockIndex
	oldMainChainSet := cs.mainChainSet

	splitIndex, err := cs.forkIndex(leaf, oldMainChainSet)
	if err != nil {
		return err
	}

	var removedBlocks []*externalapi.RawBlock
	for blockIndex := splitIndex; blockIndex <= oldTopIndex; blockIndex++ {
		rawBlock, err := cs.tree.RawBlock(oldLeaf, blockIndex)
		if err != nil {
			return err
		}
		removedBlocks = append(removedBlocks, rawBlock)
	}

	for i, candidate := range cs.leaves {
		if candidate == leaf {
			cs.leaves[0], cs.leaves[i] = cs.leaves[i], cs.leaves[0]
			break
		}
	}
	err = cs.updateMainChainSet()
	if err != nil {
		return cs.fatalf(err, "failed to switch the main chain")
	}

	err = cs.rewindMainChainStore(splitIndex)
	if err != nil {
		return err
	}
	commonRootHash, err := cs.tree.BlockHash(leaf, splitIndex-1)
	if err != nil {
		return err
	}
	blockHashes := []externalapi.DomainHash{commonRootHash}
	var addedTransactionHashes []externalapi.DomainHash
	var addedKeyImages []externalapi.KeyImage
	for blockIndex := splitIndex; blockIndex <= cs.topBlockIndex; blockIndex++ {
		rawBlock, err := cs.tree.RawBlock(leaf, blockIndex)
		if err != nil {
			return err
		}
		err = cs.mainChainStore.PushBlock(rawBlock)
		if err != nil {
			return cs.fatalf(err, "failed to store main chain block %d", blockIndex)
		}

		block, err := serialization.BlockFromBytes(rawBlock.Block)
		if err != nil {
			return cs.fatalf(err, "failed to parse stored block %d", blockIndex)
		}
		blockHashes = append(blockHashes, consensushashing.BlockHash(block))
		addedTransactionHashes = append(addedTransactionHashes, block.TransactionHashes...)
		keyImages, err := cs.tree.SpentKeyImagesAt(leaf, blockIndex)
		if err != nil {
			return err
		}
		addedKeyImages = append(addedKeyImages, keyImages...)
	}

	cs.sendEvent(&externalapi.ChainSwitched{CommonRootIndex: splitIndex - 1, BlockHashes: blockHashes})
	metrics.ChainSwitches.Inc()
	metrics.ReorganizationDepth.Observe(float64(oldTopIndex - splitIndex + 1))

	cs.pool.RemoveTransactions(addedTransactionHashes, externalapi.DeletionReasonAddedToMainChain)
	cs.pool.RemoveTransactionsSpending(addedKeyImages)
	cs.pool.PushBackTransactions(cs.orphanedTransactions(removedBlocks))

	log.Infof("Switched the main chain at %d: %d blocks replaced by %d, new top %d %s",
		splitIndex-1, oldTopIndex-splitIndex+1, cs.topBlockIndex-splitIndex+1, cs.topBlockIndex, cs.topBlockHash)
	return nil
}

// forkIndex returns the index of the first block of the path of leaf that
// is not on the main chain described by mainChainSet.
func (cs *chainSelector) forkIndex(leaf segmenttree.SegmentID,
	mainChainSet map[segmenttree.SegmentID]struct{}) (uint32, error) {

	path, err := cs.tree.Path(leaf)
	if err != nil {
		return 0, err
	}
	for i := len(path) - 1; i >= 0; i-- {
		if _, ok := mainChainSet[path[i]]; !ok {
			return cs.tree.StartIndex(path[i])
		}
	}
	return cs.tree.StartIndex(leaf)
}

// rewindMainChainStore pops main chain store blocks until blockCount are
// left.
func (cs *chainSelector) rewindMainChainStore(blockCount uint32) error {
	storedCount, err := cs.mainChainStore.BlockCount()
	if err != nil {
		return cs.fatalf(err, "failed to read the main chain store")
	}
	for ; storedCount > blockCount; storedCount-- {
		err = cs.mainChainStore.PopBlock()
		if err != nil {
			return cs.fatalf(err, "failed to pop main chain block %d", storedCount-1)
		}
	}
	return nil
}

// orphanedTransactions returns the body transactions of blocks that left
// the main chain that are neither on the new main chain nor invalid on
// top of it.
func (cs *chainSelector) orphanedTransactions(removedBlocks []*externalapi.RawBlock) []*model.PoolTransaction {
	var orphaned []*model.PoolTransaction
	for _, rawBlock := range removedBlocks {
		for _, transactionBytes := range rawBlock.Transactions {
			transaction, err := serialization.TransactionFromBytes(transactionBytes)
			if err != nil {
				log.Warnf("Skipping unparsable transaction of a replaced block: %s", err)
				continue
			}
			poolTransaction, err := cs.validatePoolTransaction(transaction, transactionBytes)
			if err != nil {
				log.Debugf("Dropping transaction %s of a replaced block: %s",
					consensushashing.TransactionHash(transaction), err)
				continue
			}
			orphaned = append(orphaned, poolTransaction)
		}
	}
	return orphaned
}
