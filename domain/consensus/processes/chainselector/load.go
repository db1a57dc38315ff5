package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/logger"
	"github.com/pkg/errors"
)

func (cs *chainSelector) Load() error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "Load")
	defer onEnd()

	cs.lock.Lock()
	defer cs.lock.Unlock()

	root, found, err := cs.tree.LoadRoot()
	if err != nil {
		return err
	}
	if !found {
		root, err = cs.createGenesisRoot()
		if err != nil {
			return err
		}
	}
	cs.leaves = []segmenttree.SegmentID{root}
	err = cs.updateMainChainSet()
	if err != nil {
		return err
	}

	genesisHash, err := cs.tree.BlockHash(root, 0)
	if err != nil {
		return err
	}
	if genesisHash != cs.params.GenesisHash {
		return errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored genesis %s, expected %s",
			genesisHash, cs.params.GenesisHash)
	}

	err = cs.reconcileWithMainChainStore()
	if err != nil {
		return err
	}

	cs.initialized = true
	log.Infof("Loaded the chain, top block %d %s", cs.topBlockIndex, cs.topBlockHash)
	return nil
}

func (cs *chainSelector) createGenesisRoot() (segmenttree.SegmentID, error) {
	root, err := cs.tree.CreateRoot()
	if err != nil {
		return 0, err
	}

	genesis := cs.params.GenesisBlock
	generatedCoins := uint64(0)
	for _, output := range genesis.BaseTransaction.Outputs {
		generatedCoins += output.Amount
	}
	push := cs.buildBlockPush(genesis, cs.params.GenesisHash, 0, cs.params.GenesisRawBlock(), nil, nil,
		consensushashing.TransactionBlobSize(genesis.BaseTransaction), generatedCoins, 1)
	err = cs.tree.PushBlock(root, push)
	if err != nil {
		return 0, err
	}
	log.Infof("Created the root segment with genesis block %s", cs.params.GenesisHash)
	return root, nil
}

// reconcileWithMainChainStore brings the main leaf in line with the main
// chain store, which is written first and wins any disagreement. Blocks
// above the highest common block are cut from the segments and the
// stored blocks above it are imported.
func (cs *chainSelector) reconcileWithMainChainStore() error {
	storedCount, err := cs.mainChainStore.BlockCount()
	if err != nil {
		return err
	}
	if storedCount == 0 {
		err = cs.mainChainStore.PushBlock(cs.params.GenesisRawBlock())
		if err != nil {
			return err
		}
		storedCount = 1
	}

	commonIndex, found, err := cs.highestCommonBlock(storedCount)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrap(ruleerrors.ErrCorruptedBlockchain, "the main chain store and the segments share no block")
	}

	if cs.topBlockIndex > commonIndex {
		log.Warnf("Cutting the segments from %d down to %d to match the main chain store",
			cs.topBlockIndex, commonIndex)
		err = cs.tree.Cut(cs.mainLeaf(), commonIndex+1)
		if err != nil {
			return err
		}
		err = cs.updateTop()
		if err != nil {
			return err
		}
	}
	if storedCount > cs.topBlockIndex+1 {
		log.Infof("Rebuilding %d blocks from the main chain store", storedCount-cs.topBlockIndex-1)
		for blockIndex := cs.topBlockIndex + 1; blockIndex < storedCount; blockIndex++ {
			err = cs.importStoredBlock(blockIndex)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// highestCommonBlock returns the highest index at which the main chain
// store and the main leaf hold the same block.
func (cs *chainSelector) highestCommonBlock(storedCount uint32) (uint32, bool, error) {
	blockIndex := cs.topBlockIndex
	if storedCount-1 < blockIndex {
		blockIndex = storedCount - 1
	}
	for {
		rawBlock, err := cs.mainChainStore.GetBlockByIndex(blockIndex)
		if err != nil {
			return 0, false, err
		}
		block, err := serialization.BlockFromBytes(rawBlock.Block)
		if err != nil {
			return 0, false, errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored block %d: %s", blockIndex, err)
		}
		blockHash, err := cs.tree.BlockHash(cs.mainLeaf(), blockIndex)
		if err != nil {
			return 0, false, err
		}
		if consensushashing.BlockHash(block) == blockHash {
			return blockIndex, true, nil
		}
		if blockIndex == 0 {
			return 0, false, nil
		}
		blockIndex--
	}
}

// importStoredBlock pushes the stored main chain block at blockIndex onto
// the main leaf. Stored blocks were validated when they were added, so
// only their link to the current top is checked.
func (cs *chainSelector) importStoredBlock(blockIndex uint32) error {
	rawBlock, err := cs.mainChainStore.GetBlockByIndex(blockIndex)
	if err != nil {
		return err
	}
	block, err := serialization.BlockFromBytes(rawBlock.Block)
	if err != nil {
		return errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored block %d: %s", blockIndex, err)
	}
	if block.PreviousBlockHash != cs.topBlockHash {
		return errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored block %d does not extend %s",
			blockIndex, cs.topBlockHash)
	}
	blockHash := consensushashing.BlockHash(block)

	transactions := make([]*externalapi.DomainTransaction, len(rawBlock.Transactions))
	var spentKeyImages []externalapi.KeyImage
	blobSize := consensushashing.TransactionBlobSize(block.BaseTransaction)
	transactionsSize := uint64(0)
	fee := uint64(0)
	for i, transactionBytes := range rawBlock.Transactions {
		transaction, err := serialization.TransactionFromBytes(transactionBytes)
		if err != nil {
			return errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored block %d transaction %d: %s",
				blockIndex, i, err)
		}
		transactions[i] = transaction
		spentKeyImages = append(spentKeyImages, transaction.KeyImages()...)
		transactionsSize += uint64(len(transactionBytes))
		fee += transactionFee(transaction)
	}
	blobSize += transactionsSize

	view := cs.tree.View(cs.mainLeaf())
	difficulty, err := cs.difficultyManager.DifficultyForNextBlock(view, blockIndex-1)
	if err != nil {
		return err
	}
	_, emissionChange, err := cs.blockReward(block.Version, view, blockIndex-1, transactionsSize, fee)
	if err != nil {
		return errors.Wrapf(ruleerrors.ErrCorruptedBlockchain, "stored block %d: %s", blockIndex, err)
	}

	push := cs.buildBlockPush(block, blockHash, blockIndex, rawBlock, transactions, spentKeyImages,
		blobSize, emissionChange, difficulty)
	err = cs.tree.PushBlock(cs.mainLeaf(), push)
	if err != nil {
		return err
	}
	return cs.updateTop()
}

// transactionFee is the amount of the key inputs of transaction not paid
// to its outputs.
func transactionFee(transaction *externalapi.DomainTransaction) uint64 {
	inputs := uint64(0)
	for _, input := range transaction.Inputs {
		if keyInput, ok := input.(*externalapi.KeyInput); ok {
			inputs += keyInput.Amount
		}
	}
	outputs := uint64(0)
	for _, output := range transaction.Outputs {
		outputs += output.Amount
	}
	if outputs > inputs {
		return 0
	}
	return inputs - outputs
}
