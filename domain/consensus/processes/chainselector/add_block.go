package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/math"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/logger"
	"github.com/cnchain/cnd/infrastructure/metrics"
	"github.com/pkg/errors"
)

// validatedBlock is a block that passed every check and is ready to be
// placed.
type validatedBlock struct {
	block          *externalapi.DomainBlock
	blockHash      externalapi.DomainHash
	blockIndex     uint32
	parentSegment  segmenttree.SegmentID
	push           *model.BlockPush
	spentKeyImages []externalapi.KeyImage
}

func (cs *chainSelector) AddBlock(rawBlock *externalapi.RawBlock) (externalapi.AddBlockOutcome, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "AddBlock")
	defer onEnd()

	cs.lock.Lock()
	defer cs.lock.Unlock()

	outcome, err := cs.addBlock(rawBlock)
	if err != nil {
		metrics.BlocksProcessed.WithLabelValues("rejected").Inc()
		return 0, err
	}
	metrics.BlocksProcessed.WithLabelValues(outcome.String()).Inc()
	return outcome, nil
}

func (cs *chainSelector) addBlock(rawBlock *externalapi.RawBlock) (externalapi.AddBlockOutcome, error) {
	err := cs.checkInitialized()
	if err != nil {
		return 0, err
	}

	validated, err := cs.validateBlock(rawBlock)
	if err != nil {
		log.Debugf("Block rejected: %s", err)
		return 0, err
	}

	outcome, err := cs.placeBlock(validated)
	if err != nil {
		return 0, err
	}

	switch outcome {
	case externalapi.AddedToMain:
		cs.pool.RemoveTransactions(validated.block.TransactionHashes, externalapi.DeletionReasonAddedToMainChain)
		cs.pool.RemoveTransactionsSpending(validated.spentKeyImages)
		cs.sendEvent(&externalapi.BlockAdded{BlockIndex: validated.blockIndex, BlockHash: validated.blockHash})
		if validated.blockIndex%100 == 0 {
			log.Infof("Block %d %s added to the main chain", validated.blockIndex, validated.blockHash)
		} else {
			log.Debugf("Block %d %s added to the main chain", validated.blockIndex, validated.blockHash)
		}
	case externalapi.AddedToAlternative:
		cs.sendEvent(&externalapi.AlternativeBlockAdded{BlockIndex: validated.blockIndex, BlockHash: validated.blockHash})
		log.Infof("Block %d %s added to an alternative chain", validated.blockIndex, validated.blockHash)
	}
	return outcome, nil
}

// validateBlock runs every check a block must pass before it is placed,
// in a fixed order. Nothing is modified.
func (cs *chainSelector) validateBlock(rawBlock *externalapi.RawBlock) (*validatedBlock, error) {
	block, err := serialization.BlockFromBytes(rawBlock.Block)
	if err != nil {
		return nil, errors.Wrapf(ruleerrors.ErrDeserializationFailed, "block: %s", err)
	}
	blockHash := consensushashing.BlockHash(block)
	blockIndex := block.Index()
	if blockIndex == 0 {
		return nil, errors.Wrapf(ruleerrors.ErrRejectedAsOrphaned, "block %s claims to be a genesis block", blockHash)
	}

	parentSegment, previousBlockIndex, found, err := cs.tree.FindBlock(block.PreviousBlockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ruleerrors.ErrRejectedAsOrphaned, "block %s has unknown parent %s",
			blockHash, block.PreviousBlockHash)
	}
	if blockIndex != previousBlockIndex+1 {
		return nil, errors.Wrapf(ruleerrors.ErrBaseInputWrongBlockIndex, "block %s claims index %d on top of block %d",
			blockHash, blockIndex, previousBlockIndex)
	}

	parentTopIndex, err := cs.tree.TopBlockIndex(parentSegment)
	if err != nil {
		return nil, err
	}
	extendsMainChain := parentSegment == cs.mainLeaf() && parentTopIndex == previousBlockIndex
	if !extendsMainChain && !cs.checkpoints.IsAlternativeBlockAllowed(cs.topBlockIndex+1, blockIndex) {
		return nil, errors.Wrapf(ruleerrors.ErrRejectedAsAlternative, "block %s forks at %d below a checkpoint",
			blockHash, blockIndex)
	}

	_, _, exists, err := cs.tree.FindBlock(blockHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(ruleerrors.ErrAlreadyExists, "block %s", blockHash)
	}

	transactions, blobSizes, err := cs.parseTransactions(block, rawBlock)
	if err != nil {
		return nil, err
	}

	coinbaseSize := consensushashing.TransactionBlobSize(block.BaseTransaction)
	if coinbaseSize > cs.params.MinerTxBlobReservedSize {
		return nil, errors.Wrapf(ruleerrors.ErrCoinbaseTooLarge, "miner transaction of %d bytes, at most %d allowed",
			coinbaseSize, cs.params.MinerTxBlobReservedSize)
	}
	cumulativeSize := coinbaseSize
	for _, blobSize := range blobSizes {
		cumulativeSize += blobSize
	}
	maxCumulativeSize := cs.params.MaxBlockCumulativeSize(previousBlockIndex)
	if cumulativeSize > maxCumulativeSize {
		return nil, errors.Wrapf(ruleerrors.ErrCumulativeBlockSizeTooBig, "block of %d bytes, at most %d allowed",
			cumulativeSize, maxCumulativeSize)
	}

	view := cs.tree.View(parentSegment)
	minerReward, err := cs.blockValidator.ValidateBlock(block, blockHash, previousBlockIndex, view)
	if err != nil {
		return nil, err
	}

	difficulty, err := cs.difficultyManager.DifficultyForNextBlock(view, previousBlockIndex)
	if err != nil {
		return nil, err
	}
	if difficulty == 0 {
		return nil, errors.Wrapf(ruleerrors.ErrDifficultyOverhead, "block %s", blockHash)
	}

	isInCheckpointZone := cs.checkpoints.IsInCheckpointZone(blockIndex)
	if isInCheckpointZone {
		_, isValid := cs.checkpoints.CheckBlock(blockIndex, blockHash)
		if !isValid {
			return nil, errors.Wrapf(ruleerrors.ErrCheckpointBlockHashMismatch, "block %d %s", blockIndex, blockHash)
		}
	} else {
		err = cs.blockValidator.CheckMergeMiningTag(block)
		if err != nil {
			return nil, err
		}
		err = cs.blockValidator.CheckProofOfWork(block, difficulty)
		if err != nil {
			return nil, err
		}
	}

	knownTransactions := make(map[externalapi.DomainHash]struct{}, len(block.TransactionHashes))
	for _, transactionHash := range block.TransactionHashes {
		if _, ok := knownTransactions[transactionHash]; ok {
			return nil, errors.Wrapf(ruleerrors.ErrTransactionDuplicates, "transaction %s appears twice", transactionHash)
		}
		knownTransactions[transactionHash] = struct{}{}
	}

	context := &model.TransactionValidationContext{
		BlockIndex:         previousBlockIndex,
		Timestamp:          block.Timestamp,
		IsInCheckpointZone: isInCheckpointZone,
	}
	cumulativeFee := uint64(0)
	var spentKeyImages []externalapi.KeyImage
	spent := make(map[externalapi.KeyImage]struct{})
	for i, transaction := range transactions {
		result, err := cs.transactionValidator.ValidateTransaction(transaction, blobSizes[i], view, context)
		if err != nil {
			return nil, ruleerrors.NewErrInvalidTransactionInBlock(i, block.TransactionHashes[i], err)
		}
		var overflow bool
		cumulativeFee, overflow = math.AddUint64(cumulativeFee, result.Fee)
		if overflow {
			return nil, errors.Wrapf(ruleerrors.ErrFeeAmountOverflow, "block %s", blockHash)
		}
		for _, keyImage := range transaction.KeyImages() {
			if _, ok := spent[keyImage]; ok {
				return nil, errors.Wrapf(ruleerrors.ErrDoubleSpending, "key image %s is spent twice in block %s",
					keyImage, blockHash)
			}
			spent[keyImage] = struct{}{}
			spentKeyImages = append(spentKeyImages, keyImage)
		}
	}
	anySpent, err := view.CheckIfAnySpent(spentKeyImages, previousBlockIndex)
	if err != nil {
		return nil, err
	}
	if anySpent {
		return nil, errors.Wrapf(ruleerrors.ErrDoubleSpending, "block %s spends a key image spent before", blockHash)
	}

	reward, emissionChange, err := cs.blockReward(block.Version, view, previousBlockIndex,
		cumulativeSize-coinbaseSize, cumulativeFee)
	if err != nil {
		return nil, err
	}
	if minerReward != reward {
		return nil, errors.Wrapf(ruleerrors.ErrBlockRewardMismatch, "block %s claims %d, expected %d",
			blockHash, minerReward, reward)
	}

	return &validatedBlock{
		block:         block,
		blockHash:     blockHash,
		blockIndex:    blockIndex,
		parentSegment: parentSegment,
		push: cs.buildBlockPush(block, blockHash, blockIndex, rawBlock, transactions,
			spentKeyImages, cumulativeSize, emissionChange, difficulty),
		spentKeyImages: spentKeyImages,
	}, nil
}

// parseTransactions parses the body transactions of rawBlock and checks
// them against the hashes the block commits to.
func (cs *chainSelector) parseTransactions(block *externalapi.DomainBlock, rawBlock *externalapi.RawBlock) (
	[]*externalapi.DomainTransaction, []uint64, error) {

	if len(rawBlock.Transactions) != len(block.TransactionHashes) {
		return nil, nil, errors.Wrapf(ruleerrors.ErrTransactionInconsistency,
			"block commits to %d transactions but carries %d", len(block.TransactionHashes), len(rawBlock.Transactions))
	}

	maxTransactionSize := cs.params.MaxTransactionSize()
	transactions := make([]*externalapi.DomainTransaction, len(rawBlock.Transactions))
	blobSizes := make([]uint64, len(rawBlock.Transactions))
	for i, transactionBytes := range rawBlock.Transactions {
		if uint64(len(transactionBytes)) > maxTransactionSize {
			return nil, nil, errors.Wrapf(ruleerrors.ErrDeserializationFailed,
				"transaction %d of %d bytes, at most %d allowed", i, len(transactionBytes), maxTransactionSize)
		}
		transaction, err := serialization.TransactionFromBytes(transactionBytes)
		if err != nil {
			return nil, nil, errors.Wrapf(ruleerrors.ErrDeserializationFailed, "transaction %d: %s", i, err)
		}
		transactionHash := consensushashing.TransactionHash(transaction)
		if transactionHash != block.TransactionHashes[i] {
			return nil, nil, errors.Wrapf(ruleerrors.ErrTransactionInconsistency,
				"transaction %d hashes to %s, the block commits to %s", i, transactionHash, block.TransactionHashes[i])
		}
		transactions[i] = transaction
		blobSizes[i] = uint64(len(transactionBytes))
	}
	return transactions, blobSizes, nil
}

// blockReward returns the reward and the emission change of a block on top
// of previousBlockIndex whose body takes transactionsSize bytes.
func (cs *chainSelector) blockReward(version uint8, view model.ChainView, previousBlockIndex uint32,
	transactionsSize uint64, fee uint64) (reward uint64, emissionChange uint64, err error) {

	previous, err := view.BlockInfo(previousBlockIndex)
	if err != nil {
		return 0, 0, err
	}
	blockSizes, err := view.LastBlockSizes(cs.params.RewardBlocksWindow, previousBlockIndex, false)
	if err != nil {
		return 0, 0, err
	}
	reward, emissionChange, ok := cs.coinbaseManager.BlockReward(version, math.Median(blockSizes), transactionsSize,
		previous.AlreadyGeneratedCoins, fee)
	if !ok {
		return 0, 0, errors.Wrapf(ruleerrors.ErrCumulativeBlockSizeTooBig, "transactions of %d bytes cannot be rewarded",
			transactionsSize)
	}
	return reward, emissionChange, nil
}

// buildBlockPush lists the transactions of a block the way segments index
// them: the miner transaction, the static reward transaction if the
// version has one, then the body.
func (cs *chainSelector) buildBlockPush(block *externalapi.DomainBlock, blockHash externalapi.DomainHash,
	blockIndex uint32, rawBlock *externalapi.RawBlock, transactions []*externalapi.DomainTransaction,
	spentKeyImages []externalapi.KeyImage, blobSize uint64, generatedCoins uint64, difficulty uint64) *model.BlockPush {

	pushed := make([]*model.PushedTransaction, 0, len(transactions)+2)
	pushed = append(pushed, segmenttree.NewPushedTransaction(block.BaseTransaction, false))
	staticReward := cs.coinbaseManager.StaticRewardTransaction(block.Version, blockIndex)
	if staticReward != nil {
		pushed = append(pushed, segmenttree.NewPushedTransaction(staticReward, true))
	}
	for _, transaction := range transactions {
		pushed = append(pushed, segmenttree.NewPushedTransaction(transaction, false))
	}

	return &model.BlockPush{
		BlockHash:      blockHash,
		Version:        block.Version,
		UpgradeVote:    block.UpgradeVote,
		Timestamp:      block.Timestamp,
		Transactions:   pushed,
		SpentKeyImages: spentKeyImages,
		BlobSize:       blobSize,
		GeneratedCoins: generatedCoins,
		Difficulty:     difficulty,
		RawBlock:       rawBlock,
	}
}
