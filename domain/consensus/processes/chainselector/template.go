package chainselector

import (
	"context"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/math"
	"github.com/pkg/errors"
)

// GetBlockTemplate builds the next main chain block out of the pool. Pool
// transactions are taken best fee rate first while they fit the size
// budget and, past the full reward zone, while they increase the reward.
func (cs *chainSelector) GetBlockTemplate(minerTransaction externalapi.MinerTransactionBuilder) (
	*externalapi.BlockTemplate, error) {

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}

	view := cs.tree.View(cs.mainLeaf())
	blockIndex := cs.topBlockIndex + 1
	version := cs.params.BlockVersion(blockIndex)

	difficulty, err := cs.difficultyManager.DifficultyForNextBlock(view, cs.topBlockIndex)
	if err != nil {
		return nil, err
	}
	if difficulty == 0 {
		return nil, errors.Wrapf(ruleerrors.ErrDifficultyOverhead, "block template %d", blockIndex)
	}

	timestamp := uint64(cs.clock.Now().Unix())
	checkWindow := cs.params.TimestampCheckWindow(version)
	timestamps, err := view.LastTimestamps(checkWindow, cs.topBlockIndex, true)
	if err != nil {
		return nil, err
	}
	if uint32(len(timestamps)) >= checkWindow {
		timestamp = math.MaxUint64(timestamp, math.Median(timestamps))
	}

	blockSizes, err := view.LastBlockSizes(cs.params.RewardBlocksWindow, cs.topBlockIndex, false)
	if err != nil {
		return nil, err
	}
	medianSize := math.Median(blockSizes)
	previous, err := view.BlockInfo(cs.topBlockIndex)
	if err != nil {
		return nil, err
	}

	maxSize := math.MinUint64(2*math.MaxUint64(medianSize, cs.params.BlockGrantedFullRewardZone),
		cs.params.MaxBlockCumulativeSize(cs.topBlockIndex))
	maxTransactionsSize := uint64(0)
	if maxSize > cs.params.MinerTxBlobReservedSize {
		maxTransactionsSize = maxSize - cs.params.MinerTxBlobReservedSize
	}

	selected, transactionsSize, fee, err := cs.selectTransactions(view, version, medianSize,
		previous.AlreadyGeneratedCoins, maxTransactionsSize, timestamp)
	if err != nil {
		return nil, err
	}

	reward, _, ok := cs.coinbaseManager.BlockReward(version, medianSize, transactionsSize,
		previous.AlreadyGeneratedCoins, fee)
	if !ok {
		return nil, errors.Wrapf(ruleerrors.ErrCumulativeBlockSizeTooBig,
			"transactions of %d bytes cannot be rewarded", transactionsSize)
	}
	baseTransaction, err := minerTransaction(blockIndex, reward)
	if err != nil {
		return nil, err
	}

	transactions := make([]*externalapi.DomainTransaction, len(selected))
	transactionHashes := make([]externalapi.DomainHash, len(selected))
	for i, poolTransaction := range selected {
		transactions[i] = poolTransaction.Transaction
		transactionHashes[i] = poolTransaction.Hash
	}

	log.Debugf("Block template %d holds %d transactions of %d bytes paying %d in fees",
		blockIndex, len(selected), transactionsSize, fee)
	return &externalapi.BlockTemplate{
		Block: &externalapi.DomainBlock{
			Version:           version,
			UpgradeVote:       version,
			Timestamp:         timestamp,
			PreviousBlockHash: cs.topBlockHash,
			BaseTransaction:   baseTransaction,
			StaticRewardHash:  cs.coinbaseManager.StaticRewardHash(version, blockIndex),
			TransactionHashes: transactionHashes,
		},
		Transactions:          transactions,
		BlockIndex:            blockIndex,
		Difficulty:            difficulty,
		MedianSize:            medianSize,
		AlreadyGeneratedCoins: previous.AlreadyGeneratedCoins,
		ExpectedReward:        reward,
		TransactionsSize:      transactionsSize,
		Fee:                   fee,
	}, nil
}

func (cs *chainSelector) selectTransactions(view model.ChainView, version uint8, medianSize uint64,
	alreadyGeneratedCoins uint64, maxTransactionsSize uint64, timestamp uint64) (
	selected []*model.PoolTransaction, transactionsSize uint64, fee uint64, err error) {

	candidates, err := cs.pool.EligibleTransactions(context.Background())
	if err != nil {
		return nil, 0, 0, err
	}

	validationContext := &model.TransactionValidationContext{
		BlockIndex: cs.topBlockIndex,
		Timestamp:  timestamp,
	}
	spent := make(map[externalapi.KeyImage]struct{})
	currentReward, _, _ := cs.coinbaseManager.BlockReward(version, medianSize, 0, alreadyGeneratedCoins, 0)

nextCandidate:
	for _, candidate := range candidates {
		nextSize := transactionsSize + candidate.Size()
		if nextSize > maxTransactionsSize {
			continue
		}
		nextFee, overflow := math.AddUint64(fee, candidate.Fee)
		if overflow {
			continue
		}
		if nextSize > cs.params.BlockGrantedFullRewardZone {
			if candidate.Fee == 0 {
				continue
			}
			nextReward, _, ok := cs.coinbaseManager.BlockReward(version, medianSize, nextSize, alreadyGeneratedCoins, nextFee)
			if !ok || nextReward < currentReward {
				continue
			}
		}

		keyImages := candidate.Transaction.KeyImages()
		for _, keyImage := range keyImages {
			if _, ok := spent[keyImage]; ok {
				continue nextCandidate
			}
		}
		_, err := cs.transactionValidator.ValidateTransaction(candidate.Transaction, candidate.Size(), view,
			validationContext)
		if err != nil {
			log.Debugf("Leaving transaction %s out of the block template: %s", candidate.Hash, err)
			continue
		}

		for _, keyImage := range keyImages {
			spent[keyImage] = struct{}{}
		}
		selected = append(selected, candidate)
		transactionsSize = nextSize
		fee = nextFee
		currentReward, _, _ = cs.coinbaseManager.BlockReward(version, medianSize, transactionsSize,
			alreadyGeneratedCoins, fee)
	}
	return selected, transactionsSize, fee, nil
}
