package blockvalidator

import (
	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/lightningnetwork/lnd/clock"
)

// blockValidator exposes a set of validation classes, after which
// it's possible to determine whether either a block is valid
type blockValidator struct {
	params *chaincfg.Params
	clock  clock.Clock

	difficultyManager model.DifficultyManager
	coinbaseManager   model.CoinbaseManager
	signatureOracle   model.SignatureOracle
}

// New instantiates a new BlockValidator
func New(params *chaincfg.Params,
	clock clock.Clock,

	difficultyManager model.DifficultyManager,
	coinbaseManager model.CoinbaseManager,
	signatureOracle model.SignatureOracle) model.BlockValidator {

	return &blockValidator{
		params: params,
		clock:  clock,

		difficultyManager: difficultyManager,
		coinbaseManager:   coinbaseManager,
		signatureOracle:   signatureOracle,
	}
}

// ValidateBlock validates the header and the miner transaction of block in
// the context of the chain seen through view, in this order: version and
// upgrade vote, timestamp, miner transaction, static reward.
func (v *blockValidator) ValidateBlock(block *externalapi.DomainBlock, blockHash externalapi.DomainHash,
	previousBlockIndex uint32, view model.ChainView) (minerReward uint64, err error) {

	log.Tracef("Validating block %s on top of block %d", blockHash, previousBlockIndex)

	err = v.checkVersion(block, previousBlockIndex)
	if err != nil {
		return 0, err
	}
	err = v.checkTimestamp(block, previousBlockIndex, view)
	if err != nil {
		return 0, err
	}
	minerReward, err = v.checkMinerTransaction(block, previousBlockIndex)
	if err != nil {
		return 0, err
	}
	err = v.checkStaticReward(block, previousBlockIndex)
	if err != nil {
		return 0, err
	}
	return minerReward, nil
}
