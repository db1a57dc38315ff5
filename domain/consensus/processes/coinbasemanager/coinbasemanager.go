package coinbasemanager

import (
	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/utils/math"
	"github.com/holiman/uint256"
)

type coinbaseManager struct {
	params *chaincfg.Params
}

// New instantiates a new CoinbaseManager
func New(params *chaincfg.Params) model.CoinbaseManager {
	return &coinbaseManager{
		params: params,
	}
}

// BlockReward implements the emission curve: the base reward is a fixed
// fraction of the coins not yet generated. Blocks larger than the median
// size have both the base reward and, from PenalizeFeeVersion on, the fees
// penalized; the part of the fees lost to the penalty is burnt.
func (c *coinbaseManager) BlockReward(version uint8, medianSize uint64, currentBlockSize uint64,
	alreadyGeneratedCoins uint64, fee uint64) (reward uint64, emissionChange uint64, ok bool) {

	baseReward := c.baseReward(alreadyGeneratedCoins)

	medianSize = math.MaxUint64(medianSize, c.params.BlockGrantedFullRewardZone)
	if currentBlockSize > 2*medianSize {
		log.Debugf("Block cumulative size is too big: %d, expected less than %d", currentBlockSize, 2*medianSize)
		return 0, 0, false
	}

	penalizedBaseReward := penalizedAmount(baseReward, medianSize, currentBlockSize)
	penalizedFee := fee
	if version >= c.params.PenalizeFeeVersion {
		penalizedFee = penalizedAmount(fee, medianSize, currentBlockSize)
	}

	created := penalizedBaseReward
	if c.params.HasStaticReward(version) {
		created += c.params.StaticRewardAmount
	}
	burnt := fee - penalizedFee
	if burnt < created {
		emissionChange = created - burnt
	}
	return penalizedBaseReward + penalizedFee, emissionChange, true
}

func (c *coinbaseManager) baseReward(alreadyGeneratedCoins uint64) uint64 {
	if alreadyGeneratedCoins == 0 && c.params.GenesisBlockReward != 0 {
		return c.params.GenesisBlockReward
	}
	if alreadyGeneratedCoins >= c.params.MoneySupply {
		return 0
	}
	return (c.params.MoneySupply - alreadyGeneratedCoins) >> c.params.EmissionSpeedFactor
}

// penalizedAmount returns amount * size * (2*median - size) / median^2 for
// blocks larger than median. The caller guarantees size <= 2*median.
func penalizedAmount(amount uint64, medianSize uint64, currentBlockSize uint64) uint64 {
	if amount == 0 || currentBlockSize <= medianSize {
		return amount
	}

	multiplicand := new(uint256.Int).Mul(
		uint256.NewInt(currentBlockSize),
		uint256.NewInt(2*medianSize-currentBlockSize))
	product := new(uint256.Int).Mul(uint256.NewInt(amount), multiplicand)
	median := uint256.NewInt(medianSize)
	product.Div(product, median)
	product.Div(product, median)
	return product.Uint64()
}
