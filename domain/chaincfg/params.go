// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math"
	"time"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/checkpoints"
	"github.com/pkg/errors"
)

// NetworkID identifies a network. It is also the magic of its persisted
// databases.
type NetworkID uint32

// Network identifiers of the default networks.
const (
	Mainnet NetworkID = 0x636e6430
	Testnet NetworkID = 0x636e6431
	Simnet  NetworkID = 0x636e6432
	Devnet  NetworkID = 0x636e6433
)

const (
	targetTimePerBlock         = 60 * time.Second
	difficultyWindow           = 60
	timestampCheckWindowV1     = 60
	timestampCheckWindow       = 11
	blockFutureTimeLimitV1     = 2 * time.Hour
	blockFutureTimeLimit       = 6 * targetTimePerBlock
	minedMoneyUnlockWindow     = 60
	rewardBlocksWindow         = 100
	blockGrantedFullRewardZone = 100_000
	minerTxBlobReservedSize    = 600
	maxBlockSizeInitial        = 1_000_000
	blocksPerYear              = uint64(365 * 24 * time.Hour / targetTimePerBlock)
	maxIndexUnlockTime         = 500_000_000
	mempoolTransactionLifetime = 24 * time.Hour
)

// Params defines a network by its parameters. Every consensus rule that
// differs between networks reads its constants from here.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net identifies the network.
	Net NetworkID

	// GenesisBlock defines the first block of the chain. It is built when
	// the package is initialized.
	GenesisBlock *externalapi.DomainBlock

	// GenesisHash is the hash of GenesisBlock.
	GenesisHash externalapi.DomainHash

	// GenesisTimestamp is the timestamp of the genesis block.
	GenesisTimestamp uint64

	// GenesisBlockReward is the amount created by the genesis block.
	GenesisBlockReward uint64

	// UpgradeIndexes holds, in order, the block index from which each block
	// version after the first is mandatory.
	UpgradeIndexes []uint32

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// DifficultyWindow is the number of solve times the difficulty
	// algorithm averages.
	DifficultyWindow uint32

	// InitialDifficulty is used until DifficultyWindow blocks exist.
	InitialDifficulty uint64

	// SkipProofOfWork disables proof of work checks. It is meant for tests
	// only.
	SkipProofOfWork bool

	// BlockFutureTimeLimits holds, per block version starting at 1, how
	// far ahead of the local clock a block timestamp may be. Versions past
	// the end use the last entry.
	BlockFutureTimeLimits []time.Duration

	// TimestampCheckWindows holds, per block version starting at 1, the
	// number of previous blocks whose median timestamp bounds a new block's
	// timestamp from below. Versions past the end use the last entry.
	TimestampCheckWindows []uint32

	// MinedMoneyUnlockWindow is the number of blocks a miner transaction
	// stays locked.
	MinedMoneyUnlockWindow uint32

	// Outputs whose unlock time is below MaxIndexUnlockTime are locked
	// until a block index, the others until a timestamp. The allowed
	// deltas let a transaction spend them slightly early.
	MaxIndexUnlockTime          uint64
	LockedTxAllowedDeltaBlocks  uint32
	LockedTxAllowedDeltaSeconds uint64

	// RewardBlocksWindow is the number of previous blocks whose median size
	// limits the size of a block before it is penalized.
	RewardBlocksWindow uint32

	// BlockGrantedFullRewardZone is the smallest median size used for the
	// reward penalty.
	BlockGrantedFullRewardZone uint64

	// MinerTxBlobReservedSize is the room reserved for the miner
	// transaction in a block template.
	MinerTxBlobReservedSize uint64

	// The cumulative size of block h may not exceed
	// MaxBlockSizeInitial + h*MaxBlockSizeGrowthNumerator/MaxBlockSizeGrowthDenominator.
	MaxBlockSizeInitial           uint64
	MaxBlockSizeGrowthNumerator   uint64
	MaxBlockSizeGrowthDenominator uint64

	// MoneySupply and EmissionSpeedFactor define the base reward:
	// (MoneySupply - alreadyGeneratedCoins) >> EmissionSpeedFactor.
	MoneySupply         uint64
	EmissionSpeedFactor uint

	// PenalizeFeeVersion is the first block version whose fees are
	// penalized together with the base reward.
	PenalizeFeeVersion uint8

	// StaticRewardAmount is paid by the static reward transaction of every
	// block whose version is at least StaticRewardStartVersion. A zero
	// StaticRewardStartVersion disables the static reward.
	StaticRewardAmount       uint64
	StaticRewardStartVersion uint8
	StaticRewardSeed         []byte

	// MergeMiningStartVersion is the first block version that may carry a
	// merge mining tag. MaxMergeMiningTagSize bounds the number of hashes
	// in it.
	MergeMiningStartVersion uint8
	MaxMergeMiningTagSize   int

	// TransactionMinVersion and TransactionMaxVersion bound the version of
	// body transactions.
	TransactionMinVersion uint8
	TransactionMaxVersion uint8

	// MinimumFee is the smallest fee the pool accepts.
	MinimumFee uint64

	// DustThreshold is the smallest amount a fusion input may have.
	DustThreshold uint64

	// MaxExtraSize bounds the extra field of body transactions.
	MaxExtraSize int

	// Fusion transaction rules.
	FusionTxMaxSize            uint64
	FusionTxMinInputCount      int
	FusionTxMinInOutCountRatio int

	// Every ring of an amount holds exactly RequiredMixin decoys: one per
	// MixinUpgradeSize outputs of the amount old enough to serve as decoys,
	// none while that is below MinMixin and at most MaxMixin.
	MinMixin         uint64
	MaxMixin         uint64
	MixinUpgradeSize uint64

	// Checkpoints are known good blocks, sorted by index.
	Checkpoints []checkpoints.Checkpoint

	// MempoolTransactionLifetime is how long a transaction may wait in the
	// pool.
	MempoolTransactionLifetime time.Duration
}

// BlockVersion returns the block version mandatory at blockIndex.
func (p *Params) BlockVersion(blockIndex uint32) uint8 {
	version := uint8(1)
	for _, upgradeIndex := range p.UpgradeIndexes {
		if blockIndex < upgradeIndex {
			break
		}
		version++
	}
	return version
}

// BlockFutureTimeLimit returns how far ahead of the local clock the
// timestamp of a block of version may be.
func (p *Params) BlockFutureTimeLimit(version uint8) time.Duration {
	return p.BlockFutureTimeLimits[versionRuleIndex(version, len(p.BlockFutureTimeLimits))]
}

// TimestampCheckWindow returns the number of previous blocks whose median
// timestamp bounds the timestamp of a block of version from below.
func (p *Params) TimestampCheckWindow(version uint8) uint32 {
	return p.TimestampCheckWindows[versionRuleIndex(version, len(p.TimestampCheckWindows))]
}

func versionRuleIndex(version uint8, ruleCount int) int {
	if version == 0 {
		return 0
	}
	if int(version) > ruleCount {
		return ruleCount - 1
	}
	return int(version) - 1
}

// MixinThreshold is the number of available outputs past which the
// required mixin of an amount no longer grows.
func (p *Params) MixinThreshold() uint64 {
	return p.MaxMixin*p.MixinUpgradeSize + 1
}

// RequiredMixin returns the number of decoys every ring of an amount must
// hold when available outputs of the amount can serve as decoys.
func (p *Params) RequiredMixin(available uint64) uint64 {
	if p.MixinUpgradeSize == 0 {
		return p.MaxMixin
	}
	required := available / p.MixinUpgradeSize
	if required < p.MinMixin {
		return 0
	}
	if required > p.MaxMixin {
		return p.MaxMixin
	}
	return required
}

// MaxBlockCumulativeSize returns the largest cumulative size a block at
// blockIndex may have.
func (p *Params) MaxBlockCumulativeSize(blockIndex uint32) uint64 {
	return p.MaxBlockSizeInitial + uint64(blockIndex)*p.MaxBlockSizeGrowthNumerator/p.MaxBlockSizeGrowthDenominator
}

// MaxTransactionSize returns the size limit of a single transaction.
func (p *Params) MaxTransactionSize() uint64 {
	return p.BlockGrantedFullRewardZone - p.MinerTxBlobReservedSize
}

// HasStaticReward returns whether blocks of version carry a static reward
// transaction.
func (p *Params) HasStaticReward(version uint8) bool {
	return p.StaticRewardStartVersion != 0 && version >= p.StaticRewardStartVersion
}

// FusionRules returns the fusion transaction rules of the network.
func (p *Params) FusionRules() amount.FusionRules {
	return amount.FusionRules{
		MaxSize:            p.FusionTxMaxSize,
		MinInputCount:      p.FusionTxMinInputCount,
		MinInOutCountRatio: p.FusionTxMinInOutCountRatio,
		DustThreshold:      p.DustThreshold,
	}
}

// IsUnlockTimeSatisfied returns whether an output with unlockTime may be
// spent by a block at blockIndex with the given timestamp.
func (p *Params) IsUnlockTimeSatisfied(unlockTime uint64, blockIndex uint32, timestamp uint64) bool {
	if unlockTime < p.MaxIndexUnlockTime {
		return uint64(blockIndex)+uint64(p.LockedTxAllowedDeltaBlocks) >= unlockTime
	}
	return timestamp+p.LockedTxAllowedDeltaSeconds >= unlockTime
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:               "mainnet",
	Net:                Mainnet,
	GenesisTimestamp:   1_700_000_000,
	GenesisBlockReward: 1_000_000_000_000,
	UpgradeIndexes:     []uint32{100_000},

	TargetTimePerBlock:    targetTimePerBlock,
	DifficultyWindow:      difficultyWindow,
	InitialDifficulty:     10_000,
	BlockFutureTimeLimits: []time.Duration{blockFutureTimeLimitV1, blockFutureTimeLimit},
	TimestampCheckWindows: []uint32{timestampCheckWindowV1, timestampCheckWindow},

	MinedMoneyUnlockWindow:      minedMoneyUnlockWindow,
	MaxIndexUnlockTime:          maxIndexUnlockTime,
	LockedTxAllowedDeltaBlocks:  1,
	LockedTxAllowedDeltaSeconds: uint64(targetTimePerBlock / time.Second),

	RewardBlocksWindow:            rewardBlocksWindow,
	BlockGrantedFullRewardZone:    blockGrantedFullRewardZone,
	MinerTxBlobReservedSize:       minerTxBlobReservedSize,
	MaxBlockSizeInitial:           maxBlockSizeInitial,
	MaxBlockSizeGrowthNumerator:   100 * 1024,
	MaxBlockSizeGrowthDenominator: blocksPerYear,

	MoneySupply:         math.MaxUint64,
	EmissionSpeedFactor: 20,
	PenalizeFeeVersion:  2,

	StaticRewardAmount:       1_000_000,
	StaticRewardStartVersion: 2,
	StaticRewardSeed:         []byte("cnd-mainnet-static-reward"),

	MergeMiningStartVersion: 2,
	MaxMergeMiningTagSize:   64,

	TransactionMinVersion: 1,
	TransactionMaxVersion: 1,

	MinimumFee:    1000,
	DustThreshold: 10,
	MaxExtraSize:  1024,

	FusionTxMaxSize:            blockGrantedFullRewardZone * 30 / 100,
	FusionTxMinInputCount:      12,
	FusionTxMinInOutCountRatio: 4,

	MinMixin:         2,
	MaxMixin:         8,
	MixinUpgradeSize: 100,

	MempoolTransactionLifetime: mempoolTransactionLifetime,
}

// TestnetParams defines the network parameters for the test network.
var TestnetParams = Params{
	Name:               "testnet",
	Net:                Testnet,
	GenesisTimestamp:   1_700_000_000,
	GenesisBlockReward: 1_000_000_000_000,
	UpgradeIndexes:     []uint32{10},

	TargetTimePerBlock:    targetTimePerBlock,
	DifficultyWindow:      difficultyWindow,
	InitialDifficulty:     100,
	BlockFutureTimeLimits: []time.Duration{blockFutureTimeLimitV1, blockFutureTimeLimit},
	TimestampCheckWindows: []uint32{timestampCheckWindowV1, timestampCheckWindow},

	MinedMoneyUnlockWindow:      10,
	MaxIndexUnlockTime:          maxIndexUnlockTime,
	LockedTxAllowedDeltaBlocks:  1,
	LockedTxAllowedDeltaSeconds: uint64(targetTimePerBlock / time.Second),

	RewardBlocksWindow:            rewardBlocksWindow,
	BlockGrantedFullRewardZone:    blockGrantedFullRewardZone,
	MinerTxBlobReservedSize:       minerTxBlobReservedSize,
	MaxBlockSizeInitial:           maxBlockSizeInitial,
	MaxBlockSizeGrowthNumerator:   100 * 1024,
	MaxBlockSizeGrowthDenominator: blocksPerYear,

	MoneySupply:         math.MaxUint64,
	EmissionSpeedFactor: 20,
	PenalizeFeeVersion:  2,

	StaticRewardAmount:       1_000_000,
	StaticRewardStartVersion: 2,
	StaticRewardSeed:         []byte("cnd-testnet-static-reward"),

	MergeMiningStartVersion: 1,
	MaxMergeMiningTagSize:   64,

	TransactionMinVersion: 1,
	TransactionMaxVersion: 1,

	MinimumFee:    1000,
	DustThreshold: 10,
	MaxExtraSize:  1024,

	FusionTxMaxSize:            blockGrantedFullRewardZone * 30 / 100,
	FusionTxMinInputCount:      12,
	FusionTxMinInOutCountRatio: 4,

	MinMixin:         1,
	MaxMixin:         4,
	MixinUpgradeSize: 20,

	MempoolTransactionLifetime: mempoolTransactionLifetime,
}

// SimnetParams defines the network parameters for the simulation test
// network. It is intended for private use within a group of individuals
// doing simulation testing, so blocks unlock fast and the difficulty is
// trivial.
var SimnetParams = Params{
	Name:               "simnet",
	Net:                Simnet,
	GenesisTimestamp:   1_700_000_000,
	GenesisBlockReward: 1_000_000_000,

	TargetTimePerBlock:    targetTimePerBlock,
	DifficultyWindow:      10,
	InitialDifficulty:     1,
	BlockFutureTimeLimits: []time.Duration{blockFutureTimeLimitV1, blockFutureTimeLimit},
	TimestampCheckWindows: []uint32{timestampCheckWindowV1, timestampCheckWindow},

	MinedMoneyUnlockWindow:      2,
	MaxIndexUnlockTime:          maxIndexUnlockTime,
	LockedTxAllowedDeltaBlocks:  1,
	LockedTxAllowedDeltaSeconds: uint64(targetTimePerBlock / time.Second),

	RewardBlocksWindow:            10,
	BlockGrantedFullRewardZone:    blockGrantedFullRewardZone,
	MinerTxBlobReservedSize:       minerTxBlobReservedSize,
	MaxBlockSizeInitial:           maxBlockSizeInitial,
	MaxBlockSizeGrowthNumerator:   100 * 1024,
	MaxBlockSizeGrowthDenominator: blocksPerYear,

	MoneySupply:         math.MaxUint64,
	EmissionSpeedFactor: 24,
	PenalizeFeeVersion:  2,

	MergeMiningStartVersion: 1,
	MaxMergeMiningTagSize:   8,

	TransactionMinVersion: 1,
	TransactionMaxVersion: 1,

	MinimumFee:    10,
	DustThreshold: 1,
	MaxExtraSize:  1024,

	FusionTxMaxSize:            blockGrantedFullRewardZone * 30 / 100,
	FusionTxMinInputCount:      4,
	FusionTxMinInOutCountRatio: 2,

	MinMixin:         1,
	MaxMixin:         2,
	MixinUpgradeSize: 1000,

	MempoolTransactionLifetime: time.Hour,
}

// DevnetParams defines the network parameters for the development network.
var DevnetParams = Params{
	Name:               "devnet",
	Net:                Devnet,
	GenesisTimestamp:   1_700_000_000,
	GenesisBlockReward: 1_000_000_000,
	UpgradeIndexes:     []uint32{5},

	TargetTimePerBlock:    targetTimePerBlock,
	DifficultyWindow:      10,
	InitialDifficulty:     1,
	BlockFutureTimeLimits: []time.Duration{blockFutureTimeLimitV1, blockFutureTimeLimit},
	TimestampCheckWindows: []uint32{timestampCheckWindowV1, timestampCheckWindow},

	MinedMoneyUnlockWindow:      2,
	MaxIndexUnlockTime:          maxIndexUnlockTime,
	LockedTxAllowedDeltaBlocks:  1,
	LockedTxAllowedDeltaSeconds: uint64(targetTimePerBlock / time.Second),

	RewardBlocksWindow:            10,
	BlockGrantedFullRewardZone:    blockGrantedFullRewardZone,
	MinerTxBlobReservedSize:       minerTxBlobReservedSize,
	MaxBlockSizeInitial:           maxBlockSizeInitial,
	MaxBlockSizeGrowthNumerator:   100 * 1024,
	MaxBlockSizeGrowthDenominator: blocksPerYear,

	MoneySupply:         math.MaxUint64,
	EmissionSpeedFactor: 24,
	PenalizeFeeVersion:  2,

	StaticRewardAmount:       5000,
	StaticRewardStartVersion: 2,
	StaticRewardSeed:         []byte("cnd-devnet-static-reward"),

	MergeMiningStartVersion: 1,
	MaxMergeMiningTagSize:   8,

	TransactionMinVersion: 1,
	TransactionMaxVersion: 1,

	MinimumFee:    10,
	DustThreshold: 1,
	MaxExtraSize:  1024,

	FusionTxMaxSize:            blockGrantedFullRewardZone * 30 / 100,
	FusionTxMinInputCount:      4,
	FusionTxMinInOutCountRatio: 2,

	MinMixin:         1,
	MaxMixin:         2,
	MixinUpgradeSize: 1000,

	MempoolTransactionLifetime: time.Hour,
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")

	// ErrUnknownNet describes an error where the requested network was
	// never registered.
	ErrUnknownNet = errors.New("unknown network")
)

var registeredNets = make(map[NetworkID]*Params)

// Register registers the network parameters for a network. This may error
// with ErrDuplicateNet if the network is already registered (either due to
// a previous Register call, or the network being one of the default
// networks).
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = params
	return nil
}

// ParamsForNet returns the registered parameters of net.
func ParamsForNet(net NetworkID) (*Params, error) {
	params, ok := registeredNets[net]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNet, "network %08x", uint32(net))
	}
	return params, nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error. This should only be called from package init
// functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	for _, params := range []*Params{&MainnetParams, &TestnetParams, &SimnetParams, &DevnetParams} {
		params.GenesisBlock = newGenesisBlock(params)
		params.GenesisHash = params.computeGenesisHash()
		if len(params.Checkpoints) == 0 {
			params.Checkpoints = []checkpoints.Checkpoint{{Index: 0, Hash: params.GenesisHash}}
		}
		mustRegister(params)
	}
}
