package difficultymanager

import (
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/holiman/uint256"
)

// difficultyManager implements LWMA-3: a linearly weighted moving average
// of the last DifficultyWindow solve times, clamped against the previous
// block's difficulty.
type difficultyManager struct {
	difficultyWindow   uint32
	targetTimePerBlock uint64
	initialDifficulty  uint64
}

// New instantiates a new DifficultyManager
func New(params *chaincfg.Params) model.DifficultyManager {
	return &difficultyManager{
		difficultyWindow:   params.DifficultyWindow,
		targetTimePerBlock: uint64(params.TargetTimePerBlock / time.Second),
		initialDifficulty:  params.InitialDifficulty,
	}
}

func (dm *difficultyManager) NextDifficulty(timestamps []uint64, cumulativeDifficulties []uint64) uint64 {
	n := uint64(dm.difficultyWindow)
	if uint64(len(timestamps)) < n+1 || uint64(len(cumulativeDifficulties)) < n+1 {
		return dm.initialDifficulty
	}
	timestamps = timestamps[uint64(len(timestamps))-(n+1):]
	cumulativeDifficulties = cumulativeDifficulties[uint64(len(cumulativeDifficulties))-(n+1):]

	t := dm.targetTimePerBlock
	var weightedSolveTimes, lastThreeSolveTimes uint64
	previousTimestamp := timestamps[0]
	for i := uint64(1); i <= n; i++ {
		// Out of order timestamps count as a one second solve time.
		timestamp := timestamps[i]
		if timestamp <= previousTimestamp {
			timestamp = previousTimestamp + 1
		}
		solveTime := timestamp - previousTimestamp
		if solveTime > 6*t {
			solveTime = 6 * t
		}
		previousTimestamp = timestamp

		weightedSolveTimes += solveTime * i
		if i+3 > n {
			lastThreeSolveTimes += solveTime
		}
	}

	// next = work * T * (N+1) * 99 / (100 * 2 * L). work*T*(N+1)*99 can
	// exceed 64 bits for large difficulties.
	work := cumulativeDifficulties[n] - cumulativeDifficulties[0]
	numerator := new(uint256.Int).Mul(uint256.NewInt(work), uint256.NewInt(t*(n+1)*99))
	denominator := uint256.NewInt(100 * 2 * weightedSolveTimes)
	nextDifficultyInt := new(uint256.Int).Div(numerator, denominator)
	nextDifficulty := ^uint64(0)
	if nextDifficultyInt.IsUint64() {
		nextDifficulty = nextDifficultyInt.Uint64()
	}

	previousDifficulty := cumulativeDifficulties[n] - cumulativeDifficulties[n-1]
	lowerBound := mulDiv(previousDifficulty, 67, 100)
	upperBound := mulDiv(previousDifficulty, 150, 100)
	if nextDifficulty < lowerBound {
		nextDifficulty = lowerBound
	}
	if nextDifficulty > upperBound {
		nextDifficulty = upperBound
	}

	// A burst of fast blocks raises the difficulty right away.
	if lastThreeSolveTimes < 9*t/10 {
		minimum := mulDiv(previousDifficulty, 108, 100)
		if nextDifficulty < minimum {
			nextDifficulty = minimum
		}
	}
	if nextDifficulty == 0 {
		nextDifficulty = 1
	}
	return nextDifficulty
}

func mulDiv(value, numerator, denominator uint64) uint64 {
	result := new(uint256.Int).Mul(uint256.NewInt(value), uint256.NewInt(numerator))
	result.Div(result, uint256.NewInt(denominator))
	if !result.IsUint64() {
		return ^uint64(0)
	}
	return result.Uint64()
}

func (dm *difficultyManager) DifficultyForNextBlock(view model.ChainView, previousBlockIndex uint32) (uint64, error) {
	count := dm.difficultyWindow + 1
	timestamps, err := view.LastTimestamps(count, previousBlockIndex, false)
	if err != nil {
		return 0, err
	}
	cumulativeDifficulties, err := view.LastCumulativeDifficulties(count, previousBlockIndex, false)
	if err != nil {
		return 0, err
	}
	return dm.NextDifficulty(timestamps, cumulativeDifficulties), nil
}

// CheckProofOfWork reads proofOfWorkHash as a little endian 256 bit number
// and accepts it if multiplying it by difficulty does not overflow.
func (dm *difficultyManager) CheckProofOfWork(proofOfWorkHash externalapi.DomainHash, difficulty uint64) bool {
	if difficulty == 0 {
		return false
	}
	var bigEndian [externalapi.DomainHashSize]byte
	for i, b := range proofOfWorkHash {
		bigEndian[externalapi.DomainHashSize-1-i] = b
	}
	hash := new(uint256.Int).SetBytes(bigEndian[:])
	_, overflow := new(uint256.Int).MulOverflow(hash, uint256.NewInt(difficulty))
	return !overflow
}
