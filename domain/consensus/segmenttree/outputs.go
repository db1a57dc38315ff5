package segmenttree

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// KeyOutputsCountForAmount returns how many outputs of amount were created
// by blocks below blockIndex on the path of id. It is the global index the
// next output of amount created at blockIndex gets.
func (t *Tree) KeyOutputsCountForAmount(id SegmentID, amount uint64, blockIndex uint32) (uint32, error) {
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return 0, err
		}
		current = seg.parent

		startIndex, count, err := seg.storage.KeyOutputs(amount)
		if err != nil {
			return 0, err
		}
		if count == 0 || blockIndex <= seg.storage.StartIndex() {
			continue
		}
		below, err := seg.storage.KeyOutputsUpTo(amount, blockIndex-1)
		if err != nil {
			return 0, err
		}
		return startIndex + below, nil
	}
	return 0, nil
}

// KeyOutputVisitor is called by ExtractKeyOutputs for every requested
// output. Returning anything but ExtractOutputKeysSuccess stops the
// extraction with that result.
type KeyOutputVisitor func(info *externalapi.CachedTransactionInfo, index externalapi.PackedOutIndex,
	globalIndex uint32) (externalapi.ExtractOutputKeysResult, error)

type outputRequest struct {
	seg           *segment
	startIndex    uint32
	count         uint32
	globalIndexes []uint32
}

// ExtractKeyOutputs resolves the outputs of amount with the given global
// indexes, as seen from blockIndex on the path of id, and visits them in
// order. globalIndexes must be sorted and unique. Outputs created above
// blockIndex are reported as ExtractOutputKeysInvalidGlobalIndex.
func (t *Tree) ExtractKeyOutputs(id SegmentID, amount uint64, blockIndex uint32, globalIndexes []uint32,
	visit KeyOutputVisitor) (externalapi.ExtractOutputKeysResult, error) {

	// Every segment takes the suffix of the indexes its bucket covers and
	// leaves the rest to its ancestors.
	var requests []*outputRequest
	remaining := globalIndexes
	for current := id; current != NoSegment && len(remaining) > 0; {
		seg, err := t.segment(current)
		if err != nil {
			return externalapi.ExtractOutputKeysInvalid, err
		}
		current = seg.parent
		if blockIndex < seg.storage.StartIndex() {
			continue
		}
		startIndex, _, err := seg.storage.KeyOutputs(amount)
		if err != nil {
			return externalapi.ExtractOutputKeysInvalid, err
		}
		count, err := seg.storage.KeyOutputsUpTo(amount, blockIndex)
		if err != nil {
			return externalapi.ExtractOutputKeysInvalid, err
		}
		if count == 0 {
			continue
		}

		split := sort.Search(len(remaining), func(i int) bool { return remaining[i] >= startIndex })
		if split < len(remaining) {
			requests = append(requests, &outputRequest{
				seg:           seg,
				startIndex:    startIndex,
				count:         count,
				globalIndexes: remaining[split:],
			})
		}
		remaining = remaining[:split]
	}
	if len(remaining) > 0 {
		log.Debugf("Global index %d of amount %d precedes every known output", remaining[0], amount)
		return externalapi.ExtractOutputKeysInvalidGlobalIndex, nil
	}

	for i := len(requests) - 1; i >= 0; i-- {
		request := requests[i]
		storage := request.seg.storage
		for _, globalIndex := range request.globalIndexes {
			if globalIndex-request.startIndex >= request.count {
				log.Debugf("Global index %d of amount %d is above the last available %d", globalIndex, amount,
					request.startIndex+request.count)
				return externalapi.ExtractOutputKeysInvalidGlobalIndex, nil
			}
			index, err := storage.KeyOutputAt(amount, globalIndex)
			if err != nil {
				return externalapi.ExtractOutputKeysInvalid, err
			}
			info, err := storage.TransactionInfoAt(index.BlockIndex, index.TransactionIndex)
			if err != nil {
				return externalapi.ExtractOutputKeysInvalid, err
			}
			result, err := visit(info, index, globalIndex)
			if err != nil || result != externalapi.ExtractOutputKeysSuccess {
				return result, err
			}
		}
	}
	return externalapi.ExtractOutputKeysSuccess, nil
}

// ExtractKeyOutputKeys returns the keys of the outputs of amount with the
// given global indexes, failing with ExtractOutputKeysOutputLocked if any
// of them cannot be spent at blockIndex and timestamp.
func (t *Tree) ExtractKeyOutputKeys(id SegmentID, amount uint64, blockIndex uint32, timestamp uint64,
	globalIndexes []uint32) ([]externalapi.PublicKey, externalapi.ExtractOutputKeysResult, error) {

	publicKeys := make([]externalapi.PublicKey, 0, len(globalIndexes))
	result, err := t.ExtractKeyOutputs(id, amount, blockIndex, globalIndexes,
		func(info *externalapi.CachedTransactionInfo, index externalapi.PackedOutIndex,
			globalIndex uint32) (externalapi.ExtractOutputKeysResult, error) {

			if !t.params.IsUnlockTimeSatisfied(info.UnlockTime, blockIndex, timestamp) {
				return externalapi.ExtractOutputKeysOutputLocked, nil
			}
			if int(index.OutputIndex) >= len(info.Outputs) {
				return externalapi.ExtractOutputKeysInvalid, nil
			}
			publicKey, ok := info.Outputs[index.OutputIndex].KeyOutputKey()
			if !ok {
				return externalapi.ExtractOutputKeysInvalid, nil
			}
			publicKeys = append(publicKeys, publicKey)
			return externalapi.ExtractOutputKeysSuccess, nil
		})
	if err != nil || result != externalapi.ExtractOutputKeysSuccess {
		return nil, result, err
	}
	return publicKeys, result, nil
}

// matureOutputs returns how many of the local outputs of amount of seg
// were created at least MinedMoneyUnlockWindow blocks below blockIndex.
func (t *Tree) matureOutputs(seg *segment, amount uint64, blockIndex uint32) (uint32, error) {
	if blockIndex < t.params.MinedMoneyUnlockWindow {
		return 0, nil
	}
	return seg.storage.KeyOutputsUpTo(amount, blockIndex-t.params.MinedMoneyUnlockWindow)
}

// RandomOutsByAmount samples up to count distinct global indexes of
// outputs of amount that are mature and unlocked at blockIndex and
// timestamp. Every segment on the path of id is sampled, newest first,
// until enough outputs are found.
func (t *Tree) RandomOutsByAmount(id SegmentID, amount uint64, count uint64, blockIndex uint32,
	timestamp uint64) ([]uint32, error) {

	var globalIndexes []uint32
	for current := id; current != NoSegment && uint64(len(globalIndexes)) < count; {
		seg, err := t.segment(current)
		if err != nil {
			return nil, err
		}
		current = seg.parent

		startIndex, _, err := seg.storage.KeyOutputs(amount)
		if err != nil {
			return nil, err
		}
		mature, err := t.matureOutputs(seg, amount, blockIndex)
		if err != nil {
			return nil, err
		}

		// A lazy Fisher-Yates shuffle over [0, mature): swapped holds the
		// positions that no longer hold their own offset.
		swapped := make(map[uint32]uint32)
		at := func(position uint32) uint32 {
			if offset, ok := swapped[position]; ok {
				return offset
			}
			return position
		}
		for drawn := uint32(0); drawn < mature && uint64(len(globalIndexes)) < count; drawn++ {
			pick := drawn + uint32(t.randomInt63n(int64(mature-drawn)))
			offset := at(pick)
			swapped[pick] = at(drawn)

			globalIndex := startIndex + offset
			index, err := seg.storage.KeyOutputAt(amount, globalIndex)
			if err != nil {
				return nil, err
			}
			info, err := seg.storage.TransactionInfoAt(index.BlockIndex, index.TransactionIndex)
			if err != nil {
				return nil, err
			}
			if t.params.IsUnlockTimeSatisfied(info.UnlockTime, blockIndex, timestamp) {
				globalIndexes = append(globalIndexes, globalIndex)
			}
		}
	}
	return globalIndexes, nil
}

func (t *Tree) randomInt63n(n int64) int64 {
	t.randomLock.Lock()
	defer t.randomLock.Unlock()
	return t.random.Int63n(n)
}

// AvailableMixinsCount counts the mature outputs of amount on the path of
// id at blockIndex. Counting stops once threshold is reached.
func (t *Tree) AvailableMixinsCount(id SegmentID, amount uint64, blockIndex uint32, threshold uint64) (uint64, error) {
	available := uint64(0)
	for current := id; current != NoSegment && available < threshold; {
		seg, err := t.segment(current)
		if err != nil {
			return 0, err
		}
		current = seg.parent
		mature, err := t.matureOutputs(seg, amount, blockIndex)
		if err != nil {
			return 0, err
		}
		available += uint64(mature)
	}
	return available, nil
}

// RequiredMixin returns the number of decoys a ring of amount must hold
// in a transaction validated at blockIndex on the path of id.
func (t *Tree) RequiredMixin(id SegmentID, amount uint64, blockIndex uint32) (uint64, error) {
	available, err := t.AvailableMixinsCount(id, amount, blockIndex, t.params.MixinThreshold())
	if err != nil {
		return 0, err
	}
	return t.params.RequiredMixin(available), nil
}

// TransactionGlobalIndexes returns the global indexes of the outputs of a
// transaction on the path of id.
func (t *Tree) TransactionGlobalIndexes(id SegmentID, transactionHash externalapi.DomainHash) ([]uint32, bool, error) {
	info, found, err := t.TransactionInfo(id, transactionHash)
	if err != nil || !found {
		return nil, found, err
	}
	return info.GlobalIndexes, true, nil
}
