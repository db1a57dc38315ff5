package persistedsegment

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// outputCount is the range of global indexes of one amount a segment
// created: [startIndex, startIndex+count).
type outputCount struct {
	startIndex uint32
	count      uint32
}

func serializeOutputCount(counter *outputCount) []byte {
	return append(uint32Bytes(counter.startIndex), uint32Bytes(counter.count)...)
}

func deserializeOutputCount(bytes []byte) (*outputCount, error) {
	if len(bytes) != 8 {
		return nil, errors.Errorf("expected 8 bytes of output count, got %d", len(bytes))
	}
	startIndex, err := bytesUint32(bytes[:4])
	if err != nil {
		return nil, err
	}
	count, err := bytesUint32(bytes[4:])
	if err != nil {
		return nil, err
	}
	return &outputCount{startIndex: startIndex, count: count}, nil
}

func (ps *persistedSegment) outputCount(amount uint64) (*outputCount, bool, error) {
	counterBytes, err := ps.db.Get(ps.keys.outputCountKey(amount))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	counter, err := deserializeOutputCount(counterBytes)
	if err != nil {
		return nil, false, err
	}
	return counter, true, nil
}

func (ps *persistedSegment) KeyOutputs(amount uint64) (uint32, uint32, error) {
	counter, found, err := ps.outputCount(amount)
	if err != nil || !found {
		return 0, 0, err
	}
	return counter.startIndex, counter.count, nil
}

func (ps *persistedSegment) KeyOutputAt(amount uint64, globalIndex uint32) (externalapi.PackedOutIndex, error) {
	packedBytes, err := ps.db.Get(ps.keys.outputKey(amount, globalIndex))
	if err != nil {
		return externalapi.PackedOutIndex{}, err
	}
	return serialization.PackedOutIndexFromBytes(packedBytes)
}

func (ps *persistedSegment) KeyOutputsUpTo(amount uint64, blockIndex uint32) (uint32, error) {
	counter, found, err := ps.outputCount(amount)
	if err != nil || !found {
		return 0, err
	}

	var searchErr error
	count := sort.Search(int(counter.count), func(i int) bool {
		if searchErr != nil {
			return true
		}
		packed, err := ps.KeyOutputAt(amount, counter.startIndex+uint32(i))
		if err != nil {
			searchErr = err
			return true
		}
		return packed.BlockIndex > blockIndex
	})
	if searchErr != nil {
		return 0, searchErr
	}
	return uint32(count), nil
}
