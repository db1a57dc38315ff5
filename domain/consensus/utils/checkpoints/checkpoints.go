// Package checkpoints keeps the hard coded block hashes below which the
// chain is trusted without proof of work or spend checks.
package checkpoints

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// Checkpoint identifies a known good block by its index and hash.
type Checkpoint struct {
	Index uint32
	Hash  externalapi.DomainHash
}

// Checkpoints answers checkpoint queries for a sorted set of checkpoints.
type Checkpoints struct {
	checkpointsByIndex map[uint32]externalapi.DomainHash
	topIndex           uint32
	enabled            bool
}

// New returns a Checkpoints over checkpoints, which must be sorted by
// index with no index repeated. A disabled Checkpoints has no zone and
// accepts every block.
func New(checkpoints []Checkpoint, enabled bool) (*Checkpoints, error) {
	isSorted := sort.SliceIsSorted(checkpoints, func(i, j int) bool {
		return checkpoints[i].Index < checkpoints[j].Index
	})
	if !isSorted {
		return nil, errors.New("checkpoints are not sorted by index")
	}

	checkpointsByIndex := make(map[uint32]externalapi.DomainHash, len(checkpoints))
	var topIndex uint32
	for _, checkpoint := range checkpoints {
		if _, ok := checkpointsByIndex[checkpoint.Index]; ok {
			return nil, errors.Errorf("checkpoint index %d appears twice", checkpoint.Index)
		}
		checkpointsByIndex[checkpoint.Index] = checkpoint.Hash
		topIndex = checkpoint.Index
	}
	return &Checkpoints{
		checkpointsByIndex: checkpointsByIndex,
		topIndex:           topIndex,
		enabled:            enabled && len(checkpoints) > 0,
	}, nil
}

// IsInCheckpointZone returns whether blockIndex is at or below the top
// checkpoint.
func (c *Checkpoints) IsInCheckpointZone(blockIndex uint32) bool {
	return c.enabled && blockIndex <= c.topIndex
}

// CheckBlock returns whether blockIndex holds a checkpoint and, if it does,
// whether blockHash matches it.
func (c *Checkpoints) CheckBlock(blockIndex uint32, blockHash externalapi.DomainHash) (isCheckpoint bool, isValid bool) {
	if !c.enabled {
		return false, true
	}
	expectedHash, ok := c.checkpointsByIndex[blockIndex]
	if !ok {
		return false, true
	}
	return true, expectedHash == blockHash
}

// IsAlternativeBlockAllowed returns whether a fork may add a block at
// blockIndex while the main chain holds blockCount blocks. Forks at or
// below the last checkpoint with an index up to blockCount are refused.
func (c *Checkpoints) IsAlternativeBlockAllowed(blockCount uint32, blockIndex uint32) bool {
	if blockCount == 0 || blockIndex == 0 {
		return false
	}
	if !c.enabled {
		return true
	}

	var lastReached uint32
	found := false
	for index := range c.checkpointsByIndex {
		if index <= blockCount && (!found || index > lastReached) {
			lastReached = index
			found = true
		}
	}
	return !found || blockIndex > lastReached
}
