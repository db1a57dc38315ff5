package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// BuildSparseChain returns main chain hashes from the top down, at
// exponentially growing distances, ending with the genesis hash.
func (cs *chainSelector) BuildSparseChain() ([]externalapi.DomainHash, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}

	sparseChain := []externalapi.DomainHash{cs.topBlockHash}
	for distance := uint32(1); distance < cs.topBlockIndex; distance *= 2 {
		blockHash, err := cs.tree.BlockHash(cs.mainLeaf(), cs.topBlockIndex-distance)
		if err != nil {
			return nil, err
		}
		sparseChain = append(sparseChain, blockHash)
	}
	if cs.topBlockIndex > 0 {
		sparseChain = append(sparseChain, cs.params.GenesisHash)
	}
	return sparseChain, nil
}

// FindBlockchainSupplement answers the sparse chain of a peer with up to
// maxCount main chain hashes, starting with the highest block both sides
// have. Blocks older than timestamp are only needed by the peer as hashes.
func (cs *chainSelector) FindBlockchainSupplement(remoteBlockHashes []externalapi.DomainHash, timestamp uint64,
	maxCount uint32) (*externalapi.BlockchainSupplement, error) {

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	err := cs.checkInitialized()
	if err != nil {
		return nil, err
	}
	if len(remoteBlockHashes) == 0 {
		return nil, errors.New("empty sparse chain")
	}
	if remoteBlockHashes[len(remoteBlockHashes)-1] != cs.params.GenesisHash {
		return nil, errors.Errorf("sparse chain ends with %s instead of the genesis block",
			remoteBlockHashes[len(remoteBlockHashes)-1])
	}

	startIndex, found := uint32(0), false
	for _, remoteBlockHash := range remoteBlockHashes {
		id, blockIndex, ok, err := cs.tree.FindBlock(remoteBlockHash)
		if err != nil {
			return nil, err
		}
		if ok && cs.isMainChainSegment(id) {
			startIndex, found = blockIndex, true
			break
		}
	}
	if !found {
		return nil, errors.New("sparse chain has no block on the main chain")
	}

	fullOffset, ok, err := cs.tree.TimestampLowerBound(cs.mainLeaf(), timestamp)
	if err != nil {
		return nil, err
	}
	if !ok {
		fullOffset = cs.topBlockIndex + 1
	}
	if fullOffset < startIndex {
		fullOffset = startIndex
	}

	blockHashes, err := cs.tree.BlockHashes(cs.mainLeaf(), startIndex, maxCount)
	if err != nil {
		return nil, err
	}
	return &externalapi.BlockchainSupplement{
		StartIndex:  startIndex,
		FullOffset:  fullOffset,
		TotalCount:  cs.topBlockIndex + 1,
		BlockHashes: blockHashes,
	}, nil
}
