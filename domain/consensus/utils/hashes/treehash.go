package hashes

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// TreeHash returns the merkle root of hashes the way CryptoNote chains
// build it: the leaves that do not fit into the largest power of two below
// len(hashes) are paired first, then the tree is folded pairwise.
// TreeHash panics on an empty slice.
func TreeHash(hashes []externalapi.DomainHash) externalapi.DomainHash {
	count := len(hashes)
	switch count {
	case 0:
		panic("TreeHash called with no hashes")
	case 1:
		return hashes[0]
	case 2:
		return hashPair(&hashes[0], &hashes[1])
	}

	width := treeHashWidth(count)
	intermediate := make([]externalapi.DomainHash, width)
	untouched := 2*width - count
	copy(intermediate, hashes[:untouched])
	for i, j := untouched, untouched; j < width; i, j = i+2, j+1 {
		intermediate[j] = hashPair(&hashes[i], &hashes[i+1])
	}

	for width > 2 {
		width >>= 1
		for i, j := 0, 0; j < width; i, j = i+2, j+1 {
			intermediate[j] = hashPair(&intermediate[i], &intermediate[i+1])
		}
	}
	return hashPair(&intermediate[0], &intermediate[1])
}

// treeHashWidth returns the largest power of two strictly below count.
func treeHashWidth(count int) int {
	width := 2
	for width < count {
		width <<= 1
	}
	return width >> 1
}

func hashPair(left, right *externalapi.DomainHash) externalapi.DomainHash {
	return Keccak(left[:], right[:])
}
