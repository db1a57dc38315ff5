package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
)

// placeBlock pushes a validated block into the segment tree. A block on
// top of the main leaf extends the main chain and the main chain store.
// Any other block lands in a leaf, creating one when its parent already
// has children above it.
func (cs *chainSelector) placeBlock(validated *validatedBlock) (externalapi.AddBlockOutcome, error) {
	parent := validated.parentSegment
	parentTopIndex, err := cs.tree.TopBlockIndex(parent)
	if err != nil {
		return 0, err
	}
	isLeaf, err := cs.tree.IsLeaf(parent)
	if err != nil {
		return 0, err
	}

	if parentTopIndex == validated.blockIndex-1 {
		if isLeaf && parent == cs.mainLeaf() {
			return cs.pushToMainChain(validated)
		}
		leaf := parent
		if !isLeaf {
			leaf, err = cs.tree.NewChild(parent)
			if err != nil {
				return 0, cs.fatalf(err, "failed to create a segment for block %s", validated.blockHash)
			}
			cs.leaves = append(cs.leaves, leaf)
		}
		err = cs.tree.PushBlock(leaf, validated.push)
		if err != nil {
			return 0, cs.fatalf(err, "failed to push block %s", validated.blockHash)
		}
		return cs.compareWithMainChain(leaf)
	}

	// The block forks below the top of its parent segment.
	upper, err := cs.tree.Split(parent, validated.blockIndex)
	if err != nil {
		return 0, cs.fatalf(err, "failed to split segment at %d", validated.blockIndex)
	}
	if isLeaf {
		cs.replaceLeaf(parent, upper)
	}
	if cs.isMainChainSegment(parent) {
		err = cs.updateMainChainSet()
		if err != nil {
			return 0, cs.fatalf(err, "failed to update the main chain after a split")
		}
	}
	leaf, err := cs.tree.NewChild(parent)
	if err != nil {
		return 0, cs.fatalf(err, "failed to create a segment for block %s", validated.blockHash)
	}
	cs.leaves = append(cs.leaves, leaf)
	err = cs.tree.PushBlock(leaf, validated.push)
	if err != nil {
		return 0, cs.fatalf(err, "failed to push block %s", validated.blockHash)
	}
	return cs.compareWithMainChain(leaf)
}

func (cs *chainSelector) pushToMainChain(validated *validatedBlock) (externalapi.AddBlockOutcome, error) {
	err := cs.mainChainStore.PushBlock(validated.push.RawBlock)
	if err != nil {
		return 0, cs.fatalf(err, "failed to store main chain block %s", validated.blockHash)
	}
	err = cs.tree.PushBlock(cs.mainLeaf(), validated.push)
	if err != nil {
		return 0, cs.fatalf(err, "failed to push main chain block %s", validated.blockHash)
	}
	err = cs.updateTop()
	if err != nil {
		return 0, cs.fatalf(err, "failed to read the new main chain top")
	}
	return externalapi.AddedToMain, nil
}

// compareWithMainChain makes leaf the main chain leaf if its top has
// strictly more cumulative difficulty than the main chain top.
func (cs *chainSelector) compareWithMainChain(leaf segmenttree.SegmentID) (externalapi.AddBlockOutcome, error) {
	leafTop, err := cs.tree.TopBlockInfo(leaf)
	if err != nil {
		return 0, err
	}
	mainTop, err := cs.tree.TopBlockInfo(cs.mainLeaf())
	if err != nil {
		return 0, err
	}
	if leafTop.CumulativeDifficulty <= mainTop.CumulativeDifficulty {
		return externalapi.AddedToAlternative, nil
	}

	err = cs.switchTo(leaf)
	if err != nil {
		return 0, err
	}
	return externalapi.AddedToAlternativeAndSwitched, nil
}
