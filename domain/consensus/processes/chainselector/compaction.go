package chainselector

import (
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/infrastructure/logger"
)

// Save drops every alternative chain and merges the main chain into the
// root segment, leaving a single segment to persist.
func (cs *chainSelector) Save() error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "Save")
	defer onEnd()

	cs.lock.Lock()
	defer cs.lock.Unlock()

	err := cs.checkInitialized()
	if err != nil {
		return err
	}
	err = cs.deleteAlternativeChains()
	if err != nil {
		return cs.fatalf(err, "failed to delete alternative chains")
	}
	err = cs.mergeMainChainSegments()
	if err != nil {
		return cs.fatalf(err, "failed to merge the main chain segments")
	}
	log.Infof("Saved the chain, top block %d %s", cs.topBlockIndex, cs.topBlockHash)
	return nil
}

func (cs *chainSelector) DeleteAlternativeChains() error {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	err := cs.checkInitialized()
	if err != nil {
		return err
	}
	return cs.deleteAlternativeChains()
}

func (cs *chainSelector) deleteAlternativeChains() error {
	var alternatives []segmenttree.SegmentID
	for id := range cs.mainChainSet {
		children, err := cs.tree.Children(id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if !cs.isMainChainSegment(child) {
				alternatives = append(alternatives, child)
			}
		}
	}
	for _, id := range alternatives {
		err := cs.tree.RemoveSubtree(id)
		if err != nil {
			return err
		}
	}
	cs.leaves = cs.leaves[:1]
	log.Debugf("Deleted %d alternative chains", len(alternatives))
	return cs.updateTop()
}

func (cs *chainSelector) MergeMainChainSegments() error {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	err := cs.checkInitialized()
	if err != nil {
		return err
	}
	return cs.mergeMainChainSegments()
}

// mergeMainChainSegments merges the main chain into the root. Alternative
// chains must have been deleted first.
func (cs *chainSelector) mergeMainChainSegments() error {
	root := cs.tree.Root()
	for {
		children, err := cs.tree.Children(root)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			break
		}
		err = cs.tree.MergeIntoParent(children[0])
		if err != nil {
			return err
		}
	}
	cs.leaves = []segmenttree.SegmentID{root}
	return cs.updateMainChainSet()
}
