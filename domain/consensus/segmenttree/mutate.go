package segmenttree

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// PushBlock appends a validated block to the top of id, which must be a
// leaf. The cumulative fields continue from the block below, which may
// live in the parent, and outputs of amounts id has not seen yet continue
// the global indexes of its ancestors.
func (t *Tree) PushBlock(id SegmentID, push *model.BlockPush) error {
	seg, err := t.segment(id)
	if err != nil {
		return err
	}
	if len(seg.children) != 0 {
		return errors.Errorf("cannot push a block to segment %d, which has children", id)
	}

	blockIndex := seg.storage.StartIndex() + seg.storage.BlockCount()
	var previous *externalapi.CachedBlockInfo
	if blockIndex > 0 {
		previous, err = t.BlockInfo(id, blockIndex-1)
		if err != nil {
			return err
		}
	}

	parentOutputs := func(amount uint64) (uint32, error) {
		if seg.parent == NoSegment {
			return 0, nil
		}
		return t.KeyOutputsCountForAmount(seg.parent, amount, blockIndex)
	}
	return seg.storage.PushBlock(push, previous, parentOutputs)
}

// NewChild creates an empty leaf below parent. The child starts right
// above the top block of parent.
func (t *Tree) NewChild(parent SegmentID) (SegmentID, error) {
	parentSegment, err := t.segment(parent)
	if err != nil {
		return NoSegment, err
	}
	top, err := topIndex(parentSegment)
	if err != nil {
		return NoSegment, err
	}
	storage, err := t.factory.NewSegmentStorage(top + 1)
	if err != nil {
		return NoSegment, err
	}
	child := t.add(storage, parent)
	parentSegment.children = append(parentSegment.children, child.id)
	log.Debugf("Created segment %d at %d below segment %d", child.id, top+1, parent)
	return child.id, nil
}

// Split moves the blocks of id with index >= at into a new segment and
// returns it. The new segment takes over every child of id and becomes its
// only child.
func (t *Tree) Split(id SegmentID, at uint32) (SegmentID, error) {
	seg, err := t.segment(id)
	if err != nil {
		return NoSegment, err
	}
	storage, err := t.factory.NewSegmentStorage(at)
	if err != nil {
		return NoSegment, err
	}
	err = seg.storage.Split(at, storage)
	if err != nil {
		// The factory handed out storage that is not referenced anywhere.
		deleteErr := storage.Delete()
		if deleteErr != nil {
			log.Errorf("Failed to delete unused segment storage: %s", deleteErr)
		}
		return NoSegment, err
	}

	upper := t.add(storage, id)
	upper.children = seg.children
	for _, childID := range upper.children {
		t.segments[childID].parent = upper.id
	}
	seg.children = []SegmentID{upper.id}

	log.Debugf("Split segment %d at %d into segment %d", id, at, upper.id)
	return upper.id, nil
}

// MergeIntoParent replays the blocks of id into its parent and removes id.
// The parent must have no other child. The children of id become children
// of the parent.
func (t *Tree) MergeIntoParent(id SegmentID) error {
	seg, err := t.segment(id)
	if err != nil {
		return err
	}
	if seg.parent == NoSegment {
		return errors.New("cannot merge the root into a parent")
	}
	parent := t.segments[seg.parent]
	if len(parent.children) != 1 {
		return errors.Errorf("cannot merge segment %d into segment %d, which has %d children",
			id, parent.id, len(parent.children))
	}

	start := seg.storage.StartIndex()
	end := start + seg.storage.BlockCount()
	pushes := make([]*model.BlockPush, 0, end-start)
	for blockIndex := start; blockIndex < end; blockIndex++ {
		push, err := t.BlockPush(id, blockIndex)
		if err != nil {
			return err
		}
		pushes = append(pushes, push)
	}

	// The parent must look like a leaf while it is extended.
	children := seg.children
	parent.children = nil
	for _, push := range pushes {
		err = t.PushBlock(parent.id, push)
		if err != nil {
			return err
		}
	}

	parent.children = children
	for _, childID := range children {
		t.segments[childID].parent = parent.id
	}
	delete(t.segments, id)

	log.Debugf("Merged segment %d (%d blocks) into segment %d", id, end-start, parent.id)
	return seg.storage.Delete()
}

// RemoveSubtree removes id and all of its descendants. The root cannot be
// removed.
func (t *Tree) RemoveSubtree(id SegmentID) error {
	seg, err := t.segment(id)
	if err != nil {
		return err
	}
	if seg.parent == NoSegment {
		return errors.New("cannot remove the root")
	}
	parent := t.segments[seg.parent]
	for i, childID := range parent.children {
		if childID == id {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}

	stack := []SegmentID{id}
	for len(stack) > 0 {
		current := t.segments[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		stack = append(stack, current.children...)

		delete(t.segments, current.id)
		err = current.storage.Delete()
		if err != nil {
			return err
		}
		log.Debugf("Removed segment %d", current.id)
	}
	return nil
}

// Cut drops every block with index >= at from the path of id, together
// with every segment above the cut.
func (t *Tree) Cut(id SegmentID, at uint32) error {
	owner, err := t.owner(id, at)
	if err != nil {
		return err
	}
	if owner.storage.StartIndex() == at {
		if owner.parent == NoSegment {
			return errors.New("cannot cut the whole root")
		}
		return t.RemoveSubtree(owner.id)
	}
	upper, err := t.Split(owner.id, at)
	if err != nil {
		return err
	}
	return t.RemoveSubtree(upper)
}
