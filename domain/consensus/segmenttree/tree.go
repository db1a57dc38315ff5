// Package segmenttree keeps the chain and all of its live forks as a tree
// of segments. Every segment holds a contiguous range of blocks and every
// child starts right above the top block of its parent, so the blocks of
// any leaf are those on the path from the leaf up to the root.
//
// Segments are owned by the tree and referenced by SegmentID handles. A
// handle is never reused, so a stale handle is reported as unknown rather
// than silently pointing at another segment. Queries that need ancestor
// data walk the parent handles in a loop.
//
// Mutations of a Tree are not safe for concurrent use and its owner
// serializes them. Queries may run concurrently with each other.
package segmenttree

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/pkg/errors"
)

// SegmentID is a stable handle of a segment in a Tree.
type SegmentID uint64

// NoSegment is the zero SegmentID. It is the parent of the root.
const NoSegment SegmentID = 0

type segment struct {
	id       SegmentID
	storage  model.SegmentStorage
	parent   SegmentID
	children []SegmentID
}

// Tree is an arena of segments.
type Tree struct {
	params   *chaincfg.Params
	factory  model.SegmentStorageFactory
	segments map[SegmentID]*segment
	root     SegmentID
	lastID   SegmentID

	// randomLock guards random, which queries share.
	randomLock sync.Mutex
	random     *rand.Rand
}

// New returns an empty Tree whose segments are created by factory.
func New(params *chaincfg.Params, factory model.SegmentStorageFactory) *Tree {
	return &Tree{
		params:   params,
		factory:  factory,
		segments: make(map[SegmentID]*segment),
		random:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *Tree) add(storage model.SegmentStorage, parent SegmentID) *segment {
	t.lastID++
	seg := &segment{id: t.lastID, storage: storage, parent: parent}
	t.segments[seg.id] = seg
	return seg
}

func (t *Tree) segment(id SegmentID) (*segment, error) {
	seg, ok := t.segments[id]
	if !ok {
		return nil, errors.Errorf("unknown segment %d", id)
	}
	return seg, nil
}

// CreateRoot creates the root segment. It fails if the tree already has
// one.
func (t *Tree) CreateRoot() (SegmentID, error) {
	if t.root != NoSegment {
		return NoSegment, errors.New("the tree already has a root")
	}
	storage, err := t.factory.NewSegmentStorage(0)
	if err != nil {
		return NoSegment, err
	}
	t.root = t.add(storage, NoSegment).id
	return t.root, nil
}

// LoadRoot makes the root stored by the segment storage factory the root
// of the tree, if one is stored.
func (t *Tree) LoadRoot() (SegmentID, bool, error) {
	if t.root != NoSegment {
		return NoSegment, false, errors.New("the tree already has a root")
	}
	storage, found, err := t.factory.LoadRoot()
	if err != nil || !found {
		return NoSegment, false, err
	}
	t.root = t.add(storage, NoSegment).id
	log.Infof("Loaded root segment with %d blocks", storage.BlockCount())
	return t.root, true, nil
}

// Root returns the root segment, or NoSegment if there is none yet.
func (t *Tree) Root() SegmentID {
	return t.root
}

// Len returns the number of segments in the tree.
func (t *Tree) Len() int {
	return len(t.segments)
}

// Segments returns every segment of the tree, oldest first.
func (t *Tree) Segments() []SegmentID {
	ids := make([]SegmentID, 0, len(t.segments))
	for id := range t.segments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Parent returns the parent of id, or NoSegment for the root.
func (t *Tree) Parent(id SegmentID) (SegmentID, error) {
	seg, err := t.segment(id)
	if err != nil {
		return NoSegment, err
	}
	return seg.parent, nil
}

// Children returns the children of id.
func (t *Tree) Children(id SegmentID) ([]SegmentID, error) {
	seg, err := t.segment(id)
	if err != nil {
		return nil, err
	}
	return append([]SegmentID(nil), seg.children...), nil
}

// IsLeaf returns whether id has no children.
func (t *Tree) IsLeaf(id SegmentID) (bool, error) {
	seg, err := t.segment(id)
	if err != nil {
		return false, err
	}
	return len(seg.children) == 0, nil
}

// Path returns id and its ancestors, id first.
func (t *Tree) Path(id SegmentID) ([]SegmentID, error) {
	var path []SegmentID
	for current := id; current != NoSegment; {
		seg, err := t.segment(current)
		if err != nil {
			return nil, err
		}
		path = append(path, current)
		current = seg.parent
	}
	return path, nil
}

// StartIndex returns the index of the first block of id.
func (t *Tree) StartIndex(id SegmentID) (uint32, error) {
	seg, err := t.segment(id)
	if err != nil {
		return 0, err
	}
	return seg.storage.StartIndex(), nil
}

// BlockCount returns the number of blocks id holds itself.
func (t *Tree) BlockCount(id SegmentID) (uint32, error) {
	seg, err := t.segment(id)
	if err != nil {
		return 0, err
	}
	return seg.storage.BlockCount(), nil
}

// TopBlockIndex returns the index of the highest block on the path of id.
func (t *Tree) TopBlockIndex(id SegmentID) (uint32, error) {
	seg, err := t.segment(id)
	if err != nil {
		return 0, err
	}
	return topIndex(seg)
}

func topIndex(seg *segment) (uint32, error) {
	count := seg.storage.BlockCount()
	if count == 0 {
		if seg.storage.StartIndex() == 0 {
			return 0, errors.Errorf("segment %d is an empty root", seg.id)
		}
		return seg.storage.StartIndex() - 1, nil
	}
	return seg.storage.StartIndex() + count - 1, nil
}
