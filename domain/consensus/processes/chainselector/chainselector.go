// Package chainselector owns the segment tree of the node. It places every
// validated block on the main chain or on a fork, switches the main chain
// when a fork accumulates more difficulty, keeps the flat main chain store
// in step with the tree, and moves transactions between the chain and the
// pool as blocks come and go.
//
// Every public method takes the selector lock for its whole duration.
// Unexported methods assume it is held.
package chainselector

import (
	"sync"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/checkpoints"
	"github.com/cnchain/cnd/infrastructure/metrics"
	"github.com/cnchain/cnd/util/panics"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

// ChainSelector is the consensus of the node together with the
// maintenance operations its owner drives.
type ChainSelector interface {
	externalapi.Consensus

	// Load attaches the root segment, creating it with the genesis block
	// if there is none, and brings it in line with the main chain store.
	Load() error
	// RevalidatePoolTransaction checks that a pool transaction is still
	// valid on top of the main chain.
	RevalidatePoolTransaction(transaction *model.PoolTransaction) error
	DeleteAlternativeChains() error
	MergeMainChainSegments() error
}

type chainSelector struct {
	lock sync.RWMutex

	params       *chaincfg.Params
	clock        clock.Clock
	fatalHandler panics.FatalHandler
	events       chan<- externalapi.ConsensusEvent

	tree           *segmenttree.Tree
	mainChainStore model.MainChainStore
	pool           model.TransactionPool
	checkpoints    *checkpoints.Checkpoints

	blockValidator       model.BlockValidator
	transactionValidator model.TransactionValidator
	difficultyManager    model.DifficultyManager
	coinbaseManager      model.CoinbaseManager

	// leaves[0] is the main chain leaf.
	leaves        []segmenttree.SegmentID
	mainChainSet  map[segmenttree.SegmentID]struct{}
	topBlockIndex uint32
	topBlockHash  externalapi.DomainHash
	initialized   bool
}

// New instantiates a new ChainSelector. Consensus events are sent to
// events when it is not nil, and dropped when events is full.
func New(params *chaincfg.Params,
	clock clock.Clock,
	fatalHandler panics.FatalHandler,
	events chan<- externalapi.ConsensusEvent,

	tree *segmenttree.Tree,
	mainChainStore model.MainChainStore,
	pool model.TransactionPool,
	checkpoints *checkpoints.Checkpoints,

	blockValidator model.BlockValidator,
	transactionValidator model.TransactionValidator,
	difficultyManager model.DifficultyManager,
	coinbaseManager model.CoinbaseManager) ChainSelector {

	return &chainSelector{
		params:       params,
		clock:        clock,
		fatalHandler: fatalHandler,
		events:       events,

		tree:           tree,
		mainChainStore: mainChainStore,
		pool:           pool,
		checkpoints:    checkpoints,

		blockValidator:       blockValidator,
		transactionValidator: transactionValidator,
		difficultyManager:    difficultyManager,
		coinbaseManager:      coinbaseManager,

		mainChainSet: make(map[segmenttree.SegmentID]struct{}),
	}
}

// fatalf reports err, which left the tree or the main chain store in an
// unknown state, to the fatal handler and returns it.
func (cs *chainSelector) fatalf(err error, format string, args ...interface{}) error {
	wrapped := errors.Wrapf(err, format, args...)
	log.Criticalf("%+v", wrapped)
	cs.fatalHandler(wrapped.Error())
	return wrapped
}

// sendEvent runs under cs.lock, so it never waits for the consumer. An
// event that does not fit in the channel is dropped.
func (cs *chainSelector) sendEvent(event externalapi.ConsensusEvent) {
	if cs.events == nil {
		return
	}
	select {
	case cs.events <- event:
	default:
		log.Warnf("Dropped %T: the consensus events channel is full", event)
	}
}

func (cs *chainSelector) mainLeaf() segmenttree.SegmentID {
	return cs.leaves[0]
}

func (cs *chainSelector) isMainChainSegment(id segmenttree.SegmentID) bool {
	_, ok := cs.mainChainSet[id]
	return ok
}

func (cs *chainSelector) checkInitialized() error {
	if !cs.initialized {
		return errors.WithStack(ruleerrors.ErrNotInitialized)
	}
	return nil
}

// updateMainChainSet recomputes the segments on the path of the main leaf
// and the cached top of the main chain.
func (cs *chainSelector) updateMainChainSet() error {
	path, err := cs.tree.Path(cs.mainLeaf())
	if err != nil {
		return err
	}
	cs.mainChainSet = make(map[segmenttree.SegmentID]struct{}, len(path))
	for _, id := range path {
		cs.mainChainSet[id] = struct{}{}
	}
	return cs.updateTop()
}

func (cs *chainSelector) updateTop() error {
	topBlockIndex, err := cs.tree.TopBlockIndex(cs.mainLeaf())
	if err != nil {
		return err
	}
	topBlockHash, err := cs.tree.BlockHash(cs.mainLeaf(), topBlockIndex)
	if err != nil {
		return err
	}
	cs.topBlockIndex = topBlockIndex
	cs.topBlockHash = topBlockHash

	metrics.TopBlockIndex.Set(float64(topBlockIndex))
	metrics.Segments.Set(float64(cs.tree.Len()))
	return nil
}

func (cs *chainSelector) replaceLeaf(old, replacement segmenttree.SegmentID) {
	for i, leaf := range cs.leaves {
		if leaf == old {
			cs.leaves[i] = replacement
			return
		}
	}
}

func (cs *chainSelector) Close() error {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	cs.initialized = false
	return nil
}
