package consensus

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/miningmanager/mempool"
	"github.com/cnchain/cnd/infrastructure/db/database"
)

const testEventsBufferSize = 10_000

// TestConsensus wraps the consensus with the internals tests need
type TestConsensus interface {
	externalapi.Consensus

	DeleteAlternativeChains() error
	MergeMainChainSegments() error

	Tree() *segmenttree.Tree
	MainChainStore() model.MainChainStore
	Pool() mempool.Mempool
	Database() database.Database
	DataDir() string

	// DrainEvents returns every event sent since the previous call.
	DrainEvents() []externalapi.ConsensusEvent
}

type testConsensus struct {
	*consensus
	db      database.Database
	dataDir string
	events  chan externalapi.ConsensusEvent
}

func (tc *testConsensus) Tree() *segmenttree.Tree {
	return tc.tree
}

func (tc *testConsensus) MainChainStore() model.MainChainStore {
	return tc.mainChainStore
}

func (tc *testConsensus) Pool() mempool.Mempool {
	return tc.pool
}

func (tc *testConsensus) Database() database.Database {
	return tc.db
}

func (tc *testConsensus) DataDir() string {
	return tc.dataDir
}

func (tc *testConsensus) DrainEvents() []externalapi.ConsensusEvent {
	var events []externalapi.ConsensusEvent
	for {
		select {
		case event := <-tc.events:
			events = append(events, event)
		default:
			return events
		}
	}
}
