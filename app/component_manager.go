package app

import (
	"sync/atomic"

	"github.com/cnchain/cnd/domain/consensus"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/infrastructure/config"
	infrastructuredatabase "github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/cnchain/cnd/infrastructure/metrics"
	"github.com/cnchain/cnd/util/panics"
)

const consensusEventsBufferSize = 1000

// ComponentManager is a wrapper for all the cnd services
type ComponentManager struct {
	cfg       *config.Config
	consensus externalapi.Consensus

	events     chan externalapi.ConsensusEvent
	eventsDone chan struct{}

	started, shutdown int32
}

// Start launches all the cnd services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting cnd")

	if a.cfg.MetricsListen != "" {
		metrics.Serve(a.cfg.MetricsListen)
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn("ComponentManager.handleConsensusEvents", a.handleConsensusEvents)
}

// Stop gracefully shuts down all the cnd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Cnd is already in the process of shutting down")
		return
	}

	log.Warnf("Cnd shutting down")

	err := a.consensus.Close()
	if err != nil {
		log.Errorf("Error closing the consensus: %+v", err)
	}

	close(a.events)
	if atomic.LoadInt32(&a.started) != 0 {
		<-a.eventsDone
	}
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db infrastructuredatabase.Database) (*ComponentManager, error) {
	events := make(chan externalapi.ConsensusEvent, consensusEventsBufferSize)
	c, err := consensus.NewFactory().NewConsensus(cfg.ConsensusConfig(), db, events)
	if err != nil {
		return nil, err
	}

	return &ComponentManager{
		cfg:        cfg,
		consensus:  c,
		events:     events,
		eventsDone: make(chan struct{}),
	}, nil
}

// Consensus returns the consensus managed by this ComponentManager
func (a *ComponentManager) Consensus() externalapi.Consensus {
	return a.consensus
}

func (a *ComponentManager) handleConsensusEvents() {
	defer close(a.eventsDone)

	for event := range a.events {
		switch event := event.(type) {
		case *externalapi.BlockAdded:
			log.Debugf("Block %s added to the main chain at %d", event.BlockHash, event.BlockIndex)
		case *externalapi.AlternativeBlockAdded:
			log.Debugf("Block %s added to an alternative chain at %d", event.BlockHash, event.BlockIndex)
		case *externalapi.ChainSwitched:
			log.Infof("Main chain switched at %d, %d blocks on the new branch",
				event.CommonRootIndex, len(event.BlockHashes))
		case *externalapi.TransactionAdded:
			log.Tracef("Transaction %s added to the pool", event.TransactionHash)
		case *externalapi.TransactionDeleted:
			log.Debugf("%d transactions left the pool (%s)", len(event.TransactionHashes), event.Reason)
		}
	}
}
