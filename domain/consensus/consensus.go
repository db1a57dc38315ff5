package consensus

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/processes/chainselector"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/miningmanager/mempool"
)

// consensus is the chain selector together with the pool it feeds. The
// database is owned by the caller of NewConsensus.
type consensus struct {
	chainselector.ChainSelector

	tree           *segmenttree.Tree
	mainChainStore model.MainChainStore
	pool           mempool.Mempool
	closed         bool
}

// Close stops the pool cleaner and compacts the segment tree into its root
// so that a persisted root holds the whole main chain.
func (s *consensus) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.pool.Stop()
	err := s.ChainSelector.Save()
	if err != nil {
		return err
	}
	log.Infof("Consensus closed at block %d", s.ChainSelector.GetTopBlockIndex())
	return s.ChainSelector.Close()
}
