package chainselector_test

import (
	"testing"
	"time"

	"github.com/cnchain/cnd/domain/consensus"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

func TestAddBlockWithUnreadEvents(t *testing.T) {
	chain, teardown := setupTestChain(t, "TestAddBlockWithUnreadEvents", consensus.SegmentStorageMemory)
	defer teardown()

	err := chain.tc.Close()
	if err != nil {
		t.Fatalf("Close: %+v", err)
	}
	events := make(chan externalapi.ConsensusEvent)
	reopened, err := chain.factory.NewConsensus(chain.config, chain.tc.Database(), events)
	if err != nil {
		t.Fatalf("NewConsensus: %+v", err)
	}
	defer reopened.Close()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			parent, err := reopened.GetBlockByHash(reopened.GetTopBlockHash())
			if err != nil {
				done <- err
				return
			}
			rawBlock, _, err := chain.builder.BuildBlock(parent, mainTag, nil)
			if err != nil {
				done <- err
				return
			}
			_, err = reopened.AddBlock(rawBlock)
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AddBlock: %+v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("AddBlock blocked on an events channel nobody reads")
	}
	if reopened.GetTopBlockIndex() != 3 {
		t.Fatalf("expected the chain to reach index 3, got %d", reopened.GetTopBlockIndex())
	}
	// Queries take the chain lock, which a blocked send would still hold.
	_, err = reopened.GetDifficultyForNextBlock()
	if err != nil {
		t.Fatalf("GetDifficultyForNextBlock: %+v", err)
	}
}
