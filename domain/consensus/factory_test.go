package consensus

import (
	"os"
	"testing"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/utils/testutils"
	"github.com/cnchain/cnd/infrastructure/db/database/ldb"
)

func TestNewConsensus(t *testing.T) {
	for _, segmentStorage := range []SegmentStorage{SegmentStorageMemory, SegmentStorageLevelDB} {
		t.Run(string(segmentStorage), func(t *testing.T) {
			f := NewFactory()
			config := DefaultConfig(&chaincfg.SimnetParams)
			config.SegmentStorage = segmentStorage

			tmpDir, err := os.MkdirTemp("", "TestNewConsensus")
			if err != nil {
				t.Fatalf("error in os.MkdirTemp: %s", err)
			}
			defer os.RemoveAll(tmpDir)

			db, err := ldb.NewLevelDB(tmpDir, testDatabaseCacheSizeMiB)
			if err != nil {
				t.Fatalf("error in NewLevelDB: %s", err)
			}
			defer db.Close()

			c, err := f.NewConsensus(config, db, nil)
			if err != nil {
				t.Fatalf("error in NewConsensus: %+v", err)
			}
			if c.GetTopBlockIndex() != 0 || c.GetTopBlockHash() != config.GenesisHash {
				t.Fatalf("new consensus starts at %d %s, expected genesis %s",
					c.GetTopBlockIndex(), c.GetTopBlockHash(), config.GenesisHash)
			}
			err = c.Close()
			if err != nil {
				t.Fatalf("error in Close: %+v", err)
			}
			err = c.Close()
			if err != nil {
				t.Fatalf("error in a second Close: %+v", err)
			}
		})
	}
}

func TestNewConsensusUnknownSegmentStorage(t *testing.T) {
	config := DefaultConfig(&chaincfg.SimnetParams)
	config.SegmentStorage = "tape"
	_, _, err := NewFactory().NewTestConsensus(config, "TestNewConsensusUnknownSegmentStorage")
	if err == nil {
		t.Fatalf("expected an unknown segment storage to be rejected")
	}
}

func TestGenesisOnAllNets(t *testing.T) {
	testutils.ForAllNets(t, func(t *testing.T, params *chaincfg.Params) {
		config := DefaultConfig(params)
		config.SegmentStorage = SegmentStorageMemory
		tc, teardown, err := NewFactory().NewTestConsensus(config, "TestGenesisOnAllNets")
		if err != nil {
			t.Fatalf("Error setting up consensus: %+v", err)
		}
		defer teardown(false)

		genesis, err := tc.GetBlockByIndex(0)
		if err != nil {
			t.Fatalf("GetBlockByIndex: %+v", err)
		}
		if genesis.Info.BlockHash != params.GenesisHash || !genesis.IsMainChain {
			t.Fatalf("unexpected genesis %s on %s", genesis.Info.BlockHash, params.Name)
		}
		difficulty, err := tc.GetDifficultyForNextBlock()
		if err != nil {
			t.Fatalf("GetDifficultyForNextBlock: %+v", err)
		}
		if difficulty == 0 {
			t.Fatalf("zero difficulty after genesis on %s", params.Name)
		}
		storedCount, err := tc.MainChainStore().BlockCount()
		if err != nil {
			t.Fatalf("BlockCount: %+v", err)
		}
		if storedCount != 1 {
			t.Fatalf("expected the main chain store to hold genesis only, got %d blocks", storedCount)
		}
	})
}
