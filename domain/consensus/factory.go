package consensus

import (
	"os"
	"time"

	"github.com/cnchain/cnd/domain/consensus/datastructures/mainchainstore"
	"github.com/cnchain/cnd/domain/consensus/datastructures/memorysegment"
	"github.com/cnchain/cnd/domain/consensus/datastructures/persistedsegment"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/processes/blockvalidator"
	"github.com/cnchain/cnd/domain/consensus/processes/chainselector"
	"github.com/cnchain/cnd/domain/consensus/processes/coinbasemanager"
	"github.com/cnchain/cnd/domain/consensus/processes/difficultymanager"
	"github.com/cnchain/cnd/domain/consensus/processes/transactionvalidator"
	"github.com/cnchain/cnd/domain/consensus/segmenttree"
	"github.com/cnchain/cnd/domain/consensus/utils/checkpoints"
	"github.com/cnchain/cnd/domain/consensus/utils/devoracle"
	"github.com/cnchain/cnd/domain/miningmanager/mempool"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/cnchain/cnd/infrastructure/db/database/ldb"
	"github.com/cnchain/cnd/util/panics"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
)

const testDatabaseCacheSizeMiB = 8

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(config *Config, db database.Database, events chan<- externalapi.ConsensusEvent) (
		externalapi.Consensus, error)
	NewTestConsensus(config *Config, testName string) (
		tc TestConsensus, teardown func(keepDataDir bool), err error)

	SetTestClock(testClock clock.Clock)
	SetTestSignatureOracle(signatureOracle model.SignatureOracle)
	SetTestFatalHandler(fatalHandler panics.FatalHandler)
}

type factory struct {
	clock           clock.Clock
	signatureOracle model.SignatureOracle
	fatalHandler    panics.FatalHandler
}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{
		clock:           clock.NewDefaultClock(),
		signatureOracle: devoracle.New(),
		fatalHandler:    panics.ExitHandler(log),
	}
}

// NewConsensus instantiates a new Consensus. The returned consensus is
// loaded and its pool cleaner is running. Events that do not fit in events
// are dropped, so its consumer should keep a buffer.
func (f *factory) NewConsensus(config *Config, db database.Database, events chan<- externalapi.ConsensusEvent) (
	externalapi.Consensus, error) {

	c, err := f.newConsensus(config, db, events)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (f *factory) newConsensus(config *Config, db database.Database, events chan<- externalapi.ConsensusEvent) (
	*consensus, error) {

	params := &config.Params

	// Data Structures
	var segmentStorageFactory model.SegmentStorageFactory
	switch config.SegmentStorage {
	case SegmentStorageMemory:
		segmentStorageFactory = memorysegment.NewFactory()
	case SegmentStorageLevelDB, "":
		cacheSize := config.SegmentCacheSize
		if cacheSize == 0 {
			cacheSize = defaultSegmentCacheSize
		}
		var err error
		segmentStorageFactory, err = persistedsegment.NewFactory(db, cacheSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown segment storage %q", config.SegmentStorage)
	}
	mainChainStore, err := mainchainstore.New(db)
	if err != nil {
		return nil, err
	}
	tree := segmenttree.New(params, segmentStorageFactory)

	checkpointSet, err := checkpoints.New(params.Checkpoints, config.EnableCheckpoints)
	if err != nil {
		return nil, err
	}

	poolConfig := mempool.DefaultConfig(params)
	if config.PoolTransactionLifetime != 0 {
		poolConfig.TransactionLifetime = config.PoolTransactionLifetime
	}
	if config.PoolCleanInterval != 0 {
		poolConfig.CleanInterval = config.PoolCleanInterval
	}
	pool := mempool.New(poolConfig, f.clock, events)

	// Processes
	difficultyManager := difficultymanager.New(params)
	coinbaseManager := coinbasemanager.New(params)
	blockValidator := blockvalidator.New(params,
		f.clock,
		difficultyManager,
		coinbaseManager,
		f.signatureOracle)
	transactionValidator := transactionvalidator.New(params, f.signatureOracle)

	chainSelector := chainselector.New(params,
		f.clock,
		f.fatalHandler,
		events,

		tree,
		mainChainStore,
		pool,
		checkpointSet,

		blockValidator,
		transactionValidator,
		difficultyManager,
		coinbaseManager)

	err = chainSelector.Load()
	if err != nil {
		return nil, err
	}
	pool.Start(chainSelector.RevalidatePoolTransaction)

	log.Infof("Consensus of %s started with %s segments", params.Name, config.SegmentStorage)
	return &consensus{
		ChainSelector:  chainSelector,
		tree:           tree,
		mainChainStore: mainChainStore,
		pool:           pool,
	}, nil
}

func (f *factory) NewTestConsensus(config *Config, testName string) (
	tc TestConsensus, teardown func(keepDataDir bool), err error) {

	dataDir, err := os.MkdirTemp("", testName)
	if err != nil {
		return nil, nil, err
	}
	db, err := ldb.NewLevelDB(dataDir, testDatabaseCacheSizeMiB)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan externalapi.ConsensusEvent, testEventsBufferSize)
	c, err := f.newConsensus(config, db, events)
	if err != nil {
		db.Close()
		os.RemoveAll(dataDir)
		return nil, nil, err
	}

	tstConsensus := &testConsensus{
		consensus: c,
		db:        db,
		dataDir:   dataDir,
		events:    events,
	}
	teardown = func(keepDataDir bool) {
		tstConsensus.Close()
		db.Close()
		if !keepDataDir {
			err := os.RemoveAll(dataDir)
			if err != nil {
				log.Errorf("Error removing data directory for test consensus: %s", err)
			}
		}
	}
	return tstConsensus, teardown, nil
}

func (f *factory) SetTestClock(testClock clock.Clock) {
	f.clock = testClock
}

func (f *factory) SetTestSignatureOracle(signatureOracle model.SignatureOracle) {
	f.signatureOracle = signatureOracle
}

func (f *factory) SetTestFatalHandler(fatalHandler panics.FatalHandler) {
	f.fatalHandler = fatalHandler
}

// NewTestClock returns a clock set well after the genesis of params, so
// test blocks one TargetTimePerBlock apart are never in the future.
func NewTestClock(config *Config) clock.Clock {
	return clock.NewTestClock(time.Unix(int64(config.GenesisTimestamp), 0).Add(1000 * time.Hour))
}
