package persistedsegment

import (
	"os"
	"testing"

	"github.com/cnchain/cnd/domain/consensus/datastructures/segmentstoragesuite"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/cnchain/cnd/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

const testCacheSize = 4

func prepareDatabaseForTest(t *testing.T, testName string) (db database.Database, path string, teardownFunc func()) {
	path, err := os.MkdirTemp("", testName)
	if err != nil {
		t.Fatalf("%s: MkdirTemp unexpectedly failed: %s", testName, err)
	}
	db, err = ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = db.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
		os.RemoveAll(path)
	}
	return db, path, teardownFunc
}

func TestPersistedSegment(t *testing.T) {
	segmentstoragesuite.Run(t, func(t *testing.T, testName string) (model.SegmentStorageFactory, func()) {
		db, _, teardownFunc := prepareDatabaseForTest(t, testName)
		factory, err := NewFactory(db, testCacheSize)
		if err != nil {
			teardownFunc()
			t.Fatalf("NewFactory: %+v", err)
		}
		return factory, teardownFunc
	})
}

func pushTestBlocks(t *testing.T, storage model.SegmentStorage, count uint32) {
	var previous *externalapi.CachedBlockInfo
	for i := uint32(0); i < count; i++ {
		blockIndex := storage.StartIndex() + storage.BlockCount()
		push := &model.BlockPush{
			BlockHash:  externalapi.DomainHash{byte(blockIndex), 1},
			Timestamp:  uint64(blockIndex) * 100,
			Difficulty: 1,
			RawBlock:   &externalapi.RawBlock{Block: []byte{byte(blockIndex)}},
		}
		err := storage.PushBlock(push, previous, func(uint64) (uint32, error) { return 0, nil })
		if err != nil {
			t.Fatalf("PushBlock: %+v", err)
		}
		previous = push.CachedBlockInfo(previous)
	}
}

func TestLoadRoot(t *testing.T) {
	db, _, teardownFunc := prepareDatabaseForTest(t, "TestLoadRoot")
	defer teardownFunc()

	factory, err := NewFactory(db, testCacheSize)
	if err != nil {
		t.Fatalf("NewFactory: %+v", err)
	}
	_, found, err := factory.LoadRoot()
	if err != nil || found {
		t.Fatalf("LoadRoot of an empty database: %t, %v", found, err)
	}

	root, err := factory.NewSegmentStorage(0)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushTestBlocks(t, root, 10)
	alternative, err := factory.NewSegmentStorage(3)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushTestBlocks(t, alternative, 2)

	_, err = factory.NewSegmentStorage(0)
	if err == nil {
		t.Fatalf("creating a second root should fail")
	}

	// A new factory over the same database stands for a restart.
	factory, err = NewFactory(db, testCacheSize)
	if err != nil {
		t.Fatalf("NewFactory: %+v", err)
	}
	loaded, found, err := factory.LoadRoot()
	if err != nil || !found {
		t.Fatalf("LoadRoot: %t, %v", found, err)
	}
	if loaded.StartIndex() != 0 || loaded.BlockCount() != 10 {
		t.Fatalf("loaded root is [%d, %d), expected [0, 10)", loaded.StartIndex(), loaded.BlockCount())
	}
	info, err := loaded.BlockInfo(9)
	if err != nil {
		t.Fatalf("BlockInfo: %+v", err)
	}
	if info.CumulativeDifficulty != 10 || info.BlockHash != (externalapi.DomainHash{9, 1}) {
		t.Fatalf("unexpected info of the top block of the loaded root: %+v", info)
	}

	cursor, err := db.Cursor(alternativeSegmentBucket)
	if err != nil {
		t.Fatalf("Cursor: %+v", err)
	}
	defer cursor.Close()
	if cursor.First() {
		t.Fatalf("alternative segments should not survive a restart")
	}
}

func TestSchemeVersion(t *testing.T) {
	db, _, teardownFunc := prepareDatabaseForTest(t, "TestSchemeVersion")
	defer teardownFunc()

	factory, err := NewFactory(db, testCacheSize)
	if err != nil {
		t.Fatalf("NewFactory: %+v", err)
	}
	root, err := factory.NewSegmentStorage(0)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushTestBlocks(t, root, 3)

	err = db.Put(schemeVersionKey, uint32Bytes(SchemeVersion+1))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	_, err = NewFactory(db, testCacheSize)
	if !errors.Is(err, ruleerrors.ErrNewerSchemeVersion) {
		t.Fatalf("expected ErrNewerSchemeVersion, got %v", err)
	}

	err = db.Put(schemeVersionKey, uint32Bytes(SchemeVersion-1))
	if err != nil {
		t.Fatalf("Put: %+v", err)
	}
	factory, err = NewFactory(db, testCacheSize)
	if err != nil {
		t.Fatalf("NewFactory over an older scheme: %+v", err)
	}
	_, found, err := factory.LoadRoot()
	if err != nil || found {
		t.Fatalf("the root of an older scheme should have been wiped: %t, %v", found, err)
	}
	versionBytes, err := db.Get(schemeVersionKey)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	version, err := bytesUint32(versionBytes)
	if err != nil || version != SchemeVersion {
		t.Fatalf("scheme version is %d, expected %d (%v)", version, SchemeVersion, err)
	}
}

func TestRecentBlockInfoCache(t *testing.T) {
	db, _, teardownFunc := prepareDatabaseForTest(t, "TestRecentBlockInfoCache")
	defer teardownFunc()

	factory, err := NewFactory(db, testCacheSize)
	if err != nil {
		t.Fatalf("NewFactory: %+v", err)
	}
	storage, err := factory.NewSegmentStorage(0)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushTestBlocks(t, storage, 2*testCacheSize)

	// Blocks below the cached window are read from the database.
	for blockIndex := uint32(0); blockIndex < 2*testCacheSize; blockIndex++ {
		info, err := storage.BlockInfo(blockIndex)
		if err != nil {
			t.Fatalf("BlockInfo %d: %+v", blockIndex, err)
		}
		if info.Timestamp != uint64(blockIndex)*100 {
			t.Fatalf("block %d has timestamp %d", blockIndex, info.Timestamp)
		}
	}
}
