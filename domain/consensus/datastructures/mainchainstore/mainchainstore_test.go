package mainchainstore

import (
	"os"
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/cnchain/cnd/infrastructure/db/database/ldb"
	"github.com/stretchr/testify/require"
)

func prepareDatabaseForTest(t *testing.T, testName string) (db database.Database, teardownFunc func()) {
	path, err := os.MkdirTemp("", testName)
	require.NoError(t, err)
	db, err = ldb.NewLevelDB(path, 8)
	require.NoError(t, err)
	return db, func() {
		require.NoError(t, db.Close())
		os.RemoveAll(path)
	}
}

func rawBlock(blockIndex uint32) *externalapi.RawBlock {
	return &externalapi.RawBlock{
		Block:        []byte{byte(blockIndex), 0xff},
		Transactions: [][]byte{{byte(blockIndex)}},
	}
}

func TestMainChainStore(t *testing.T) {
	db, teardownFunc := prepareDatabaseForTest(t, "TestMainChainStore")
	defer teardownFunc()

	store, err := New(db)
	require.NoError(t, err)

	for blockIndex := uint32(0); blockIndex < 5; blockIndex++ {
		require.NoError(t, store.PushBlock(rawBlock(blockIndex)))
	}
	count, err := store.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(5), count)

	got, err := store.GetBlockByIndex(3)
	require.NoError(t, err)
	require.Equal(t, rawBlock(3), got)

	_, err = store.GetBlockByIndex(5)
	require.True(t, database.IsNotFoundError(err))

	require.NoError(t, store.PopBlock())
	_, err = store.GetBlockByIndex(4)
	require.Error(t, err)

	// The count survives a reopen.
	reopened, err := New(db)
	require.NoError(t, err)
	count, err = reopened.BlockCount()
	require.NoError(t, err)
	require.Equal(t, uint32(4), count)

	require.NoError(t, reopened.Clear())
	count, err = reopened.BlockCount()
	require.NoError(t, err)
	require.Zero(t, count)
	require.Error(t, reopened.PopBlock())

	require.NoError(t, reopened.PushBlock(rawBlock(7)))
	got, err = reopened.GetBlockByIndex(0)
	require.NoError(t, err)
	require.Equal(t, rawBlock(7), got)
}
