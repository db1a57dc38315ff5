package mainchainstore

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

var bucket = database.MakeBucket([]byte("main-chain"))
var countKey = database.MakeBucket(nil).Key([]byte("main-chain-count"))

// mainChainStore represents a store of the raw blocks of the main chain
type mainChainStore struct {
	db          database.Database
	countCached uint32
}

// New instantiates a new MainChainStore
func New(db database.Database) (model.MainChainStore, error) {
	mcs := &mainChainStore{db: db}
	err := mcs.initializeCount()
	if err != nil {
		return nil, err
	}
	return mcs, nil
}

func (mcs *mainChainStore) initializeCount() error {
	count := uint32(0)
	hasCountBytes, err := mcs.db.Has(countKey)
	if err != nil {
		return err
	}
	if hasCountBytes {
		countBytes, err := mcs.db.Get(countKey)
		if err != nil {
			return err
		}
		count, err = deserializeCount(countBytes)
		if err != nil {
			return err
		}
	}
	mcs.countCached = count
	return nil
}

// PushBlock appends rawBlock as the block with index BlockCount
func (mcs *mainChainStore) PushBlock(rawBlock *externalapi.RawBlock) error {
	dbTx, err := mcs.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = dbTx.Put(indexAsKey(mcs.countCached), serialization.RawBlockToBytes(rawBlock))
	if err != nil {
		return err
	}
	err = dbTx.Put(countKey, serializeCount(mcs.countCached+1))
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	mcs.countCached++
	return nil
}

// PopBlock removes the top block
func (mcs *mainChainStore) PopBlock() error {
	if mcs.countCached == 0 {
		return errors.New("cannot pop a block from an empty main chain store")
	}

	dbTx, err := mcs.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	err = dbTx.Delete(indexAsKey(mcs.countCached - 1))
	if err != nil {
		return err
	}
	err = dbTx.Put(countKey, serializeCount(mcs.countCached-1))
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	mcs.countCached--
	return nil
}

// GetBlockByIndex gets the raw block with the given index
func (mcs *mainChainStore) GetBlockByIndex(blockIndex uint32) (*externalapi.RawBlock, error) {
	if blockIndex >= mcs.countCached {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d is above the main chain top %d",
			blockIndex, mcs.countCached)
	}
	rawBlockBytes, err := mcs.db.Get(indexAsKey(blockIndex))
	if err != nil {
		return nil, err
	}
	return serialization.RawBlockFromBytes(rawBlockBytes)
}

func (mcs *mainChainStore) BlockCount() (uint32, error) {
	return mcs.countCached, nil
}

// Clear removes every block from the store
func (mcs *mainChainStore) Clear() error {
	cursor, err := mcs.db.Cursor(bucket)
	if err != nil {
		return err
	}
	defer cursor.Close()

	dbTx, err := mcs.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		err = dbTx.Delete(key)
		if err != nil {
			return err
		}
	}
	err = dbTx.Delete(countKey)
	if err != nil {
		return err
	}
	err = dbTx.Commit()
	if err != nil {
		return err
	}
	mcs.countCached = 0
	return nil
}

func indexAsKey(blockIndex uint32) *database.Key {
	var keyBytes [4]byte
	binary.BigEndian.PutUint32(keyBytes[:], blockIndex)
	return bucket.Key(keyBytes[:])
}

func serializeCount(count uint32) []byte {
	var countBytes [4]byte
	binary.BigEndian.PutUint32(countBytes[:], count)
	return countBytes[:]
}

func deserializeCount(countBytes []byte) (uint32, error) {
	if len(countBytes) != 4 {
		return 0, errors.Errorf("main chain count is %d bytes long", len(countBytes))
	}
	return binary.BigEndian.Uint32(countBytes), nil
}
