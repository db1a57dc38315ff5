package persistedsegment

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/blockinfocache"
	"github.com/cnchain/cnd/domain/consensus/utils/multiset"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// persistedSegment keeps the data of a segment in leveldb. Only the segment
// metadata and the infos of the topmost blocks are held in memory.
type persistedSegment struct {
	db   database.Database
	keys *segmentKeys

	startIndex         uint32
	blockCount         uint32
	transactionCount   uint64
	keyImageCommitment model.Multiset

	recentBlockInfos *blockinfocache.BlockInfoCache
}

func newPersistedSegment(db database.Database, bucket *database.Bucket, startIndex uint32,
	cacheSize int) (*persistedSegment, error) {

	ps := &persistedSegment{
		db:                 db,
		keys:               newSegmentKeys(bucket),
		startIndex:         startIndex,
		keyImageCommitment: multiset.New(),
		recentBlockInfos:   blockinfocache.New(cacheSize),
	}

	dbTx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.RollbackUnlessClosed()

	err = ps.writeMetadata(dbTx)
	if err != nil {
		return nil, err
	}
	err = dbTx.Commit()
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// loadPersistedSegment reads the segment stored in bucket. found is false
// if there is none.
func loadPersistedSegment(db database.Database, bucket *database.Bucket,
	cacheSize int) (ps *persistedSegment, found bool, err error) {

	keys := newSegmentKeys(bucket)
	hasStartIndex, err := db.Has(keys.startIndex)
	if err != nil {
		return nil, false, err
	}
	if !hasStartIndex {
		return nil, false, nil
	}

	ps = &persistedSegment{
		db:               db,
		keys:             keys,
		recentBlockInfos: blockinfocache.New(cacheSize),
	}

	startIndexBytes, err := db.Get(keys.startIndex)
	if err != nil {
		return nil, false, err
	}
	ps.startIndex, err = bytesUint32(startIndexBytes)
	if err != nil {
		return nil, false, err
	}
	blockCountBytes, err := db.Get(keys.blockCount)
	if err != nil {
		return nil, false, err
	}
	ps.blockCount, err = bytesUint32(blockCountBytes)
	if err != nil {
		return nil, false, err
	}
	transactionCountBytes, err := db.Get(keys.transactionCount)
	if err != nil {
		return nil, false, err
	}
	ps.transactionCount, err = bytesUint64(transactionCountBytes)
	if err != nil {
		return nil, false, err
	}
	commitmentBytes, err := db.Get(keys.keyImageCommitment)
	if err != nil {
		return nil, false, err
	}
	ps.keyImageCommitment, err = multiset.FromBytes(commitmentBytes)
	if err != nil {
		return nil, false, err
	}

	log.Debugf("Loaded persisted segment [%d, %d) with %d transactions",
		ps.startIndex, ps.startIndex+ps.blockCount, ps.transactionCount)
	return ps, true, nil
}

func (ps *persistedSegment) writeMetadata(dbTx database.DataAccessor) error {
	err := dbTx.Put(ps.keys.startIndex, uint32Bytes(ps.startIndex))
	if err != nil {
		return err
	}
	err = dbTx.Put(ps.keys.blockCount, uint32Bytes(ps.blockCount))
	if err != nil {
		return err
	}
	err = dbTx.Put(ps.keys.transactionCount, uint64Bytes(ps.transactionCount))
	if err != nil {
		return err
	}
	return dbTx.Put(ps.keys.keyImageCommitment, ps.keyImageCommitment.Serialize())
}

func (ps *persistedSegment) StartIndex() uint32 {
	return ps.startIndex
}

func (ps *persistedSegment) BlockCount() uint32 {
	return ps.blockCount
}

func (ps *persistedSegment) Delete() error {
	err := deleteBucket(ps.db, ps.keys.bucket)
	if err != nil {
		return err
	}
	ps.blockCount = 0
	ps.transactionCount = 0
	ps.keyImageCommitment = multiset.New()
	ps.recentBlockInfos.Clear()
	return nil
}

// deleteBucket deletes every key in bucket.
func deleteBucket(db database.Database, bucket *database.Bucket) error {
	cursor, err := db.Cursor(bucket)
	if err != nil {
		return err
	}
	defer cursor.Close()

	dbTx, err := db.Begin()
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
	return dbTx.Commit()
}

func (ps *persistedSegment) containsBlock(blockIndex uint32) bool {
	return blockIndex >= ps.startIndex && blockIndex-ps.startIndex < ps.blockCount
}

func (ps *persistedSegment) notInSegment(blockIndex uint32) error {
	return errors.Wrapf(database.ErrNotFound, "block %d is not in segment [%d, %d)",
		blockIndex, ps.startIndex, ps.startIndex+ps.blockCount)
}

func (ps *persistedSegment) BlockInfo(blockIndex uint32) (*externalapi.CachedBlockInfo, error) {
	if !ps.containsBlock(blockIndex) {
		return nil, ps.notInSegment(blockIndex)
	}
	if info, ok := ps.recentBlockInfos.Get(blockIndex); ok {
		return info, nil
	}
	infoBytes, err := ps.db.Get(ps.keys.blockInfoKey(blockIndex))
	if err != nil {
		return nil, err
	}
	return serialization.CachedBlockInfoFromBytes(infoBytes)
}

func (ps *persistedSegment) BlockIndexByHash(blockHash externalapi.DomainHash) (uint32, bool, error) {
	blockIndexBytes, err := ps.db.Get(ps.keys.blockHashKey(blockHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	blockIndex, err := bytesUint32(blockIndexBytes)
	if err != nil {
		return 0, false, err
	}
	return blockIndex, true, nil
}

func (ps *persistedSegment) RawBlock(blockIndex uint32) (*externalapi.RawBlock, error) {
	if !ps.containsBlock(blockIndex) {
		return nil, ps.notInSegment(blockIndex)
	}
	rawBlockBytes, err := ps.db.Get(ps.keys.rawBlockKey(blockIndex))
	if err != nil {
		return nil, err
	}
	return serialization.RawBlockFromBytes(rawBlockBytes)
}

func (ps *persistedSegment) KeyImageSpentAt(keyImage externalapi.KeyImage) (uint32, bool, error) {
	blockIndexBytes, err := ps.db.Get(ps.keys.spentKeyImageKey(keyImage))
	if err != nil {
		if database.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	blockIndex, err := bytesUint32(blockIndexBytes)
	if err != nil {
		return 0, false, err
	}
	return blockIndex, true, nil
}

func (ps *persistedSegment) SpentKeyImagesAt(blockIndex uint32) ([]externalapi.KeyImage, error) {
	if !ps.containsBlock(blockIndex) {
		return nil, ps.notInSegment(blockIndex)
	}
	keyImagesBytes, err := ps.db.Get(ps.keys.blockKeyImagesKey(blockIndex))
	if err != nil {
		return nil, err
	}
	return serialization.KeyImagesFromBytes(keyImagesBytes)
}

func (ps *persistedSegment) TransactionInfo(transactionHash externalapi.DomainHash) (*externalapi.CachedTransactionInfo, bool, error) {
	infoBytes, err := ps.db.Get(ps.keys.transactionKey(transactionHash))
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	info, err := serialization.CachedTransactionInfoFromBytes(infoBytes)
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

func (ps *persistedSegment) blockTransactionHashes(blockIndex uint32) ([]externalapi.DomainHash, error) {
	hashesBytes, err := ps.db.Get(ps.keys.blockTransactionsKey(blockIndex))
	if err != nil {
		return nil, err
	}
	return serialization.HashesFromBytes(hashesBytes)
}

func (ps *persistedSegment) TransactionInfoAt(blockIndex uint32, transactionIndex uint16) (*externalapi.CachedTransactionInfo, error) {
	if !ps.containsBlock(blockIndex) {
		return nil, ps.notInSegment(blockIndex)
	}
	transactionHashes, err := ps.blockTransactionHashes(blockIndex)
	if err != nil {
		return nil, err
	}
	if int(transactionIndex) >= len(transactionHashes) {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d has no transaction %d", blockIndex, transactionIndex)
	}
	info, found, err := ps.TransactionInfo(transactionHashes[transactionIndex])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("transaction %s of block %d is missing", transactionHashes[transactionIndex], blockIndex)
	}
	return info, nil
}

func (ps *persistedSegment) TransactionCount() (uint64, error) {
	return ps.transactionCount, nil
}

func (ps *persistedSegment) KeyImageCommitment() (model.Multiset, error) {
	return ps.keyImageCommitment.Clone(), nil
}
