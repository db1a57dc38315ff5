package persistedsegment

import (
	"strconv"
	"sync/atomic"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// SchemeVersion is the version of the layout this package writes. It is
// bumped whenever the layout changes.
const SchemeVersion = 1

var (
	schemeVersionKey         = database.MakeBucket([]byte("metadata")).Key([]byte("db_scheme_version"))
	rootSegmentBucket        = database.MakeBucket([]byte("root-segment"))
	alternativeSegmentBucket = database.MakeBucket([]byte("alternative-segments"))
)

type factory struct {
	db        database.Database
	cacheSize int

	nextSegmentID uint64
}

// NewFactory returns a SegmentStorageFactory of segments stored in db. Only
// the root segment survives a restart: alternative segments left over by a
// previous run are deleted. cacheSize is the number of recent block infos
// every segment keeps in memory.
//
// A database written with an older layout is wiped so that the root can be
// rebuilt from the main chain store. A newer layout is refused.
func NewFactory(db database.Database, cacheSize int) (model.SegmentStorageFactory, error) {
	err := checkSchemeVersion(db)
	if err != nil {
		return nil, err
	}
	err = deleteBucket(db, alternativeSegmentBucket)
	if err != nil {
		return nil, err
	}
	return &factory{db: db, cacheSize: cacheSize}, nil
}

func checkSchemeVersion(db database.Database) error {
	versionBytes, err := db.Get(schemeVersionKey)
	if err != nil && !database.IsNotFoundError(err) {
		return err
	}
	if err == nil {
		version, err := bytesUint32(versionBytes)
		if err != nil {
			return err
		}
		if version > SchemeVersion {
			return errors.Wrapf(ruleerrors.ErrNewerSchemeVersion, "database scheme version %d, supported %d",
				version, SchemeVersion)
		}
		if version == SchemeVersion {
			return nil
		}
		log.Warnf("Database scheme version %d is older than %d. The chain will be rebuilt", version, SchemeVersion)
		err = deleteBucket(db, rootSegmentBucket)
		if err != nil {
			return err
		}
	}
	return db.Put(schemeVersionKey, uint32Bytes(SchemeVersion))
}

func (f *factory) NewSegmentStorage(startIndex uint32) (model.SegmentStorage, error) {
	if startIndex == 0 {
		_, found, err := loadPersistedSegment(f.db, rootSegmentBucket, f.cacheSize)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, errors.New("a root segment is already stored")
		}
		return newPersistedSegment(f.db, rootSegmentBucket, startIndex, f.cacheSize)
	}

	segmentID := atomic.AddUint64(&f.nextSegmentID, 1)
	bucket := alternativeSegmentBucket.Bucket([]byte(strconv.FormatUint(segmentID, 10)))
	return newPersistedSegment(f.db, bucket, startIndex, f.cacheSize)
}

func (f *factory) LoadRoot() (model.SegmentStorage, bool, error) {
	root, found, err := loadPersistedSegment(f.db, rootSegmentBucket, f.cacheSize)
	if err != nil || !found {
		return nil, false, err
	}
	return root, true, nil
}
