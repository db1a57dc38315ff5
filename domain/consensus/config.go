package consensus

import (
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
)

// SegmentStorage names a segment storage strategy.
type SegmentStorage string

// The segment storage strategies.
const (
	SegmentStorageMemory  SegmentStorage = "memory"
	SegmentStorageLevelDB SegmentStorage = "leveldb"
)

const defaultSegmentCacheSize = 1000

// Config is a descriptor for a consensus
type Config struct {
	chaincfg.Params
	SegmentStorage    SegmentStorage
	SegmentCacheSize  int
	EnableCheckpoints bool

	// PoolTransactionLifetime overrides the network's pool transaction
	// lifetime when it is not zero.
	PoolTransactionLifetime time.Duration
	// PoolCleanInterval overrides the default pool clean interval when it
	// is not zero.
	PoolCleanInterval time.Duration
}

// DefaultConfig returns the default consensus configuration of params.
func DefaultConfig(params *chaincfg.Params) *Config {
	return &Config{
		Params:            *params,
		SegmentStorage:    SegmentStorageLevelDB,
		SegmentCacheSize:  defaultSegmentCacheSize,
		EnableCheckpoints: true,
	}
}
