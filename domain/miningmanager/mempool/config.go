package mempool

import (
	"time"

	"github.com/cnchain/cnd/domain/chaincfg"
)

const defaultCleanInterval = 10 * time.Minute

// Config represents a mempool configuration
type Config struct {
	// TransactionLifetime is how long a transaction may wait in the pool
	// before the cleaner deletes it. A deleted transaction is refused for
	// the same duration.
	TransactionLifetime time.Duration
	// CleanInterval is the period of the cleaner.
	CleanInterval time.Duration
}

// DefaultConfig returns the default mempool configuration of the network
func DefaultConfig(params *chaincfg.Params) *Config {
	return &Config{
		TransactionLifetime: params.MempoolTransactionLifetime,
		CleanInterval:       defaultCleanInterval,
	}
}
