package mempool

import "github.com/pkg/errors"

// ErrRecentlyDeleted is returned for a transaction the cleaner deleted
// less than a transaction lifetime ago.
var ErrRecentlyDeleted = errors.New("transaction was recently deleted from the pool")
