package ldb

import "github.com/syndtr/goleveldb/leveldb/opt"

// Options returns the leveldb options used to open a database with the
// given block cache size, in MiB.
func Options(cacheSizeMiB int) *opt.Options {
	return &opt.Options{
		Compression:            opt.NoCompression,
		BlockCacheCapacity:     cacheSizeMiB * opt.MiB,
		WriteBuffer:            (cacheSizeMiB * opt.MiB) / 2,
		DisableSeeksCompaction: true,
	}
}
