package blockinfocache

import (
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

// BlockInfoCache is a ring buffer of the infos of the topmost blocks of a
// segment. Difficulty and reward calculations read a window of recent
// infos on every block, so those reads never hit the database.
type BlockInfoCache struct {
	infos []*externalapi.CachedBlockInfo
	// next is the index of the block the next Push is expected to be.
	next  uint32
	count int
}

// New creates a new BlockInfoCache holding up to capacity infos
func New(capacity int) *BlockInfoCache {
	return &BlockInfoCache{
		infos: make([]*externalapi.CachedBlockInfo, capacity),
	}
}

// Push adds the info of block blockIndex. If blockIndex does not directly
// follow the last pushed block the cache is reset first.
func (c *BlockInfoCache) Push(blockIndex uint32, info *externalapi.CachedBlockInfo) {
	if len(c.infos) == 0 {
		return
	}
	if c.count > 0 && blockIndex != c.next {
		c.Clear()
	}
	c.infos[int(blockIndex)%len(c.infos)] = info
	c.next = blockIndex + 1
	if c.count < len(c.infos) {
		c.count++
	}
}

// Get returns the info of blockIndex, or (nil, false) if it is not cached
func (c *BlockInfoCache) Get(blockIndex uint32) (*externalapi.CachedBlockInfo, bool) {
	if c.count == 0 || blockIndex >= c.next || c.next-blockIndex > uint32(c.count) {
		return nil, false
	}
	return c.infos[int(blockIndex)%len(c.infos)], true
}

// TruncateFrom drops the infos of blockIndex and every block above it
func (c *BlockInfoCache) TruncateFrom(blockIndex uint32) {
	if c.count == 0 || blockIndex >= c.next {
		return
	}
	dropped := c.next - blockIndex
	if dropped >= uint32(c.count) {
		c.Clear()
		return
	}
	for i := blockIndex; i < c.next; i++ {
		c.infos[int(i)%len(c.infos)] = nil
	}
	c.count -= int(dropped)
	c.next = blockIndex
}

// Clear clears the cache
func (c *BlockInfoCache) Clear() {
	for i := range c.infos {
		c.infos[i] = nil
	}
	c.count = 0
	c.next = 0
}
