package segmenttree

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

type view struct {
	tree *Tree
	id   SegmentID
}

// View returns a read only view of the branch ending at id. The view must
// not outlive structural changes to the tree.
func (t *Tree) View(id SegmentID) model.ChainView {
	return &view{tree: t, id: id}
}

func (v *view) BlockInfo(blockIndex uint32) (*externalapi.CachedBlockInfo, error) {
	return v.tree.BlockInfo(v.id, blockIndex)
}

func (v *view) CheckIfSpent(keyImage externalapi.KeyImage, blockIndex uint32) (bool, error) {
	return v.tree.CheckIfSpent(v.id, keyImage, blockIndex)
}

func (v *view) CheckIfAnySpent(keyImages []externalapi.KeyImage, blockIndex uint32) (bool, error) {
	return v.tree.CheckIfAnySpent(v.id, keyImages, blockIndex)
}

func (v *view) ExtractKeyOutputKeys(amount uint64, blockIndex uint32, timestamp uint64,
	globalIndexes []uint32) ([]externalapi.PublicKey, externalapi.ExtractOutputKeysResult, error) {

	return v.tree.ExtractKeyOutputKeys(v.id, amount, blockIndex, timestamp, globalIndexes)
}

func (v *view) AvailableMixinsCount(amount uint64, blockIndex uint32, threshold uint64) (uint64, error) {
	return v.tree.AvailableMixinsCount(v.id, amount, blockIndex, threshold)
}

func (v *view) LastTimestamps(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	return v.tree.LastTimestamps(v.id, count, blockIndex, useGenesis)
}

func (v *view) LastBlockSizes(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	return v.tree.LastBlockSizes(v.id, count, blockIndex, useGenesis)
}

func (v *view) LastCumulativeDifficulties(count uint32, blockIndex uint32, useGenesis bool) ([]uint64, error) {
	return v.tree.LastCumulativeDifficulties(v.id, count, blockIndex, useGenesis)
}
