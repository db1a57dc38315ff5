package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// MainChainStore is a flat append/trim log of the raw blocks of the main
// chain, kept next to the segment tree for sequential access and for
// rebuilding the tree on startup.
type MainChainStore interface {
	PushBlock(rawBlock *externalapi.RawBlock) error
	PopBlock() error
	GetBlockByIndex(blockIndex uint32) (*externalapi.RawBlock, error)
	BlockCount() (uint32, error)
	Clear() error
}
