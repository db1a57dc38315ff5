package externalapi

import "math"

// InvalidBlockIndex marks the absence of a block index.
const InvalidBlockIndex = math.MaxUint32

// CachedBlockInfo is kept for every block of a segment. The cumulative
// fields are prefix sums along the path from genesis.
type CachedBlockInfo struct {
	BlockHash                    DomainHash
	Version                      uint8
	UpgradeVote                  uint8
	Timestamp                    uint64
	BlobSize                     uint64
	CumulativeDifficulty         uint64
	AlreadyGeneratedCoins        uint64
	AlreadyGeneratedTransactions uint64
}

// CachedTransactionInfo locates a transaction and keeps what spending its
// outputs requires. GlobalIndexes[i] is the global index of Outputs[i] within
// the outputs of its amount.
type CachedTransactionInfo struct {
	BlockIndex                   uint32
	TransactionIndex             uint16
	TransactionHash              DomainHash
	UnlockTime                   uint64
	Outputs                      []*DomainTransactionOutput
	GlobalIndexes                []uint32
	IsDeterministicallyGenerated bool
}

// PackedOutIndex locates an output by block, transaction and output index.
type PackedOutIndex struct {
	BlockIndex       uint32
	TransactionIndex uint16
	OutputIndex      uint16
}

// Less orders packed indexes by block, then transaction, then output.
func (index PackedOutIndex) Less(other PackedOutIndex) bool {
	if index.BlockIndex != other.BlockIndex {
		return index.BlockIndex < other.BlockIndex
	}
	if index.TransactionIndex != other.TransactionIndex {
		return index.TransactionIndex < other.TransactionIndex
	}
	return index.OutputIndex < other.OutputIndex
}

// SpentKeyImage records that KeyImage was spent in block BlockIndex.
type SpentKeyImage struct {
	BlockIndex uint32
	KeyImage   KeyImage
}

// PushedBlockInfo is everything needed to push a block again into another
// segment, as done when segments are merged.
type PushedBlockInfo struct {
	RawBlock       *RawBlock
	SpentKeyImages []KeyImage
	BlobSize       uint64
	GeneratedCoins uint64
	Difficulty     uint64
}

// ExtractOutputKeysResult is the outcome of resolving global output indexes.
type ExtractOutputKeysResult uint8

// ExtractOutputKeysResult values.
const (
	ExtractOutputKeysSuccess ExtractOutputKeysResult = iota
	ExtractOutputKeysInvalidGlobalIndex
	ExtractOutputKeysOutputLocked
	ExtractOutputKeysInvalid
)

var extractOutputKeysResultStrings = map[ExtractOutputKeysResult]string{
	ExtractOutputKeysSuccess:            "Success",
	ExtractOutputKeysInvalidGlobalIndex: "InvalidGlobalIndex",
	ExtractOutputKeysOutputLocked:       "OutputLocked",
	ExtractOutputKeysInvalid:            "Invalid",
}

func (result ExtractOutputKeysResult) String() string {
	if s, ok := extractOutputKeysResultStrings[result]; ok {
		return s
	}
	return "Unknown"
}
