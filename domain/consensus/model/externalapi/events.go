package externalapi

// ConsensusEvent is an interface type that is implemented by all events raised by consensus
type ConsensusEvent interface {
	isConsensusEvent()
}

// BlockAdded is an event raised when a block extends the main chain
type BlockAdded struct {
	BlockIndex uint32
	BlockHash  DomainHash
}

func (*BlockAdded) isConsensusEvent() {}

// AlternativeBlockAdded is an event raised when a block is added to a chain
// that is not the main chain
type AlternativeBlockAdded struct {
	BlockIndex uint32
	BlockHash  DomainHash
}

func (*AlternativeBlockAdded) isConsensusEvent() {}

// ChainSwitched is an event raised when an alternative chain becomes the
// main chain. BlockHashes starts with the hash of the common root at
// CommonRootIndex, followed by the new main chain blocks above it.
type ChainSwitched struct {
	CommonRootIndex uint32
	BlockHashes     []DomainHash
}

func (*ChainSwitched) isConsensusEvent() {}

// TransactionAdded is an event raised when a transaction enters the pool
type TransactionAdded struct {
	TransactionHash DomainHash
}

func (*TransactionAdded) isConsensusEvent() {}

// TransactionDeleted is an event raised when transactions leave the pool
type TransactionDeleted struct {
	TransactionHashes []DomainHash
	Reason            DeletionReason
}

func (*TransactionDeleted) isConsensusEvent() {}

// DeletionReason tells why a transaction left the pool.
type DeletionReason uint8

// DeletionReason values.
const (
	DeletionReasonNotActual DeletionReason = iota
	DeletionReasonOutdated
	DeletionReasonAddedToMainChain
	DeletionReasonInBlock
	DeletionReasonReorganization
	DeletionReasonPoolCleanProcedure
)

var deletionReasonStrings = [...]string{
	"NotActual",
	"Outdated",
	"AddedToMainChain",
	"InBlock",
	"Reorganization",
	"PoolCleanProcedure",
}

func (reason DeletionReason) String() string {
	if int(reason) < len(deletionReasonStrings) {
		return deletionReasonStrings[reason]
	}
	return "Unknown"
}
