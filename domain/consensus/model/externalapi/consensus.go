package externalapi

// Consensus maintains the current core state of the node
type Consensus interface {
	AddBlock(rawBlock *RawBlock) (AddBlockOutcome, error)
	AddTransactionToPool(transaction *DomainTransaction) error

	GetTopBlockIndex() uint32
	GetTopBlockHash() DomainHash
	GetBlockByIndex(blockIndex uint32) (*BlockInfo, error)
	GetBlockByHash(blockHash DomainHash) (*BlockInfo, error)
	GetBlockHashes(startIndex uint32, maxCount uint32) ([]DomainHash, error)
	GetTransaction(transactionHash DomainHash) (*TransactionInfo, error)
	GetTransactionGlobalIndexes(transactionHash DomainHash) ([]uint32, error)
	FindBlockchainSupplement(remoteBlockHashes []DomainHash, timestamp uint64, maxCount uint32) (*BlockchainSupplement, error)
	BuildSparseChain() ([]DomainHash, error)
	GetTransactionHashesByPaymentID(paymentID DomainHash) ([]DomainHash, error)
	GetBlockHashesByTimestamps(timestampBegin uint64, secondsCount uint64) ([]DomainHash, error)
	GetRandomOutsByAmount(amount uint64, count uint64) ([]uint32, error)
	GetCurrentRequiredMixin(amount uint64) (uint64, error)
	GetBlockTemplate(minerTransaction MinerTransactionBuilder) (*BlockTemplate, error)
	GetDifficultyForNextBlock() (uint64, error)
	KeyImageCommitment() ([]byte, error)

	Save() error
	Close() error
}

// AddBlockOutcome classifies a successfully added block.
type AddBlockOutcome uint8

// AddBlockOutcome values.
const (
	AddedToMain AddBlockOutcome = iota
	AddedToAlternative
	AddedToAlternativeAndSwitched
)

var addBlockOutcomeStrings = [...]string{
	"AddedToMain",
	"AddedToAlternative",
	"AddedToAlternativeAndSwitched",
}

func (outcome AddBlockOutcome) String() string {
	if int(outcome) < len(addBlockOutcomeStrings) {
		return addBlockOutcomeStrings[outcome]
	}
	return "Unknown"
}

// BlockInfo is a block as returned by block queries.
type BlockInfo struct {
	Index       uint32
	Block       *DomainBlock
	RawBlock    *RawBlock
	Info        *CachedBlockInfo
	IsMainChain bool
}

// TransactionInfo is a transaction as returned by transaction queries.
type TransactionInfo struct {
	Transaction *DomainTransaction
	Info        *CachedTransactionInfo
	IsMainChain bool
}

// BlockchainSupplement answers a peer's sparse chain: StartIndex is the
// index of the highest block shared with the peer and BlockHashes are the
// main chain hashes from there on. FullOffset is the first block the peer
// needs in full rather than as a hash.
type BlockchainSupplement struct {
	StartIndex  uint32
	FullOffset  uint32
	TotalCount  uint32
	BlockHashes []DomainHash
}

// MinerTransactionBuilder builds the miner transaction of a block template
// given the block index and the reward the miner may claim.
type MinerTransactionBuilder func(blockIndex uint32, reward uint64) (*DomainTransaction, error)

// BlockTemplate is the data a miner needs to build the next block.
type BlockTemplate struct {
	Block                 *DomainBlock
	Transactions          []*DomainTransaction
	BlockIndex            uint32
	Difficulty            uint64
	MedianSize            uint64
	AlreadyGeneratedCoins uint64
	ExpectedReward        uint64
	TransactionsSize      uint64
	Fee                   uint64
}
