package externalapi

// DomainBlock represents a CryptoNote block template: the header fields, the
// miner transaction and the hashes of the body transactions. The body itself
// travels next to it in a RawBlock.
type DomainBlock struct {
	Version           uint8
	UpgradeVote       uint8
	Nonce             uint32
	Timestamp         uint64
	PreviousBlockHash DomainHash
	MergeMiningTag    MergeMiningTag

	BaseTransaction *DomainTransaction

	// StaticRewardHash is the crc16 truncation of the static reward
	// transaction hash. It is nil for versions without a static reward.
	StaticRewardHash *uint16

	TransactionHashes []DomainHash
}

// MergeMiningTag is implemented by RawMergeMiningTag and
// PrunedMergeMiningTag. A nil MergeMiningTag means the block is not merge
// mined.
type MergeMiningTag interface {
	isMergeMiningTag()
}

// RawMergeMiningTag carries the hashes the block's proof of work blob is
// wrapped in when it is merge mined.
type RawMergeMiningTag struct {
	Prefix  []DomainHash
	Postfix []DomainHash
}

func (*RawMergeMiningTag) isMergeMiningTag() {}

// Size returns the number of hashes in the tag.
func (tag *RawMergeMiningTag) Size() int {
	return len(tag.Prefix) + len(tag.Postfix)
}

// PrunedMergeMiningTag replaces a RawMergeMiningTag in pruned storage.
type PrunedMergeMiningTag struct {
	ProofOfWorkPrefix DomainHash
	BinarySize        uint64
}

func (*PrunedMergeMiningTag) isMergeMiningTag() {}

// HasStaticReward returns whether the block carries a static reward
// transaction next to its miner transaction.
func (block *DomainBlock) HasStaticReward() bool {
	return block.StaticRewardHash != nil
}

// Index returns the block index embedded in the miner transaction, or
// InvalidBlockIndex if the miner transaction is malformed.
func (block *DomainBlock) Index() uint32 {
	if block.BaseTransaction == nil || len(block.BaseTransaction.Inputs) != 1 {
		return InvalidBlockIndex
	}
	baseInput, ok := block.BaseTransaction.Inputs[0].(*BaseInput)
	if !ok {
		return InvalidBlockIndex
	}
	return baseInput.BlockIndex
}

// RawBlock is the serialized form of a block as it is relayed and stored:
// the block template and every body transaction.
type RawBlock struct {
	Block        []byte
	Transactions [][]byte
}

// Clone returns a deep copy of the raw block.
func (raw *RawBlock) Clone() *RawBlock {
	transactions := make([][]byte, len(raw.Transactions))
	for i, transaction := range raw.Transactions {
		transactions[i] = append([]byte(nil), transaction...)
	}
	return &RawBlock{
		Block:        append([]byte(nil), raw.Block...),
		Transactions: transactions,
	}
}
