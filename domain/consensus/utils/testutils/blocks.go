package testutils

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/processes/coinbasemanager"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/devoracle"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// BlockBuilder builds valid blocks whose miner outputs are spendable with
// the development signature oracle. Blocks are kept below the full reward
// zone so their reward does not depend on the median block size.
type BlockBuilder struct {
	params          *chaincfg.Params
	coinbaseManager model.CoinbaseManager
}

// NewBlockBuilder returns a BlockBuilder for params.
func NewBlockBuilder(params *chaincfg.Params) *BlockBuilder {
	return &BlockBuilder{
		params:          params,
		coinbaseManager: coinbasemanager.New(params),
	}
}

// MinerSecret returns the secret key owning output outputIndex of the
// miner transaction BuildBlock creates for blockIndex and tag.
func MinerSecret(blockIndex uint32, outputIndex int, tag byte) devoracle.SecretKey {
	seed := make([]byte, 9)
	binary.LittleEndian.PutUint32(seed[:4], blockIndex)
	binary.LittleEndian.PutUint32(seed[4:8], uint32(outputIndex))
	seed[8] = tag
	return devoracle.NewSecretKey(seed)
}

// BuildBlock builds a block on top of parent holding transactions. tag
// tells apart sibling blocks built on the same parent.
func (b *BlockBuilder) BuildBlock(parent *externalapi.BlockInfo, tag byte,
	transactions []*externalapi.DomainTransaction) (*externalapi.RawBlock, externalapi.DomainHash, error) {

	blockIndex := parent.Index + 1
	version := b.params.BlockVersion(blockIndex)

	rawTransactions := make([][]byte, len(transactions))
	transactionHashes := make([]externalapi.DomainHash, len(transactions))
	transactionsSize := uint64(0)
	fee := uint64(0)
	for i, transaction := range transactions {
		transactionBytes, err := serialization.TransactionToBytes(transaction)
		if err != nil {
			return nil, externalapi.DomainHash{}, err
		}
		rawTransactions[i] = transactionBytes
		transactionHashes[i] = consensushashing.TransactionHash(transaction)
		transactionsSize += uint64(len(transactionBytes))
		fee += Fee(transaction)
	}

	reward, _, ok := b.coinbaseManager.BlockReward(version, 0, transactionsSize,
		parent.Info.AlreadyGeneratedCoins, fee)
	if !ok {
		return nil, externalapi.DomainHash{}, errors.Errorf("transactions of %d bytes cannot be rewarded",
			transactionsSize)
	}

	block := &externalapi.DomainBlock{
		Version:           version,
		UpgradeVote:       version,
		Nonce:             uint32(tag),
		Timestamp:         parent.Block.Timestamp + uint64(b.params.TargetTimePerBlock.Seconds()),
		PreviousBlockHash: parent.Info.BlockHash,
		BaseTransaction:   b.MinerTransaction(blockIndex, reward, tag),
		StaticRewardHash:  b.coinbaseManager.StaticRewardHash(version, blockIndex),
		TransactionHashes: transactionHashes,
	}
	blockBytes, err := serialization.BlockToBytes(block)
	if err != nil {
		return nil, externalapi.DomainHash{}, err
	}
	return &externalapi.RawBlock{Block: blockBytes, Transactions: rawTransactions},
		consensushashing.BlockHash(block), nil
}

// MinerTransaction builds a miner transaction paying reward to the keys of
// MinerSecret.
func (b *BlockBuilder) MinerTransaction(blockIndex uint32, reward uint64, tag byte) *externalapi.DomainTransaction {
	parts := amount.Decompose(reward)
	outputs := make([]*externalapi.DomainTransactionOutput, len(parts))
	for i, part := range parts {
		outputs[i] = &externalapi.DomainTransactionOutput{
			Amount: part,
			Target: &externalapi.KeyOutput{Key: devoracle.PublicKey(MinerSecret(blockIndex, i, tag))},
		}
	}
	return &externalapi.DomainTransaction{
		Version:    b.params.TransactionMinVersion,
		UnlockTime: uint64(blockIndex) + uint64(b.params.MinedMoneyUnlockWindow),
		Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: blockIndex}},
		Outputs:    outputs,
		Extra:      serialization.BuildTransactionExtra(externalapi.PublicKey{tag + 1}, nil),
	}
}

// SpendOutput builds a transaction spending, with a ring of one, the
// output of amount at globalIndex owned by secret. It pays amount-fee,
// decomposed, to fresh keys derived from tag.
func (b *BlockBuilder) SpendOutput(amountToSpend uint64, globalIndex uint32, secret devoracle.SecretKey,
	fee uint64, tag byte) (*externalapi.DomainTransaction, error) {

	if fee >= amountToSpend {
		return nil, errors.Errorf("fee %d does not leave anything of %d", fee, amountToSpend)
	}
	parts := amount.Decompose(amountToSpend - fee)
	outputs := make([]*externalapi.DomainTransactionOutput, len(parts))
	for i, part := range parts {
		outputs[i] = &externalapi.DomainTransactionOutput{
			Amount: part,
			Target: &externalapi.KeyOutput{Key: devoracle.PublicKey(devoracle.NewSecretKey([]byte{tag, byte(i)}))},
		}
	}
	transaction := &externalapi.DomainTransaction{
		Version: b.params.TransactionMinVersion,
		Inputs: []externalapi.DomainTransactionInput{&externalapi.KeyInput{
			Amount:        amountToSpend,
			OutputIndexes: []uint32{globalIndex},
			KeyImage:      devoracle.KeyImage(secret),
		}},
		Outputs: outputs,
		Extra:   serialization.BuildTransactionExtra(externalapi.PublicKey{tag, 0xff}, nil),
	}

	_, signatures, err := devoracle.Sign(consensushashing.TransactionPrefixHash(transaction), secret,
		[]externalapi.PublicKey{devoracle.PublicKey(secret)}, 0)
	if err != nil {
		return nil, err
	}
	transaction.Signatures = [][]externalapi.Signature{signatures}
	return transaction, nil
}

// Fee returns the amount of the key inputs of transaction not paid to its
// outputs.
func Fee(transaction *externalapi.DomainTransaction) uint64 {
	inputs := uint64(0)
	for _, input := range transaction.Inputs {
		if keyInput, ok := input.(*externalapi.KeyInput); ok {
			inputs += keyInput.Amount
		}
	}
	outputs := uint64(0)
	for _, output := range transaction.Outputs {
		outputs += output.Amount
	}
	if outputs > inputs {
		return 0
	}
	return inputs - outputs
}
