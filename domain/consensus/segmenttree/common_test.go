package segmenttree

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/chaincfg"
	"github.com/cnchain/cnd/domain/consensus/datastructures/memorysegment"
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/stretchr/testify/require"
)

const (
	genesisTimestamp = 1_700_006_400
	blockSpacing     = 12 * 60 * 60
	testAmount       = 10
)

var testPaymentID = externalapi.DomainHash{0xaa}

func testHash(prefix string, fork byte, values ...uint32) externalapi.DomainHash {
	data := make([]byte, 1+4*len(values))
	data[0] = fork
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[1+4*i:], value)
	}
	return hashes.Keccak([]byte(prefix), data)
}

func testKeyImage(fork byte, blockIndex uint32) externalapi.KeyImage {
	return externalapi.KeyImage(testHash("key image", fork, blockIndex))
}

func testOutputKey(fork byte, blockIndex uint32, outputIndex uint32) externalapi.PublicKey {
	return externalapi.PublicKey(testHash("output", fork, blockIndex, outputIndex))
}

// buildTestPush builds block blockIndex of the branch fork. The miner
// transaction has one output of testAmount unlocked after the mined money
// unlock window. From block 1 on a body transaction spends
// testKeyImage(fork, blockIndex) and creates one unlocked output of
// testAmount. Miner transactions of even blocks carry testPaymentID.
func buildTestPush(t require.TestingT, params *chaincfg.Params, blockIndex uint32, fork byte,
	previous externalapi.DomainHash) *model.BlockPush {

	var paymentID *externalapi.DomainHash
	if blockIndex%2 == 0 {
		paymentID = &testPaymentID
	}
	base := &externalapi.DomainTransaction{
		Version:    1,
		UnlockTime: uint64(blockIndex + params.MinedMoneyUnlockWindow),
		Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: blockIndex}},
		Outputs: []*externalapi.DomainTransactionOutput{{
			Amount: testAmount,
			Target: &externalapi.KeyOutput{Key: testOutputKey(fork, blockIndex, 0)},
		}},
		Extra: serialization.BuildTransactionExtra(externalapi.PublicKey(testHash("tx key", fork, blockIndex)), paymentID),
	}
	block := &externalapi.DomainBlock{
		Version:           1,
		Timestamp:         genesisTimestamp + uint64(blockIndex)*blockSpacing + uint64(fork),
		PreviousBlockHash: previous,
		BaseTransaction:   base,
	}

	var body []*externalapi.DomainTransaction
	if blockIndex > 0 {
		body = append(body, &externalapi.DomainTransaction{
			Version: 1,
			Inputs: []externalapi.DomainTransactionInput{&externalapi.KeyInput{
				Amount:        testAmount,
				OutputIndexes: []uint32{0},
				KeyImage:      testKeyImage(fork, blockIndex),
			}},
			Outputs: []*externalapi.DomainTransactionOutput{{
				Amount: testAmount,
				Target: &externalapi.KeyOutput{Key: testOutputKey(fork, blockIndex, 1)},
			}},
			Extra: serialization.BuildTransactionExtra(externalapi.PublicKey(testHash("body key", fork, blockIndex)), nil),
		})
	}

	rawBlock := &externalapi.RawBlock{}
	transactions := []*model.PushedTransaction{NewPushedTransaction(base, false)}
	var spentKeyImages []externalapi.KeyImage
	for _, tx := range body {
		block.TransactionHashes = append(block.TransactionHashes, consensushashing.TransactionHash(tx))
		transactionBytes, err := serialization.TransactionToBytes(tx)
		require.NoError(t, err)
		rawBlock.Transactions = append(rawBlock.Transactions, transactionBytes)
		transactions = append(transactions, NewPushedTransaction(tx, false))
		spentKeyImages = append(spentKeyImages, tx.KeyImages()...)
	}
	blockBytes, err := serialization.BlockToBytes(block)
	require.NoError(t, err)
	rawBlock.Block = blockBytes

	return &model.BlockPush{
		BlockHash:      consensushashing.BlockHash(block),
		Version:        block.Version,
		Timestamp:      block.Timestamp,
		Transactions:   transactions,
		SpentKeyImages: spentKeyImages,
		BlobSize:       uint64(len(blockBytes)),
		GeneratedCoins: testAmount,
		Difficulty:     uint64(blockIndex) + 1,
		RawBlock:       rawBlock,
	}
}

func newTestTree(t require.TestingT) (*Tree, SegmentID) {
	tree := New(&chaincfg.SimnetParams, memorysegment.NewFactory())
	root, err := tree.CreateRoot()
	require.NoError(t, err)
	return tree, root
}

// pushTestBlocks pushes count blocks of the branch fork to the leaf id and
// returns their hashes.
func pushTestBlocks(t require.TestingT, tree *Tree, id SegmentID, fork byte, count uint32) []externalapi.DomainHash {
	startIndex, err := tree.StartIndex(id)
	require.NoError(t, err)
	blockCount, err := tree.BlockCount(id)
	require.NoError(t, err)
	blockIndex := startIndex + blockCount

	var previous externalapi.DomainHash
	if blockIndex > 0 {
		previous, err = tree.BlockHash(id, blockIndex-1)
		require.NoError(t, err)
	}
	blockHashes := make([]externalapi.DomainHash, 0, count)
	for i := uint32(0); i < count; i++ {
		push := buildTestPush(t, tree.params, blockIndex+i, fork, previous)
		require.NoError(t, tree.PushBlock(id, push))
		previous = push.BlockHash
		blockHashes = append(blockHashes, previous)
	}
	return blockHashes
}

// outputsBelow is the number of outputs of testAmount created by the test
// blocks below blockIndex.
func outputsBelow(blockIndex uint32) uint32 {
	if blockIndex == 0 {
		return 0
	}
	return 2*blockIndex - 1
}
