// Package segmentstoragesuite is a behavioural test suite every
// model.SegmentStorage strategy has to pass.
package segmentstoragesuite

import (
	"encoding/binary"
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/multiset"
	"github.com/davecgh/go-spew/spew"
)

// FactoryConstructor returns a fresh, empty SegmentStorageFactory and a
// teardown function.
type FactoryConstructor func(t *testing.T, testName string) (factory model.SegmentStorageFactory, teardown func())

const (
	// Two blocks a day, so the timestamps cross UTC midnights.
	genesisTimestamp = 1_700_006_400
	blockSpacing     = 12 * 60 * 60

	ancestorOutputsOfAmount10 = 7
)

var paymentID = externalapi.DomainHash{0xaa}

// Run runs the whole suite against the strategy built by newFactory.
func Run(t *testing.T, newFactory FactoryConstructor) {
	t.Run("PushAndQuery", func(t *testing.T) { testPushAndQuery(t, newFactory) })
	t.Run("Split", func(t *testing.T) { testSplit(t, newFactory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newFactory) })
}

func testHash(prefix string, values ...uint32) externalapi.DomainHash {
	data := make([]byte, 4*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[4*i:], value)
	}
	return hashes.Keccak([]byte(prefix), data)
}

func keyImage(blockIndex uint32) externalapi.KeyImage {
	return externalapi.KeyImage(testHash("key image", blockIndex))
}

func output(amount uint64, blockIndex uint32, outputIndex uint32) *externalapi.DomainTransactionOutput {
	return &externalapi.DomainTransactionOutput{
		Amount: amount,
		Target: &externalapi.KeyOutput{Key: externalapi.PublicKey(testHash("output", blockIndex, outputIndex))},
	}
}

// testPush returns the push of block blockIndex: a miner transaction with
// outputs of 10 and 100, and from block 1 on a body transaction with an
// output of 10 that spends one key image. Even blocks carry a payment id.
func testPush(blockIndex uint32) *model.BlockPush {
	push := &model.BlockPush{
		BlockHash:      testHash("block", blockIndex),
		Version:        1,
		UpgradeVote:    1,
		Timestamp:      genesisTimestamp + uint64(blockIndex)*blockSpacing,
		BlobSize:       100 + uint64(blockIndex),
		GeneratedCoins: 110,
		Difficulty:     10 + uint64(blockIndex),
		RawBlock:       &externalapi.RawBlock{Block: []byte{byte(blockIndex)}},
		Transactions: []*model.PushedTransaction{{
			Hash:                         testHash("miner", blockIndex),
			UnlockTime:                   uint64(blockIndex) + 10,
			Outputs:                      []*externalapi.DomainTransactionOutput{output(10, blockIndex, 0), output(100, blockIndex, 1)},
			IsDeterministicallyGenerated: true,
		}},
	}
	if blockIndex == 0 {
		return push
	}

	body := &model.PushedTransaction{
		Hash:    testHash("body", blockIndex),
		Outputs: []*externalapi.DomainTransactionOutput{output(10, blockIndex, 2)},
	}
	if blockIndex%2 == 0 {
		body.PaymentID = &paymentID
	}
	push.Transactions = append(push.Transactions, body)
	push.RawBlock.Transactions = [][]byte{{byte(blockIndex), 1}}
	push.SpentKeyImages = []externalapi.KeyImage{keyImage(blockIndex)}
	return push
}

func parentOutputs(amount uint64) (uint32, error) {
	if amount == 10 {
		return ancestorOutputsOfAmount10, nil
	}
	return 0, nil
}

func pushBlocks(t *testing.T, storage model.SegmentStorage, count uint32) {
	var previous *externalapi.CachedBlockInfo
	if storage.BlockCount() > 0 {
		var err error
		previous, err = storage.BlockInfo(storage.StartIndex() + storage.BlockCount() - 1)
		if err != nil {
			t.Fatalf("BlockInfo: %+v", err)
		}
	}
	for i := uint32(0); i < count; i++ {
		blockIndex := storage.StartIndex() + storage.BlockCount()
		err := storage.PushBlock(testPush(blockIndex), previous, parentOutputs)
		if err != nil {
			t.Fatalf("PushBlock %d: %+v", blockIndex, err)
		}
		previous, err = storage.BlockInfo(blockIndex)
		if err != nil {
			t.Fatalf("BlockInfo %d: %+v", blockIndex, err)
		}
	}
}

// checkBlocks checks every query of storage against the blocks
// [start, end) built by testPush.
func checkBlocks(t *testing.T, storage model.SegmentStorage, start, end uint32) {
	if storage.StartIndex() != start || storage.StartIndex()+storage.BlockCount() != end {
		t.Fatalf("segment is [%d, %d), expected [%d, %d)", storage.StartIndex(),
			storage.StartIndex()+storage.BlockCount(), start, end)
	}

	expectedTransactions := uint64(0)
	for blockIndex := start; blockIndex < end; blockIndex++ {
		push := testPush(blockIndex)
		expectedTransactions += uint64(len(push.Transactions))

		info, err := storage.BlockInfo(blockIndex)
		if err != nil {
			t.Fatalf("BlockInfo %d: %+v", blockIndex, err)
		}
		// Difficulty of block i is 10+i, so cumulative is sum over [0, i].
		expectedCumulativeDifficulty := uint64(blockIndex+1)*10 + uint64(blockIndex)*uint64(blockIndex+1)/2
		if info.BlockHash != push.BlockHash || info.Timestamp != push.Timestamp ||
			info.CumulativeDifficulty != expectedCumulativeDifficulty ||
			info.AlreadyGeneratedCoins != uint64(blockIndex+1)*110 ||
			info.AlreadyGeneratedTransactions != uint64(2*blockIndex+1) {
			t.Fatalf("unexpected info of block %d: %s", blockIndex, spew.Sdump(info))
		}

		foundIndex, found, err := storage.BlockIndexByHash(push.BlockHash)
		if err != nil || !found || foundIndex != blockIndex {
			t.Fatalf("BlockIndexByHash %d: got %d, %t, %v", blockIndex, foundIndex, found, err)
		}

		rawBlock, err := storage.RawBlock(blockIndex)
		if err != nil {
			t.Fatalf("RawBlock %d: %+v", blockIndex, err)
		}
		if rawBlock.Block[0] != byte(blockIndex) || len(rawBlock.Transactions) != len(push.RawBlock.Transactions) {
			t.Fatalf("unexpected raw block %d: %s", blockIndex, spew.Sdump(rawBlock))
		}

		spentKeyImages, err := storage.SpentKeyImagesAt(blockIndex)
		if err != nil {
			t.Fatalf("SpentKeyImagesAt %d: %+v", blockIndex, err)
		}
		if len(spentKeyImages) != len(push.SpentKeyImages) {
			t.Fatalf("block %d: expected %d spent key images, got %d", blockIndex,
				len(push.SpentKeyImages), len(spentKeyImages))
		}
		for _, spent := range push.SpentKeyImages {
			spentAt, found, err := storage.KeyImageSpentAt(spent)
			if err != nil || !found || spentAt != blockIndex {
				t.Fatalf("KeyImageSpentAt of block %d: got %d, %t, %v", blockIndex, spentAt, found, err)
			}
		}

		for transactionIndex, transaction := range push.Transactions {
			info, found, err := storage.TransactionInfo(transaction.Hash)
			if err != nil || !found {
				t.Fatalf("TransactionInfo %d/%d: %t, %v", blockIndex, transactionIndex, found, err)
			}
			if info.BlockIndex != blockIndex || int(info.TransactionIndex) != transactionIndex ||
				info.UnlockTime != transaction.UnlockTime || len(info.GlobalIndexes) != len(transaction.Outputs) ||
				info.IsDeterministicallyGenerated != transaction.IsDeterministicallyGenerated {
				t.Fatalf("unexpected transaction info %d/%d: %s", blockIndex, transactionIndex, spew.Sdump(info))
			}
			infoAt, err := storage.TransactionInfoAt(blockIndex, uint16(transactionIndex))
			if err != nil || infoAt.TransactionHash != transaction.Hash {
				t.Fatalf("TransactionInfoAt %d/%d: %v", blockIndex, transactionIndex, err)
			}

			for outputIndex, globalIndex := range info.GlobalIndexes {
				amount := transaction.Outputs[outputIndex].Amount
				packed, err := storage.KeyOutputAt(amount, globalIndex)
				if err != nil {
					t.Fatalf("KeyOutputAt %d/%d: %+v", amount, globalIndex, err)
				}
				expected := externalapi.PackedOutIndex{
					BlockIndex:       blockIndex,
					TransactionIndex: uint16(transactionIndex),
					OutputIndex:      uint16(outputIndex),
				}
				if packed != expected {
					t.Fatalf("KeyOutputAt %d/%d: got %+v, expected %+v", amount, globalIndex, packed, expected)
				}
				expectedGlobalIndex := expectedGlobalIndex(amount, blockIndex, transactionIndex)
				if globalIndex != expectedGlobalIndex {
					t.Fatalf("output %d/%d/%d: global index %d, expected %d", blockIndex, transactionIndex,
						outputIndex, globalIndex, expectedGlobalIndex)
				}
			}
		}
	}

	transactionCount, err := storage.TransactionCount()
	if err != nil || transactionCount != expectedTransactions {
		t.Fatalf("TransactionCount: got %d, expected %d (%v)", transactionCount, expectedTransactions, err)
	}

	checkOutputCounts(t, storage, start, end)
	checkPaymentIDs(t, storage, start, end)
	checkTimestamps(t, storage, start, end)
	checkKeyImageCommitment(t, storage, start, end)
}

// expectedGlobalIndex is the global index testPush outputs get: every
// block creates two outputs of 10 (one in genesis) and one of 100, on top
// of the outputs of 10 the ancestors already have.
func expectedGlobalIndex(amount uint64, blockIndex uint32, transactionIndex int) uint32 {
	if amount == 100 {
		return blockIndex
	}
	outputsBefore := uint32(0)
	if blockIndex > 0 {
		outputsBefore = 2*blockIndex - 1
	}
	return ancestorOutputsOfAmount10 + outputsBefore + uint32(transactionIndex)
}

func checkOutputCounts(t *testing.T, storage model.SegmentStorage, start, end uint32) {
	startIndex, count, err := storage.KeyOutputs(100)
	if err != nil || startIndex != start || count != end-start {
		t.Fatalf("KeyOutputs(100): got %d, %d (%v)", startIndex, count, err)
	}
	startIndex, count, err = storage.KeyOutputs(10)
	if err != nil || startIndex != expectedGlobalIndex(10, start, 0) ||
		count != expectedGlobalIndex(10, end, 0)-expectedGlobalIndex(10, start, 0) {
		t.Fatalf("KeyOutputs(10): got %d, %d (%v)", startIndex, count, err)
	}
	startIndex, count, err = storage.KeyOutputs(1000)
	if err != nil || count != 0 {
		t.Fatalf("KeyOutputs(1000): got %d, %d (%v)", startIndex, count, err)
	}

	for blockIndex := start; blockIndex < end; blockIndex++ {
		upTo, err := storage.KeyOutputsUpTo(100, blockIndex)
		if err != nil || upTo != blockIndex-start+1 {
			t.Fatalf("KeyOutputsUpTo(100, %d): got %d (%v)", blockIndex, upTo, err)
		}
		upTo, err = storage.KeyOutputsUpTo(10, blockIndex)
		expected := expectedGlobalIndex(10, blockIndex+1, 0) - expectedGlobalIndex(10, start, 0)
		if err != nil || upTo != expected {
			t.Fatalf("KeyOutputsUpTo(10, %d): got %d, expected %d (%v)", blockIndex, upTo, expected, err)
		}
	}
}

func checkPaymentIDs(t *testing.T, storage model.SegmentStorage, start, end uint32) {
	var expected []externalapi.DomainHash
	for blockIndex := start; blockIndex < end; blockIndex++ {
		if blockIndex > 0 && blockIndex%2 == 0 {
			expected = append(expected, testHash("body", blockIndex))
		}
	}
	transactionHashes, err := storage.PaymentIDTransactions(paymentID)
	if err != nil {
		t.Fatalf("PaymentIDTransactions: %+v", err)
	}
	if len(transactionHashes) != len(expected) {
		t.Fatalf("PaymentIDTransactions: got %d transactions, expected %d", len(transactionHashes), len(expected))
	}
	for i := range expected {
		if transactionHashes[i] != expected[i] {
			t.Fatalf("PaymentIDTransactions: transaction %d is %s, expected %s", i, transactionHashes[i], expected[i])
		}
	}

	transactionHashes, err = storage.PaymentIDTransactions(externalapi.DomainHash{0xbb})
	if err != nil || len(transactionHashes) != 0 {
		t.Fatalf("PaymentIDTransactions of an unknown payment id: %d, %v", len(transactionHashes), err)
	}
}

func checkTimestamps(t *testing.T, storage model.SegmentStorage, start, end uint32) {
	tests := []struct {
		timestamp uint64
		expected  uint32
	}{
		{timestamp: 0, expected: start},
		{timestamp: genesisTimestamp + uint64(start)*blockSpacing, expected: start},
		{timestamp: genesisTimestamp + uint64(start)*blockSpacing + 1, expected: start + 1},
		{timestamp: genesisTimestamp + uint64(end-1)*blockSpacing, expected: end - 1},
		{timestamp: genesisTimestamp + uint64(end)*blockSpacing, expected: end},
		{timestamp: genesisTimestamp + uint64(end+10)*blockSpacing, expected: end},
	}
	for _, test := range tests {
		lowerBound, err := storage.TimestampLowerBound(test.timestamp)
		if err != nil || lowerBound != test.expected {
			t.Fatalf("TimestampLowerBound(%d): got %d, expected %d (%v)", test.timestamp, lowerBound, test.expected, err)
		}
	}

	begin := genesisTimestamp + uint64(start)*blockSpacing + 1
	finish := genesisTimestamp + uint64(end-1)*blockSpacing
	blockHashes, err := storage.BlockHashesByTimestampRange(begin, finish)
	if err != nil {
		t.Fatalf("BlockHashesByTimestampRange: %+v", err)
	}
	if len(blockHashes) != int(end-start-1) {
		t.Fatalf("BlockHashesByTimestampRange: got %d hashes, expected %d", len(blockHashes), end-start-1)
	}
	for i, blockHash := range blockHashes {
		if blockHash != testHash("block", start+1+uint32(i)) {
			t.Fatalf("BlockHashesByTimestampRange: unexpected hash at %d", i)
		}
	}
}

func expectedKeyImageCommitment(start, end uint32) model.Multiset {
	commitment := multiset.New()
	for blockIndex := start; blockIndex < end; blockIndex++ {
		for _, spent := range testPush(blockIndex).SpentKeyImages {
			commitment.Add(spent[:])
		}
	}
	return commitment
}

func checkKeyImageCommitment(t *testing.T, storage model.SegmentStorage, start, end uint32) {
	commitment, err := storage.KeyImageCommitment()
	if err != nil {
		t.Fatalf("KeyImageCommitment: %+v", err)
	}
	if commitment.Hash() != expectedKeyImageCommitment(start, end).Hash() {
		t.Fatalf("KeyImageCommitment of [%d, %d) does not match its key images", start, end)
	}
}

func testPushAndQuery(t *testing.T, newFactory FactoryConstructor) {
	factory, teardown := newFactory(t, "PushAndQuery")
	defer teardown()

	storage, err := factory.NewSegmentStorage(0)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushBlocks(t, storage, 6)
	checkBlocks(t, storage, 0, 6)

	err = storage.PushBlock(testPush(2), nil, parentOutputs)
	if err == nil {
		t.Fatalf("pushing a block twice should fail")
	}

	_, err = storage.BlockInfo(6)
	if err == nil {
		t.Fatalf("BlockInfo above the top should fail")
	}
	_, found, err := storage.TransactionInfo(testHash("nothing"))
	if err != nil || found {
		t.Fatalf("TransactionInfo of an unknown transaction: %t, %v", found, err)
	}
	_, found, err = storage.KeyImageSpentAt(externalapi.KeyImage{0xcc})
	if err != nil || found {
		t.Fatalf("KeyImageSpentAt of an unknown key image: %t, %v", found, err)
	}
}

func testSplit(t *testing.T, newFactory FactoryConstructor) {
	factory, teardown := newFactory(t, "Split")
	defer teardown()

	lower, err := factory.NewSegmentStorage(0)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	pushBlocks(t, lower, 8)

	for _, at := range []uint32{5, 2} {
		upper, err := factory.NewSegmentStorage(at)
		if err != nil {
			t.Fatalf("NewSegmentStorage: %+v", err)
		}
		top := lower.StartIndex() + lower.BlockCount()
		err = lower.Split(at, upper)
		if err != nil {
			t.Fatalf("Split at %d: %+v", at, err)
		}
		checkBlocks(t, lower, 0, at)
		checkBlocks(t, upper, at, top)

		// The upper segment keeps growing from where the split left it.
		pushBlocks(t, upper, 2)
		checkBlocks(t, upper, at, top+2)
	}

	upper, err := factory.NewSegmentStorage(1)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	err = lower.Split(2, upper)
	if err == nil {
		t.Fatalf("Split at the top should fail")
	}
	err = lower.Split(0, upper)
	if err == nil {
		t.Fatalf("Split at the start should fail")
	}
}

func testDelete(t *testing.T, newFactory FactoryConstructor) {
	factory, teardown := newFactory(t, "Delete")
	defer teardown()

	storage, err := factory.NewSegmentStorage(3)
	if err != nil {
		t.Fatalf("NewSegmentStorage: %+v", err)
	}
	var previous *externalapi.CachedBlockInfo
	for blockIndex := uint32(3); blockIndex < 5; blockIndex++ {
		err = storage.PushBlock(testPush(blockIndex), previous, parentOutputs)
		if err != nil {
			t.Fatalf("PushBlock: %+v", err)
		}
		previous, err = storage.BlockInfo(blockIndex)
		if err != nil {
			t.Fatalf("BlockInfo: %+v", err)
		}
	}

	err = storage.Delete()
	if err != nil {
		t.Fatalf("Delete: %+v", err)
	}
	if storage.BlockCount() != 0 {
		t.Fatalf("a deleted segment has %d blocks", storage.BlockCount())
	}
	_, found, err := storage.BlockIndexByHash(testHash("block", 3))
	if err != nil || found {
		t.Fatalf("BlockIndexByHash after Delete: %t, %v", found, err)
	}
	_, found, err = storage.TransactionInfo(testHash("miner", 3))
	if err != nil || found {
		t.Fatalf("TransactionInfo after Delete: %t, %v", found, err)
	}
}
