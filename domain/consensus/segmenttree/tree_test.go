package segmenttree

import (
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/multiset"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/stretchr/testify/require"
)

// buildForkedTree builds a main chain of 6 blocks and an alternative branch
// that forks above block 2 and carries 3 blocks. It returns the tree, the
// segment holding the top of the main chain and the alternative leaf.
func buildForkedTree(t *testing.T) (tree *Tree, mainLeaf, fork SegmentID, mainHashes []externalapi.DomainHash) {
	tree, root := newTestTree(t)
	mainHashes = pushTestBlocks(t, tree, root, 0, 6)

	mainLeaf, err := tree.Split(root, 3)
	require.NoError(t, err)
	fork, err = tree.NewChild(root)
	require.NoError(t, err)
	pushTestBlocks(t, tree, fork, 1, 3)
	return tree, mainLeaf, fork, mainHashes
}

func TestTreeStructure(t *testing.T) {
	tree, mainLeaf, fork, _ := buildForkedTree(t)
	root := tree.Root()

	require.Equal(t, 3, tree.Len())
	require.Equal(t, []SegmentID{root, mainLeaf, fork}, tree.Segments())

	children, err := tree.Children(root)
	require.NoError(t, err)
	require.Equal(t, []SegmentID{mainLeaf, fork}, children)

	path, err := tree.Path(fork)
	require.NoError(t, err)
	require.Equal(t, []SegmentID{fork, root}, path)

	for _, id := range []SegmentID{mainLeaf, fork} {
		startIndex, err := tree.StartIndex(id)
		require.NoError(t, err)
		require.Equal(t, uint32(3), startIndex)
		top, err := tree.TopBlockIndex(id)
		require.NoError(t, err)
		require.Equal(t, uint32(5), top)
	}
	top, err := tree.TopBlockIndex(root)
	require.NoError(t, err)
	require.Equal(t, uint32(2), top)

	isLeaf, err := tree.IsLeaf(root)
	require.NoError(t, err)
	require.False(t, isLeaf)

	err = tree.PushBlock(root, buildTestPush(t, tree.params, 3, 2, externalapi.DomainHash{}))
	require.Error(t, err, "pushing to a segment with children must fail")

	_, err = tree.BlockInfo(SegmentID(100), 0)
	require.Error(t, err, "unknown segments must be reported")
}

func TestTreeBlockQueries(t *testing.T) {
	tree, mainLeaf, fork, mainHashes := buildForkedTree(t)

	for blockIndex, expected := range mainHashes {
		blockHash, err := tree.BlockHash(mainLeaf, uint32(blockIndex))
		require.NoError(t, err)
		require.Equal(t, expected, blockHash)
	}
	forkHash, err := tree.BlockHash(fork, 2)
	require.NoError(t, err)
	require.Equal(t, mainHashes[2], forkHash)
	forkHash, err = tree.BlockHash(fork, 3)
	require.NoError(t, err)
	require.NotEqual(t, mainHashes[3], forkHash)

	_, err = tree.BlockInfo(fork, 6)
	require.True(t, database.IsNotFoundError(err), "blocks above the top must not be found, got %v", err)

	blockIndex, found, err := tree.BlockIndexByHash(fork, mainHashes[1])
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(1), blockIndex)
	_, found, err = tree.BlockIndexByHash(fork, mainHashes[4])
	require.NoError(t, err)
	require.False(t, found, "main chain blocks above the fork are not on the branch")

	owner, blockIndex, found, err := tree.FindBlock(mainHashes[4])
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, mainLeaf, owner)
	require.Equal(t, uint32(4), blockIndex)

	blockHashes, err := tree.BlockHashes(fork, 1, 3)
	require.NoError(t, err)
	require.Equal(t, []externalapi.DomainHash{mainHashes[1], mainHashes[2], forkHash}, blockHashes)

	info, err := tree.BlockInfo(fork, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(1+2+3+4+5+6), info.CumulativeDifficulty)
	require.Equal(t, uint64(6*testAmount), info.AlreadyGeneratedCoins)
	require.Equal(t, uint64(11), info.AlreadyGeneratedTransactions)

	transactionCount, err := tree.TransactionCount(fork)
	require.NoError(t, err)
	require.Equal(t, uint64(11), transactionCount)
}

func TestTreeSpentKeyImages(t *testing.T) {
	tree, mainLeaf, fork, _ := buildForkedTree(t)

	tests := []struct {
		name       string
		id         SegmentID
		keyImage   externalapi.KeyImage
		blockIndex uint32
		spent      bool
	}{
		{"main spend on main chain", mainLeaf, testKeyImage(0, 4), 5, true},
		{"main spend above the queried index", mainLeaf, testKeyImage(0, 4), 3, false},
		{"main spend invisible from the fork", fork, testKeyImage(0, 4), 5, false},
		{"common spend visible from the fork", fork, testKeyImage(0, 2), 5, true},
		{"fork spend on the fork", fork, testKeyImage(1, 3), 3, true},
		{"fork spend invisible from the main chain", mainLeaf, testKeyImage(1, 3), 5, false},
	}
	for _, test := range tests {
		spent, err := tree.CheckIfSpent(test.id, test.keyImage, test.blockIndex)
		require.NoError(t, err, test.name)
		require.Equal(t, test.spent, spent, test.name)
	}

	spent, err := tree.CheckIfAnySpent(fork, []externalapi.KeyImage{testKeyImage(0, 4), testKeyImage(0, 5)}, 5)
	require.NoError(t, err)
	require.False(t, spent)
	spent, err = tree.CheckIfAnySpent(fork, []externalapi.KeyImage{testKeyImage(0, 4), testKeyImage(0, 1)}, 5)
	require.NoError(t, err)
	require.True(t, spent)

	expected := multiset.New()
	for _, keyImage := range []externalapi.KeyImage{testKeyImage(0, 1), testKeyImage(0, 2),
		testKeyImage(1, 3), testKeyImage(1, 4), testKeyImage(1, 5)} {
		expected.Add(keyImage[:])
	}
	commitment, err := tree.KeyImageCommitment(fork)
	require.NoError(t, err)
	require.Equal(t, expected.Hash(), commitment.Hash())
}

func TestTreeKeyOutputs(t *testing.T) {
	tree, _, fork, _ := buildForkedTree(t)

	for blockIndex := uint32(0); blockIndex <= 6; blockIndex++ {
		count, err := tree.KeyOutputsCountForAmount(fork, testAmount, blockIndex)
		require.NoError(t, err)
		require.Equal(t, outputsBelow(blockIndex), count, "outputs below block %d", blockIndex)
	}

	for blockIndex := uint32(0); blockIndex <= 5; blockIndex++ {
		base, err := tree.TransactionInfoAt(fork, blockIndex, 0)
		require.NoError(t, err)
		require.Equal(t, []uint32{outputsBelow(blockIndex)}, base.GlobalIndexes)
		if blockIndex == 0 {
			continue
		}
		body, err := tree.TransactionInfoAt(fork, blockIndex, 1)
		require.NoError(t, err)
		require.Equal(t, []uint32{outputsBelow(blockIndex) + 1}, body.GlobalIndexes)

		globalIndexes, found, err := tree.TransactionGlobalIndexes(fork, body.TransactionHash)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, body.GlobalIndexes, globalIndexes)
	}

	timestamp := uint64(genesisTimestamp + 5*blockSpacing)
	keys, result, err := tree.ExtractKeyOutputKeys(fork, testAmount, 5, timestamp, []uint32{0, 5, 8})
	require.NoError(t, err)
	require.Equal(t, externalapi.ExtractOutputKeysSuccess, result)
	require.Equal(t, []externalapi.PublicKey{testOutputKey(0, 0, 0), testOutputKey(1, 3, 0), testOutputKey(1, 4, 1)}, keys)

	tests := []struct {
		name          string
		blockIndex    uint32
		globalIndexes []uint32
		expected      externalapi.ExtractOutputKeysResult
	}{
		{"locked miner output", 5, []uint32{1, 9}, externalapi.ExtractOutputKeysOutputLocked},
		{"index past the last output", 5, []uint32{11}, externalapi.ExtractOutputKeysInvalidGlobalIndex},
		{"output above the queried block", 3, []uint32{8}, externalapi.ExtractOutputKeysInvalidGlobalIndex},
	}
	for _, test := range tests {
		keys, result, err := tree.ExtractKeyOutputKeys(fork, testAmount, test.blockIndex, timestamp, test.globalIndexes)
		require.NoError(t, err, test.name)
		require.Equal(t, test.expected, result, test.name)
		require.Nil(t, keys, test.name)
	}
}

func TestTreeRandomOutsAndMixins(t *testing.T) {
	tree, root := newTestTree(t)
	pushTestBlocks(t, tree, root, 0, 6)
	timestamp := uint64(genesisTimestamp + 5*blockSpacing)

	// Outputs of blocks 0 to 3 are past the mined money unlock window at
	// block 5.
	globalIndexes, err := tree.RandomOutsByAmount(root, testAmount, 20, 5, timestamp)
	require.NoError(t, err)
	require.Len(t, globalIndexes, 7)
	seen := make(map[uint32]struct{})
	for _, globalIndex := range globalIndexes {
		require.Less(t, globalIndex, uint32(7))
		seen[globalIndex] = struct{}{}
	}
	require.Len(t, seen, 7, "random outputs must be distinct")

	globalIndexes, err = tree.RandomOutsByAmount(root, testAmount, 3, 5, timestamp)
	require.NoError(t, err)
	require.Len(t, globalIndexes, 3)

	globalIndexes, err = tree.RandomOutsByAmount(root, testAmount, 3, 1, timestamp)
	require.NoError(t, err)
	require.Empty(t, globalIndexes)

	available, err := tree.AvailableMixinsCount(root, testAmount, 5, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(7), available)
	available, err = tree.AvailableMixinsCount(root, 100, 5, 100)
	require.NoError(t, err)
	require.Zero(t, available)
}

func TestTreeTimestampsAndPaymentIDs(t *testing.T) {
	tree, mainLeaf, fork, mainHashes := buildForkedTree(t)

	blockIndex, found, err := tree.TimestampLowerBound(fork, genesisTimestamp+4*blockSpacing)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(4), blockIndex)
	blockIndex, found, err = tree.TimestampLowerBound(mainLeaf, genesisTimestamp+1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(1), blockIndex)
	_, found, err = tree.TimestampLowerBound(mainLeaf, genesisTimestamp+6*blockSpacing)
	require.NoError(t, err)
	require.False(t, found)

	blockHashes, err := tree.BlockHashesByTimestamps(mainLeaf, genesisTimestamp+blockSpacing, 2*blockSpacing)
	require.NoError(t, err)
	require.Equal(t, mainHashes[1:3], blockHashes)

	timestamps, err := tree.LastTimestamps(fork, 3, 5, true)
	require.NoError(t, err)
	require.Equal(t, []uint64{
		genesisTimestamp + 3*blockSpacing + 1,
		genesisTimestamp + 4*blockSpacing + 1,
		genesisTimestamp + 5*blockSpacing + 1,
	}, timestamps)
	timestamps, err = tree.LastTimestamps(fork, 10, 2, false)
	require.NoError(t, err)
	require.Equal(t, []uint64{genesisTimestamp + blockSpacing, genesisTimestamp + 2*blockSpacing}, timestamps)

	difficulties, err := tree.LastCumulativeDifficulties(mainLeaf, 2, 4, true)
	require.NoError(t, err)
	require.Equal(t, []uint64{1 + 2 + 3 + 4, 1 + 2 + 3 + 4 + 5}, difficulties)

	var expected []externalapi.DomainHash
	for _, blockIndex := range []uint32{0, 2, 4} {
		info, err := tree.TransactionInfoAt(fork, blockIndex, 0)
		require.NoError(t, err)
		expected = append(expected, info.TransactionHash)
	}
	transactionHashes, err := tree.TransactionHashesByPaymentID(fork, testPaymentID)
	require.NoError(t, err)
	require.Equal(t, expected, transactionHashes)
}

func TestTreeCut(t *testing.T) {
	tree, mainLeaf, fork, _ := buildForkedTree(t)
	root := tree.Root()

	require.NoError(t, tree.Cut(mainLeaf, 4))
	require.Equal(t, 3, tree.Len())
	top, err := tree.TopBlockIndex(mainLeaf)
	require.NoError(t, err)
	require.Equal(t, uint32(3), top)

	require.NoError(t, tree.Cut(fork, 3))
	require.Equal(t, 2, tree.Len())
	children, err := tree.Children(root)
	require.NoError(t, err)
	require.Equal(t, []SegmentID{mainLeaf}, children)
	_, err = tree.TopBlockIndex(fork)
	require.Error(t, err, "removed segments must be unknown")

	require.NoError(t, tree.Cut(mainLeaf, 1))
	require.Equal(t, 1, tree.Len())
	top, err = tree.TopBlockIndex(root)
	require.NoError(t, err)
	require.Equal(t, uint32(0), top)

	require.Error(t, tree.Cut(root, 0))
	require.Error(t, tree.RemoveSubtree(root))
}

func TestTreeMergeIntoParent(t *testing.T) {
	expected, expectedRoot := newTestTree(t)
	pushTestBlocks(t, expected, expectedRoot, 0, 8)

	tree, root := newTestTree(t)
	pushTestBlocks(t, tree, root, 0, 3)
	child, err := tree.NewChild(root)
	require.NoError(t, err)
	pushTestBlocks(t, tree, child, 0, 5)
	upper, err := tree.Split(child, 5)
	require.NoError(t, err)
	requireSameChain(t, expected, expectedRoot, tree, upper)

	err = tree.MergeIntoParent(child)
	require.NoError(t, err)
	path, err := tree.Path(upper)
	require.NoError(t, err)
	require.Equal(t, []SegmentID{upper, root}, path)

	require.NoError(t, tree.MergeIntoParent(upper))
	require.Equal(t, 1, tree.Len())
	requireSameChain(t, expected, expectedRoot, tree, root)

	require.Error(t, tree.MergeIntoParent(root))
}

func TestTreeMergeRequiresSingleChild(t *testing.T) {
	tree, _, fork, _ := buildForkedTree(t)
	require.Error(t, tree.MergeIntoParent(fork))
}
