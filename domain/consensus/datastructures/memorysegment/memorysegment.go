package memorysegment

import (
	"sort"

	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/multiset"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/pkg/errors"
)

// outputGlobalIndexes are the outputs of one amount a segment created.
// The output at position i has global index startIndex+i.
type outputGlobalIndexes struct {
	startIndex uint32
	outputs    []externalapi.PackedOutIndex
}

type memoryBlock struct {
	info           *externalapi.CachedBlockInfo
	rawBlock       *externalapi.RawBlock
	transactions   []externalapi.DomainHash
	paymentIDs     []*externalapi.DomainHash
	spentKeyImages []externalapi.KeyImage
}

// memorySegment keeps all the data of a segment in memory. Transactions
// and payment ids are kept in insertion order, which is block order, so
// a split only ever moves a suffix of them.
type memorySegment struct {
	startIndex uint32
	blocks     []*memoryBlock

	blockIndexByHash map[externalapi.DomainHash]uint32
	spentKeyImages   map[externalapi.KeyImage]uint32
	transactions     *orderedmap.OrderedMap[externalapi.DomainHash, *externalapi.CachedTransactionInfo]
	paymentIDs       map[externalapi.DomainHash][]externalapi.DomainHash
	keyOutputs       map[uint64]*outputGlobalIndexes

	keyImageCommitment model.Multiset
}

// New instantiates a new in-memory SegmentStorage starting at startIndex
func New(startIndex uint32) model.SegmentStorage {
	return &memorySegment{
		startIndex:         startIndex,
		blockIndexByHash:   make(map[externalapi.DomainHash]uint32),
		spentKeyImages:     make(map[externalapi.KeyImage]uint32),
		transactions:       orderedmap.NewOrderedMap[externalapi.DomainHash, *externalapi.CachedTransactionInfo](),
		paymentIDs:         make(map[externalapi.DomainHash][]externalapi.DomainHash),
		keyOutputs:         make(map[uint64]*outputGlobalIndexes),
		keyImageCommitment: multiset.New(),
	}
}

func (ms *memorySegment) StartIndex() uint32 {
	return ms.startIndex
}

func (ms *memorySegment) BlockCount() uint32 {
	return uint32(len(ms.blocks))
}

func (ms *memorySegment) PushBlock(push *model.BlockPush, previous *externalapi.CachedBlockInfo,
	parentOutputs model.OutputCounter) error {

	blockIndex := ms.startIndex + ms.BlockCount()
	if _, exists := ms.blockIndexByHash[push.BlockHash]; exists {
		return errors.Errorf("block %s is already in the segment", push.BlockHash)
	}

	block := &memoryBlock{
		info:           push.CachedBlockInfo(previous),
		rawBlock:       push.RawBlock,
		transactions:   make([]externalapi.DomainHash, len(push.Transactions)),
		paymentIDs:     make([]*externalapi.DomainHash, len(push.Transactions)),
		spentKeyImages: push.SpentKeyImages,
	}

	for transactionIndex, transaction := range push.Transactions {
		globalIndexes := make([]uint32, len(transaction.Outputs))
		for outputIndex, output := range transaction.Outputs {
			bucket, ok := ms.keyOutputs[output.Amount]
			if !ok {
				startIndex, err := parentOutputs(output.Amount)
				if err != nil {
					return err
				}
				bucket = &outputGlobalIndexes{startIndex: startIndex}
				ms.keyOutputs[output.Amount] = bucket
			}
			globalIndexes[outputIndex] = bucket.startIndex + uint32(len(bucket.outputs))
			bucket.outputs = append(bucket.outputs, externalapi.PackedOutIndex{
				BlockIndex:       blockIndex,
				TransactionIndex: uint16(transactionIndex),
				OutputIndex:      uint16(outputIndex),
			})
		}

		ms.transactions.Set(transaction.Hash, &externalapi.CachedTransactionInfo{
			BlockIndex:                   blockIndex,
			TransactionIndex:             uint16(transactionIndex),
			TransactionHash:              transaction.Hash,
			UnlockTime:                   transaction.UnlockTime,
			Outputs:                      transaction.Outputs,
			GlobalIndexes:                globalIndexes,
			IsDeterministicallyGenerated: transaction.IsDeterministicallyGenerated,
		})
		block.transactions[transactionIndex] = transaction.Hash

		if transaction.PaymentID != nil {
			paymentID := *transaction.PaymentID
			ms.paymentIDs[paymentID] = append(ms.paymentIDs[paymentID], transaction.Hash)
			block.paymentIDs[transactionIndex] = &paymentID
		}
	}

	for _, keyImage := range push.SpentKeyImages {
		ms.spentKeyImages[keyImage] = blockIndex
		ms.keyImageCommitment.Add(keyImage[:])
	}

	ms.blockIndexByHash[push.BlockHash] = blockIndex
	ms.blocks = append(ms.blocks, block)
	return nil
}

func (ms *memorySegment) Split(at uint32, upperStorage model.SegmentStorage) error {
	upper, ok := upperStorage.(*memorySegment)
	if !ok {
		return errors.Errorf("cannot split a memory segment into %T", upperStorage)
	}
	if at <= ms.startIndex || at >= ms.startIndex+ms.BlockCount() {
		return errors.Errorf("split index %d is outside of (%d, %d)", at, ms.startIndex, ms.startIndex+ms.BlockCount())
	}
	if upper.startIndex != at || upper.BlockCount() != 0 {
		return errors.Errorf("split target must be empty and start at %d", at)
	}

	localAt := at - ms.startIndex
	upper.blocks = append(upper.blocks, ms.blocks[localAt:]...)
	ms.blocks = ms.blocks[:localAt:localAt]

	for i, block := range upper.blocks {
		blockIndex := at + uint32(i)
		delete(ms.blockIndexByHash, block.info.BlockHash)
		upper.blockIndexByHash[block.info.BlockHash] = blockIndex
		for _, keyImage := range block.spentKeyImages {
			delete(ms.spentKeyImages, keyImage)
			ms.keyImageCommitment.Remove(keyImage[:])
			upper.spentKeyImages[keyImage] = blockIndex
			upper.keyImageCommitment.Add(keyImage[:])
		}
		for transactionIndex, paymentID := range block.paymentIDs {
			if paymentID == nil {
				continue
			}
			// Transactions of moved blocks are the last ones recorded for
			// their payment id.
			lowerHashes := ms.paymentIDs[*paymentID]
			if len(lowerHashes) == 1 {
				delete(ms.paymentIDs, *paymentID)
			} else {
				ms.paymentIDs[*paymentID] = lowerHashes[:len(lowerHashes)-1]
			}
			upper.paymentIDs[*paymentID] = append(upper.paymentIDs[*paymentID], block.transactions[transactionIndex])
		}
	}

	moveSuffix(ms.transactions, upper.transactions, func(info *externalapi.CachedTransactionInfo) bool {
		return info.BlockIndex >= at
	})

	for amount, bucket := range ms.keyOutputs {
		lowerCount := sort.Search(len(bucket.outputs), func(i int) bool {
			return bucket.outputs[i].BlockIndex >= at
		})
		if lowerCount == len(bucket.outputs) {
			continue
		}
		moved := make([]externalapi.PackedOutIndex, len(bucket.outputs)-lowerCount)
		copy(moved, bucket.outputs[lowerCount:])
		upper.keyOutputs[amount] = &outputGlobalIndexes{
			startIndex: bucket.startIndex + uint32(lowerCount),
			outputs:    moved,
		}
		if lowerCount == 0 {
			delete(ms.keyOutputs, amount)
			continue
		}
		bucket.outputs = bucket.outputs[:lowerCount:lowerCount]
	}

	log.Debugf("Split memory segment [%d, %d) at %d", ms.startIndex, at+upper.BlockCount(), at)
	return nil
}

// moveSuffix moves the entries at the back of from for which isMoved holds
// to the back of to, keeping their order.
func moveSuffix[K comparable, V any](from, to *orderedmap.OrderedMap[K, V], isMoved func(V) bool) {
	var first *orderedmap.Element[K, V]
	for element := from.Back(); element != nil && isMoved(element.Value); element = element.Prev() {
		first = element
	}
	var keys []K
	for element := first; element != nil; element = element.Next() {
		to.Set(element.Key, element.Value)
		keys = append(keys, element.Key)
	}
	for _, key := range keys {
		from.Delete(key)
	}
}

func (ms *memorySegment) Delete() error {
	ms.blocks = nil
	ms.blockIndexByHash = make(map[externalapi.DomainHash]uint32)
	ms.spentKeyImages = make(map[externalapi.KeyImage]uint32)
	ms.transactions = orderedmap.NewOrderedMap[externalapi.DomainHash, *externalapi.CachedTransactionInfo]()
	ms.paymentIDs = make(map[externalapi.DomainHash][]externalapi.DomainHash)
	ms.keyOutputs = make(map[uint64]*outputGlobalIndexes)
	ms.keyImageCommitment = multiset.New()
	return nil
}

func (ms *memorySegment) block(blockIndex uint32) (*memoryBlock, error) {
	if blockIndex < ms.startIndex || blockIndex-ms.startIndex >= ms.BlockCount() {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d is not in segment [%d, %d)",
			blockIndex, ms.startIndex, ms.startIndex+ms.BlockCount())
	}
	return ms.blocks[blockIndex-ms.startIndex], nil
}

func (ms *memorySegment) BlockInfo(blockIndex uint32) (*externalapi.CachedBlockInfo, error) {
	block, err := ms.block(blockIndex)
	if err != nil {
		return nil, err
	}
	return block.info, nil
}

func (ms *memorySegment) BlockIndexByHash(blockHash externalapi.DomainHash) (uint32, bool, error) {
	blockIndex, ok := ms.blockIndexByHash[blockHash]
	return blockIndex, ok, nil
}

func (ms *memorySegment) RawBlock(blockIndex uint32) (*externalapi.RawBlock, error) {
	block, err := ms.block(blockIndex)
	if err != nil {
		return nil, err
	}
	return block.rawBlock, nil
}

func (ms *memorySegment) KeyImageSpentAt(keyImage externalapi.KeyImage) (uint32, bool, error) {
	blockIndex, ok := ms.spentKeyImages[keyImage]
	return blockIndex, ok, nil
}

func (ms *memorySegment) SpentKeyImagesAt(blockIndex uint32) ([]externalapi.KeyImage, error) {
	block, err := ms.block(blockIndex)
	if err != nil {
		return nil, err
	}
	return block.spentKeyImages, nil
}

func (ms *memorySegment) TransactionInfo(transactionHash externalapi.DomainHash) (*externalapi.CachedTransactionInfo, bool, error) {
	info, ok := ms.transactions.Get(transactionHash)
	return info, ok, nil
}

func (ms *memorySegment) TransactionInfoAt(blockIndex uint32, transactionIndex uint16) (*externalapi.CachedTransactionInfo, error) {
	block, err := ms.block(blockIndex)
	if err != nil {
		return nil, err
	}
	if int(transactionIndex) >= len(block.transactions) {
		return nil, errors.Wrapf(database.ErrNotFound, "block %d has no transaction %d", blockIndex, transactionIndex)
	}
	info, _ := ms.transactions.Get(block.transactions[transactionIndex])
	return info, nil
}

func (ms *memorySegment) TransactionCount() (uint64, error) {
	return uint64(ms.transactions.Len()), nil
}

func (ms *memorySegment) KeyOutputs(amount uint64) (uint32, uint32, error) {
	bucket, ok := ms.keyOutputs[amount]
	if !ok {
		return 0, 0, nil
	}
	return bucket.startIndex, uint32(len(bucket.outputs)), nil
}

func (ms *memorySegment) KeyOutputAt(amount uint64, globalIndex uint32) (externalapi.PackedOutIndex, error) {
	bucket, ok := ms.keyOutputs[amount]
	if !ok || globalIndex < bucket.startIndex || globalIndex-bucket.startIndex >= uint32(len(bucket.outputs)) {
		return externalapi.PackedOutIndex{}, errors.Wrapf(database.ErrNotFound,
			"output %d of amount %d is not in the segment", globalIndex, amount)
	}
	return bucket.outputs[globalIndex-bucket.startIndex], nil
}

func (ms *memorySegment) KeyOutputsUpTo(amount uint64, blockIndex uint32) (uint32, error) {
	bucket, ok := ms.keyOutputs[amount]
	if !ok {
		return 0, nil
	}
	count := sort.Search(len(bucket.outputs), func(i int) bool {
		return bucket.outputs[i].BlockIndex > blockIndex
	})
	return uint32(count), nil
}

func (ms *memorySegment) PaymentIDTransactions(paymentID externalapi.DomainHash) ([]externalapi.DomainHash, error) {
	transactionHashes := ms.paymentIDs[paymentID]
	result := make([]externalapi.DomainHash, len(transactionHashes))
	copy(result, transactionHashes)
	return result, nil
}

func (ms *memorySegment) TimestampLowerBound(timestamp uint64) (uint32, error) {
	localIndex := sort.Search(len(ms.blocks), func(i int) bool {
		return ms.blocks[i].info.Timestamp >= timestamp
	})
	return ms.startIndex + uint32(localIndex), nil
}

func (ms *memorySegment) BlockHashesByTimestampRange(begin, end uint64) ([]externalapi.DomainHash, error) {
	var matching []*memoryBlock
	for _, block := range ms.blocks {
		if block.info.Timestamp >= begin && block.info.Timestamp <= end {
			matching = append(matching, block)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].info.Timestamp < matching[j].info.Timestamp
	})

	blockHashes := make([]externalapi.DomainHash, len(matching))
	for i, block := range matching {
		blockHashes[i] = block.info.BlockHash
	}
	return blockHashes, nil
}

func (ms *memorySegment) KeyImageCommitment() (model.Multiset, error) {
	return ms.keyImageCommitment.Clone(), nil
}
