package persistedsegment

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/infrastructure/db/database"
	"github.com/pkg/errors"
)

var (
	startIndexKeyName         = []byte("start-index")
	blockCountKeyName         = []byte("block-count")
	transactionCountKeyName   = []byte("transaction-count")
	keyImageCommitmentKeyName = []byte("key-image-commitment")

	blockInfosBucketName         = []byte("block-infos")
	blockHashesBucketName        = []byte("block-hashes")
	rawBlocksBucketName          = []byte("raw-blocks")
	spentKeyImagesBucketName     = []byte("spent-key-images")
	blockKeyImagesBucketName     = []byte("block-key-images")
	transactionsBucketName       = []byte("transactions")
	blockTransactionsBucketName  = []byte("block-transactions")
	outputCountsBucketName       = []byte("output-counts")
	outputsBucketName            = []byte("outputs")
	paymentIDsBucketName         = []byte("payment-ids")
	transactionPaymentBucketName = []byte("transaction-payment-ids")
	midnightsBucketName          = []byte("midnights")
)

// segmentKeys holds the database keys of one segment. Every segment lives
// in its own bucket so deleting a segment is a prefix deletion.
type segmentKeys struct {
	bucket *database.Bucket

	startIndex         *database.Key
	blockCount         *database.Key
	transactionCount   *database.Key
	keyImageCommitment *database.Key

	blockInfos         *database.Bucket
	blockHashes        *database.Bucket
	rawBlocks          *database.Bucket
	spentKeyImages     *database.Bucket
	blockKeyImages     *database.Bucket
	transactions       *database.Bucket
	blockTransactions  *database.Bucket
	outputCounts       *database.Bucket
	outputs            *database.Bucket
	paymentIDs         *database.Bucket
	transactionPayment *database.Bucket
	midnights          *database.Bucket
}

func newSegmentKeys(bucket *database.Bucket) *segmentKeys {
	return &segmentKeys{
		bucket: bucket,

		startIndex:         bucket.Key(startIndexKeyName),
		blockCount:         bucket.Key(blockCountKeyName),
		transactionCount:   bucket.Key(transactionCountKeyName),
		keyImageCommitment: bucket.Key(keyImageCommitmentKeyName),

		blockInfos:         bucket.Bucket(blockInfosBucketName),
		blockHashes:        bucket.Bucket(blockHashesBucketName),
		rawBlocks:          bucket.Bucket(rawBlocksBucketName),
		spentKeyImages:     bucket.Bucket(spentKeyImagesBucketName),
		blockKeyImages:     bucket.Bucket(blockKeyImagesBucketName),
		transactions:       bucket.Bucket(transactionsBucketName),
		blockTransactions:  bucket.Bucket(blockTransactionsBucketName),
		outputCounts:       bucket.Bucket(outputCountsBucketName),
		outputs:            bucket.Bucket(outputsBucketName),
		paymentIDs:         bucket.Bucket(paymentIDsBucketName),
		transactionPayment: bucket.Bucket(transactionPaymentBucketName),
		midnights:          bucket.Bucket(midnightsBucketName),
	}
}

// Integers in keys are big endian so that key order is numeric order.

func uint32Bytes(value uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, value)
	return bytes
}

func uint64Bytes(value uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, value)
	return bytes
}

func bytesUint32(bytes []byte) (uint32, error) {
	if len(bytes) != 4 {
		return 0, errors.Errorf("expected 4 bytes, got %d", len(bytes))
	}
	return binary.BigEndian.Uint32(bytes), nil
}

func bytesUint64(bytes []byte) (uint64, error) {
	if len(bytes) != 8 {
		return 0, errors.Errorf("expected 8 bytes, got %d", len(bytes))
	}
	return binary.BigEndian.Uint64(bytes), nil
}

func (k *segmentKeys) blockInfoKey(blockIndex uint32) *database.Key {
	return k.blockInfos.Key(uint32Bytes(blockIndex))
}

func (k *segmentKeys) blockHashKey(blockHash externalapi.DomainHash) *database.Key {
	return k.blockHashes.Key(blockHash.ByteSlice())
}

func (k *segmentKeys) rawBlockKey(blockIndex uint32) *database.Key {
	return k.rawBlocks.Key(uint32Bytes(blockIndex))
}

func (k *segmentKeys) spentKeyImageKey(keyImage externalapi.KeyImage) *database.Key {
	return k.spentKeyImages.Key(keyImage[:])
}

func (k *segmentKeys) blockKeyImagesKey(blockIndex uint32) *database.Key {
	return k.blockKeyImages.Key(uint32Bytes(blockIndex))
}

func (k *segmentKeys) transactionKey(transactionHash externalapi.DomainHash) *database.Key {
	return k.transactions.Key(transactionHash.ByteSlice())
}

func (k *segmentKeys) blockTransactionsKey(blockIndex uint32) *database.Key {
	return k.blockTransactions.Key(uint32Bytes(blockIndex))
}

func (k *segmentKeys) outputCountKey(amount uint64) *database.Key {
	return k.outputCounts.Key(uint64Bytes(amount))
}

func (k *segmentKeys) outputKey(amount uint64, globalIndex uint32) *database.Key {
	return k.outputs.Key(append(uint64Bytes(amount), uint32Bytes(globalIndex)...))
}

// paymentIDKey orders the transactions of a payment id by block and
// transaction index, so a scan of paymentIDBucket returns them in chain
// order.
func (k *segmentKeys) paymentIDKey(paymentID externalapi.DomainHash, blockIndex uint32, transactionIndex uint16) *database.Key {
	return k.paymentIDBucket(paymentID).Key(binary.BigEndian.AppendUint16(uint32Bytes(blockIndex), transactionIndex))
}

func (k *segmentKeys) paymentIDBucket(paymentID externalapi.DomainHash) *database.Bucket {
	return k.paymentIDs.Bucket(paymentID[:])
}

func (k *segmentKeys) transactionPaymentKey(transactionHash externalapi.DomainHash) *database.Key {
	return k.transactionPayment.Key(transactionHash.ByteSlice())
}

func (k *segmentKeys) midnightKey(midnight uint64) *database.Key {
	return k.midnights.Key(uint64Bytes(midnight))
}
