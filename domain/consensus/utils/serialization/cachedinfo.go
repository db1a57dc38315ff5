package serialization

import (
	"bytes"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// CachedBlockInfoToBytes serializes a CachedBlockInfo for storage.
func CachedBlockInfoToBytes(info *externalapi.CachedBlockInfo) []byte {
	buf := &bytes.Buffer{}
	// Writes into a bytes.Buffer don't fail.
	_ = WriteElement(buf, info.BlockHash)
	for _, value := range []uint64{uint64(info.Version), uint64(info.UpgradeVote), info.Timestamp, info.BlobSize,
		info.CumulativeDifficulty, info.AlreadyGeneratedCoins, info.AlreadyGeneratedTransactions} {

		_ = WriteVarInt(buf, value)
	}
	return buf.Bytes()
}

// CachedBlockInfoFromBytes deserializes a CachedBlockInfo.
func CachedBlockInfoFromBytes(data []byte) (*externalapi.CachedBlockInfo, error) {
	reader := bytes.NewReader(data)
	info := &externalapi.CachedBlockInfo{}
	err := ReadElement(reader, &info.BlockHash)
	if err != nil {
		return nil, err
	}
	info.Version, err = ReadVarIntUint8(reader)
	if err != nil {
		return nil, err
	}
	info.UpgradeVote, err = ReadVarIntUint8(reader)
	if err != nil {
		return nil, err
	}
	for _, field := range []*uint64{&info.Timestamp, &info.BlobSize, &info.CumulativeDifficulty,
		&info.AlreadyGeneratedCoins, &info.AlreadyGeneratedTransactions} {

		*field, err = ReadVarInt(reader)
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

// CachedTransactionInfoToBytes serializes a CachedTransactionInfo for
// storage.
func CachedTransactionInfoToBytes(info *externalapi.CachedTransactionInfo) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := WriteVarInt(buf, uint64(info.BlockIndex))
	if err != nil {
		return nil, err
	}
	err = WriteElements(buf, info.TransactionIndex, info.TransactionHash)
	if err != nil {
		return nil, err
	}
	err = WriteVarInt(buf, info.UnlockTime)
	if err != nil {
		return nil, err
	}
	err = WriteVarInt(buf, uint64(len(info.Outputs)))
	if err != nil {
		return nil, err
	}
	for _, output := range info.Outputs {
		err = serializeOutput(buf, output)
		if err != nil {
			return nil, err
		}
	}
	err = WriteVarInt(buf, uint64(len(info.GlobalIndexes)))
	if err != nil {
		return nil, err
	}
	for _, globalIndex := range info.GlobalIndexes {
		err = WriteVarInt(buf, uint64(globalIndex))
		if err != nil {
			return nil, err
		}
	}
	err = WriteElement(buf, info.IsDeterministicallyGenerated)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CachedTransactionInfoFromBytes deserializes a CachedTransactionInfo.
func CachedTransactionInfoFromBytes(data []byte) (*externalapi.CachedTransactionInfo, error) {
	reader := bytes.NewReader(data)
	info := &externalapi.CachedTransactionInfo{}

	var err error
	info.BlockIndex, err = ReadVarIntUint32(reader)
	if err != nil {
		return nil, err
	}
	err = ReadElements(reader, &info.TransactionIndex, &info.TransactionHash)
	if err != nil {
		return nil, err
	}
	info.UnlockTime, err = ReadVarInt(reader)
	if err != nil {
		return nil, err
	}

	outputCount, err := ReadCount(reader)
	if err != nil {
		return nil, err
	}
	info.Outputs = make([]*externalapi.DomainTransactionOutput, outputCount)
	for i := range info.Outputs {
		info.Outputs[i], err = deserializeOutput(reader)
		if err != nil {
			return nil, err
		}
	}

	globalIndexCount, err := ReadCount(reader)
	if err != nil {
		return nil, err
	}
	info.GlobalIndexes = make([]uint32, globalIndexCount)
	for i := range info.GlobalIndexes {
		info.GlobalIndexes[i], err = ReadVarIntUint32(reader)
		if err != nil {
			return nil, err
		}
	}

	err = ReadElement(reader, &info.IsDeterministicallyGenerated)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// RawBlockToBytes serializes a RawBlock for storage.
func RawBlockToBytes(rawBlock *externalapi.RawBlock) []byte {
	buf := &bytes.Buffer{}
	// Writes into a bytes.Buffer don't fail.
	_ = WriteBytes(buf, rawBlock.Block)
	_ = WriteVarInt(buf, uint64(len(rawBlock.Transactions)))
	for _, transaction := range rawBlock.Transactions {
		_ = WriteBytes(buf, transaction)
	}
	return buf.Bytes()
}

// RawBlockFromBytes deserializes a RawBlock.
func RawBlockFromBytes(data []byte) (*externalapi.RawBlock, error) {
	reader := bytes.NewReader(data)
	rawBlock := &externalapi.RawBlock{}

	var err error
	rawBlock.Block, err = ReadBytes(reader)
	if err != nil {
		return nil, err
	}
	transactionCount, err := ReadCount(reader)
	if err != nil {
		return nil, err
	}
	rawBlock.Transactions = make([][]byte, transactionCount)
	for i := range rawBlock.Transactions {
		rawBlock.Transactions[i], err = ReadBytes(reader)
		if err != nil {
			return nil, err
		}
	}
	return rawBlock, nil
}

// PackedOutIndexSize is the size of a serialized PackedOutIndex.
const PackedOutIndexSize = 8

// PackedOutIndexToBytes serializes a PackedOutIndex into a fixed size
// record.
func PackedOutIndexToBytes(index externalapi.PackedOutIndex) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, PackedOutIndexSize))
	_ = WriteElements(buf, index.BlockIndex, index.TransactionIndex, index.OutputIndex)
	return buf.Bytes()
}

// PackedOutIndexFromBytes deserializes a PackedOutIndex.
func PackedOutIndexFromBytes(data []byte) (externalapi.PackedOutIndex, error) {
	index := externalapi.PackedOutIndex{}
	if len(data) != PackedOutIndexSize {
		return index, errors.Wrapf(errMalformed, "packed out index of %d bytes", len(data))
	}
	err := ReadElements(bytes.NewReader(data), &index.BlockIndex, &index.TransactionIndex, &index.OutputIndex)
	return index, err
}

// KeyImagesToBytes serializes a list of key images.
func KeyImagesToBytes(keyImages []externalapi.KeyImage) []byte {
	buf := &bytes.Buffer{}
	_ = WriteVarInt(buf, uint64(len(keyImages)))
	for _, keyImage := range keyImages {
		_ = WriteElement(buf, keyImage)
	}
	return buf.Bytes()
}

// KeyImagesFromBytes deserializes a list of key images.
func KeyImagesFromBytes(data []byte) ([]externalapi.KeyImage, error) {
	reader := bytes.NewReader(data)
	count, err := ReadCount(reader)
	if err != nil {
		return nil, err
	}
	keyImages := make([]externalapi.KeyImage, count)
	for i := range keyImages {
		err = ReadElement(reader, &keyImages[i])
		if err != nil {
			return nil, err
		}
	}
	return keyImages, nil
}

// HashesToBytes serializes a list of hashes.
func HashesToBytes(hashes []externalapi.DomainHash) []byte {
	buf := &bytes.Buffer{}
	_ = writeHashes(buf, hashes)
	return buf.Bytes()
}

// HashesFromBytes deserializes a list of hashes.
func HashesFromBytes(data []byte) ([]externalapi.DomainHash, error) {
	return readHashes(bytes.NewReader(data))
}
