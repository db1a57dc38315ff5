package serialization

import (
	"bytes"
	"io"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const (
	noMergeMiningTag     = 0x00
	rawMergeMiningTag    = 0x01
	prunedMergeMiningTag = 0x02
)

// SerializeBlockHeader writes the fields of block that are hashed directly,
// ahead of the transactions merkle root.
func SerializeBlockHeader(w io.Writer, block *externalapi.DomainBlock) error {
	err := WriteVarInt(w, uint64(block.Version))
	if err != nil {
		return err
	}
	err = WriteVarInt(w, uint64(block.UpgradeVote))
	if err != nil {
		return err
	}
	err = WriteVarInt(w, block.Timestamp)
	if err != nil {
		return err
	}
	err = WriteElements(w, block.PreviousBlockHash, block.Nonce)
	if err != nil {
		return err
	}
	err = serializeMergeMiningTag(w, block.MergeMiningTag)
	if err != nil {
		return err
	}
	return serializeStaticRewardHash(w, block.StaticRewardHash)
}

func serializeMergeMiningTag(w io.Writer, tag externalapi.MergeMiningTag) error {
	switch typedTag := tag.(type) {
	case nil:
		return WriteElement(w, uint8(noMergeMiningTag))

	case *externalapi.RawMergeMiningTag:
		err := WriteElement(w, uint8(rawMergeMiningTag))
		if err != nil {
			return err
		}
		err = writeHashes(w, typedTag.Prefix)
		if err != nil {
			return err
		}
		return writeHashes(w, typedTag.Postfix)

	case *externalapi.PrunedMergeMiningTag:
		err := WriteElements(w, uint8(prunedMergeMiningTag), typedTag.ProofOfWorkPrefix)
		if err != nil {
			return err
		}
		return WriteVarInt(w, typedTag.BinarySize)
	}
	return errors.Wrapf(errNoEncodingForType, "unknown merge mining tag type %T", tag)
}

func serializeStaticRewardHash(w io.Writer, staticRewardHash *uint16) error {
	if staticRewardHash == nil {
		return WriteElement(w, false)
	}
	return WriteElements(w, true, *staticRewardHash)
}

// SerializeBlock writes the wire form of block to w.
func SerializeBlock(w io.Writer, block *externalapi.DomainBlock) error {
	if block.BaseTransaction == nil {
		return errors.New("block has no base transaction")
	}
	err := SerializeBlockHeader(w, block)
	if err != nil {
		return err
	}
	err = SerializeTransaction(w, block.BaseTransaction)
	if err != nil {
		return err
	}
	return writeHashes(w, block.TransactionHashes)
}

// DeserializeBlock reads a block written by SerializeBlock.
func DeserializeBlock(r io.Reader) (*externalapi.DomainBlock, error) {
	block := &externalapi.DomainBlock{}

	var err error
	block.Version, err = ReadVarIntUint8(r)
	if err != nil {
		return nil, err
	}
	block.UpgradeVote, err = ReadVarIntUint8(r)
	if err != nil {
		return nil, err
	}
	block.Timestamp, err = ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	err = ReadElements(r, &block.PreviousBlockHash, &block.Nonce)
	if err != nil {
		return nil, err
	}
	block.MergeMiningTag, err = deserializeMergeMiningTag(r)
	if err != nil {
		return nil, err
	}

	var hasStaticReward bool
	err = ReadElement(r, &hasStaticReward)
	if err != nil {
		return nil, err
	}
	if hasStaticReward {
		var staticRewardHash uint16
		err = ReadElement(r, &staticRewardHash)
		if err != nil {
			return nil, err
		}
		block.StaticRewardHash = &staticRewardHash
	}

	block.BaseTransaction, err = DeserializeTransaction(r)
	if err != nil {
		return nil, err
	}
	block.TransactionHashes, err = readHashes(r)
	if err != nil {
		return nil, err
	}
	return block, nil
}

func deserializeMergeMiningTag(r io.Reader) (externalapi.MergeMiningTag, error) {
	var tag uint8
	err := ReadElement(r, &tag)
	if err != nil {
		return nil, err
	}

	switch tag {
	case noMergeMiningTag:
		return nil, nil

	case rawMergeMiningTag:
		prefix, err := readHashes(r)
		if err != nil {
			return nil, err
		}
		postfix, err := readHashes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.RawMergeMiningTag{Prefix: prefix, Postfix: postfix}, nil

	case prunedMergeMiningTag:
		prunedTag := &externalapi.PrunedMergeMiningTag{}
		err = ReadElement(r, &prunedTag.ProofOfWorkPrefix)
		if err != nil {
			return nil, err
		}
		prunedTag.BinarySize, err = ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		return prunedTag, nil
	}
	return nil, errors.Wrapf(errMalformed, "unknown merge mining tag %02x", tag)
}

func writeHashes(w io.Writer, hashes []externalapi.DomainHash) error {
	err := WriteVarInt(w, uint64(len(hashes)))
	if err != nil {
		return err
	}
	for _, hash := range hashes {
		err = WriteElement(w, hash)
		if err != nil {
			return err
		}
	}
	return nil
}

func readHashes(r io.Reader) ([]externalapi.DomainHash, error) {
	count, err := ReadCount(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	hashes := make([]externalapi.DomainHash, count)
	for i := range hashes {
		err = ReadElement(r, &hashes[i])
		if err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

// BlockToBytes returns the wire form of block.
func BlockToBytes(block *externalapi.DomainBlock) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := SerializeBlock(buf, block)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BlockFromBytes parses a block blob, rejecting trailing bytes.
func BlockFromBytes(blob []byte) (*externalapi.DomainBlock, error) {
	reader := bytes.NewReader(blob)
	block, err := DeserializeBlock(reader)
	if err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.Wrapf(errMalformed, "%d trailing bytes after block", reader.Len())
	}
	return block, nil
}
