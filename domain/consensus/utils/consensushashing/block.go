package consensushashing

import (
	"bytes"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/pkg/errors"
)

// BlockHashingBlob returns the bytes a block's identity commits to: the
// header, the tree hash of the miner transaction and body transaction
// hashes, and the number of transactions.
func BlockHashingBlob(block *externalapi.DomainBlock) []byte {
	buf := &bytes.Buffer{}
	err := serialization.SerializeBlockHeader(buf, block)
	if err != nil {
		// Writes into a bytes.Buffer never fail, so this can only be an
		// unknown element type.
		panic(errors.Wrap(err, "this should never happen. Header serialization should never fail"))
	}

	transactionHashes := make([]externalapi.DomainHash, 0, len(block.TransactionHashes)+1)
	transactionHashes = append(transactionHashes, TransactionHash(block.BaseTransaction))
	transactionHashes = append(transactionHashes, block.TransactionHashes...)
	treeHash := hashes.TreeHash(transactionHashes)
	buf.Write(treeHash[:])

	err = serialization.WriteVarInt(buf, uint64(len(transactionHashes)))
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. bytes.Buffer writes should never fail"))
	}
	return buf.Bytes()
}

// BlockHash returns the given block's hash
func BlockHash(block *externalapi.DomainBlock) externalapi.DomainHash {
	blob := BlockHashingBlob(block)
	writer := hashes.NewHashWriter()
	lengthPrefix := &bytes.Buffer{}
	_ = serialization.WriteVarInt(lengthPrefix, uint64(len(blob)))
	writer.InfallibleWrite(lengthPrefix.Bytes())
	writer.InfallibleWrite(blob)
	return writer.Finalize()
}

// ProofOfWorkBlob returns the blob a miner hashes. A raw merge mining tag
// wraps the hashing blob in its prefix and postfix hashes.
func ProofOfWorkBlob(block *externalapi.DomainBlock) []byte {
	blob := BlockHashingBlob(block)
	tag, ok := block.MergeMiningTag.(*externalapi.RawMergeMiningTag)
	if !ok {
		return blob
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(blob)+tag.Size()*externalapi.DomainHashSize))
	for _, hash := range tag.Prefix {
		buf.Write(hash[:])
	}
	buf.Write(blob)
	for _, hash := range tag.Postfix {
		buf.Write(hash[:])
	}
	return buf.Bytes()
}
