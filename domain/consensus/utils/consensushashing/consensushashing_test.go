package consensushashing

import (
	"bytes"
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
)

func testBlock() *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Version:           1,
		Timestamp:         1000,
		PreviousBlockHash: externalapi.DomainHash{1},
		BaseTransaction: &externalapi.DomainTransaction{
			Version:    1,
			UnlockTime: 11,
			Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: 1}},
			Outputs: []*externalapi.DomainTransactionOutput{
				{Amount: 70, Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{2}}},
			},
			Extra: []byte{1},
		},
		TransactionHashes: []externalapi.DomainHash{{3}},
	}
}

func TestTransactionHash(t *testing.T) {
	tx := testBlock().BaseTransaction
	blob, err := serialization.TransactionToBytes(tx)
	if err != nil {
		t.Fatalf("TestTransactionHash: %s", err)
	}
	if TransactionHash(tx) != hashes.Keccak(blob) {
		t.Fatalf("TestTransactionHash: hash is not the keccak of the blob")
	}
	if TransactionBlobSize(tx) != uint64(len(blob)) {
		t.Fatalf("TestTransactionHash: unexpected blob size %d", TransactionBlobSize(tx))
	}

	signed := tx.Clone()
	signed.Signatures = [][]externalapi.Signature{{{9}}}
	if TransactionPrefixHash(signed) != TransactionPrefixHash(tx) {
		t.Fatalf("TestTransactionHash: signatures changed the prefix hash")
	}
	if TransactionHash(signed) == TransactionHash(tx) {
		t.Fatalf("TestTransactionHash: signatures did not change the transaction hash")
	}
}

func TestBlockHash(t *testing.T) {
	block := testBlock()
	hash := BlockHash(block)

	mutations := []func(block *externalapi.DomainBlock){
		func(block *externalapi.DomainBlock) { block.Nonce++ },
		func(block *externalapi.DomainBlock) { block.Timestamp++ },
		func(block *externalapi.DomainBlock) { block.TransactionHashes[0][0]++ },
		func(block *externalapi.DomainBlock) { block.BaseTransaction.Outputs[0].Amount++ },
		func(block *externalapi.DomainBlock) {
			block.TransactionHashes = append(block.TransactionHashes, externalapi.DomainHash{4})
		},
	}
	for i, mutate := range mutations {
		mutated := testBlock()
		mutate(mutated)
		if BlockHash(mutated) == hash {
			t.Fatalf("TestBlockHash: mutation %d did not change the block hash", i)
		}
	}

	if BlockHash(testBlock()) != hash {
		t.Fatalf("TestBlockHash: block hash is not deterministic")
	}
}

func TestProofOfWorkBlob(t *testing.T) {
	block := testBlock()
	if !bytes.Equal(ProofOfWorkBlob(block), BlockHashingBlob(block)) {
		t.Fatalf("TestProofOfWorkBlob: a block without merge mining tag should hash its hashing blob")
	}

	block.MergeMiningTag = &externalapi.RawMergeMiningTag{
		Prefix:  []externalapi.DomainHash{{7}},
		Postfix: []externalapi.DomainHash{{8}},
	}
	blob := ProofOfWorkBlob(block)
	hashingBlob := BlockHashingBlob(block)
	if len(blob) != len(hashingBlob)+2*externalapi.DomainHashSize {
		t.Fatalf("TestProofOfWorkBlob: unexpected blob length %d", len(blob))
	}
	if blob[0] != 7 || blob[len(blob)-externalapi.DomainHashSize] != 8 {
		t.Fatalf("TestProofOfWorkBlob: the tag hashes do not wrap the hashing blob")
	}
}
