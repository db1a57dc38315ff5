package serialization

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/davecgh/go-spew/spew"
)

func sampleTransaction() *externalapi.DomainTransaction {
	return &externalapi.DomainTransaction{
		Version:    1,
		UnlockTime: 300,
		Inputs: []externalapi.DomainTransactionInput{
			&externalapi.KeyInput{
				Amount:        500,
				OutputIndexes: []uint32{7, 1, 300},
				KeyImage:      externalapi.KeyImage{1, 2, 3},
			},
		},
		Outputs: []*externalapi.DomainTransactionOutput{
			{Amount: 400, Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{9}}},
			{Amount: 90, Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{8}}},
		},
		Extra: BuildTransactionExtra(externalapi.PublicKey{5}, nil),
		Signatures: [][]externalapi.Signature{
			{{1}, {2}, {3}},
		},
	}
}

func sampleBlock() *externalapi.DomainBlock {
	staticRewardHash := uint16(0xBB3D)
	return &externalapi.DomainBlock{
		Version:           2,
		UpgradeVote:       1,
		Nonce:             0xdeadbeef,
		Timestamp:         1600000000,
		PreviousBlockHash: externalapi.DomainHash{0xaa},
		MergeMiningTag: &externalapi.RawMergeMiningTag{
			Prefix:  []externalapi.DomainHash{{1}},
			Postfix: []externalapi.DomainHash{{2}, {3}},
		},
		BaseTransaction: &externalapi.DomainTransaction{
			Version:    1,
			UnlockTime: 20,
			Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: 10}},
			Outputs: []*externalapi.DomainTransactionOutput{
				{Amount: 1000, Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{4}}},
			},
			Extra: BuildTransactionExtra(externalapi.PublicKey{6}, nil),
		},
		StaticRewardHash:  &staticRewardHash,
		TransactionHashes: []externalapi.DomainHash{{0x11}, {0x22}},
	}
}

func TestTransactionSerialization(t *testing.T) {
	tx := sampleTransaction()
	blob, err := TransactionToBytes(tx)
	if err != nil {
		t.Fatalf("TestTransactionSerialization: TransactionToBytes: %s", err)
	}
	decoded, err := TransactionFromBytes(blob)
	if err != nil {
		t.Fatalf("TestTransactionSerialization: TransactionFromBytes: %s", err)
	}
	if !reflect.DeepEqual(tx, decoded) {
		t.Fatalf("TestTransactionSerialization: decoded transaction differs\n got: %s\nwant: %s",
			spew.Sdump(decoded), spew.Sdump(tx))
	}

	prefix, err := TransactionPrefixToBytes(tx)
	if err != nil {
		t.Fatalf("TestTransactionSerialization: TransactionPrefixToBytes: %s", err)
	}
	if !bytes.HasPrefix(blob, prefix) {
		t.Fatalf("TestTransactionSerialization: the prefix is not a prefix of the blob")
	}

	_, err = TransactionFromBytes(append(blob, 0))
	if !IsMalformedError(err) {
		t.Fatalf("TestTransactionSerialization: expected trailing bytes to be malformed, got %v", err)
	}
	for cut := 0; cut < len(blob); cut++ {
		_, err = TransactionFromBytes(blob[:cut])
		if !IsMalformedError(err) {
			t.Fatalf("TestTransactionSerialization: blob cut at %d: expected a malformed error, got %v", cut, err)
		}
	}
}

func TestTransactionUnknownTags(t *testing.T) {
	tx := sampleTransaction()
	blob, err := TransactionPrefixToBytes(tx)
	if err != nil {
		t.Fatalf("TestTransactionUnknownTags: %s", err)
	}
	// version, unlock time (two bytes) and input count precede the first
	// input tag.
	const inputTagOffset = 4
	if blob[inputTagOffset] != keyInputTag {
		t.Fatalf("TestTransactionUnknownTags: unexpected layout %x", blob)
	}
	blob[inputTagOffset] = 0x07
	_, err = DeserializeTransaction(bytes.NewReader(blob))
	if !IsMalformedError(err) {
		t.Fatalf("TestTransactionUnknownTags: expected a malformed error, got %v", err)
	}
}

func TestBlockSerialization(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(block *externalapi.DomainBlock)
	}{
		{name: "raw merge mining tag", mutate: func(*externalapi.DomainBlock) {}},
		{name: "no merge mining tag", mutate: func(block *externalapi.DomainBlock) {
			block.MergeMiningTag = nil
			block.StaticRewardHash = nil
		}},
		{name: "pruned merge mining tag", mutate: func(block *externalapi.DomainBlock) {
			block.MergeMiningTag = &externalapi.PrunedMergeMiningTag{
				ProofOfWorkPrefix: externalapi.DomainHash{0x42},
				BinarySize:        77,
			}
		}},
		{name: "no transactions", mutate: func(block *externalapi.DomainBlock) {
			block.TransactionHashes = nil
		}},
	}

	for _, test := range tests {
		block := sampleBlock()
		test.mutate(block)
		blob, err := BlockToBytes(block)
		if err != nil {
			t.Fatalf("TestBlockSerialization: %s: BlockToBytes: %s", test.name, err)
		}
		decoded, err := BlockFromBytes(blob)
		if err != nil {
			t.Fatalf("TestBlockSerialization: %s: BlockFromBytes: %s", test.name, err)
		}
		if !reflect.DeepEqual(block, decoded) {
			t.Fatalf("TestBlockSerialization: %s: decoded block differs\n got: %s\nwant: %s",
				test.name, spew.Sdump(decoded), spew.Sdump(block))
		}
		if decoded.Index() != 10 {
			t.Fatalf("TestBlockSerialization: %s: unexpected index %d", test.name, decoded.Index())
		}
		_, err = BlockFromBytes(append(blob, 1, 2))
		if !IsMalformedError(err) {
			t.Fatalf("TestBlockSerialization: %s: expected trailing bytes to be malformed, got %v",
				test.name, err)
		}
	}
}

func TestTransactionExtra(t *testing.T) {
	paymentID := externalapi.DomainHash{0x77, 0x66}
	extra := BuildTransactionExtra(externalapi.PublicKey{3}, &paymentID)
	parsed, err := ParseTransactionExtra(extra)
	if err != nil {
		t.Fatalf("TestTransactionExtra: %s", err)
	}
	if parsed.PublicKey == nil || *parsed.PublicKey != (externalapi.PublicKey{3}) {
		t.Fatalf("TestTransactionExtra: unexpected public key %v", parsed.PublicKey)
	}
	if parsed.PaymentID == nil || *parsed.PaymentID != paymentID {
		t.Fatalf("TestTransactionExtra: unexpected payment id %v", parsed.PaymentID)
	}

	withPadding := append(append([]byte(nil), extra...), extraPaddingTag, 0, 0)
	_, err = ParseTransactionExtra(withPadding)
	if err != nil {
		t.Fatalf("TestTransactionExtra: zero padding should parse: %s", err)
	}

	malformed := [][]byte{
		append(append([]byte(nil), extra...), extraPaddingTag, 1),
		append(append([]byte(nil), extra...), 0x55),
		append(append([]byte(nil), extra...), extra...),
		{extraPublicKeyTag, 1, 2},
	}
	for i, blob := range malformed {
		_, err = ParseTransactionExtra(blob)
		if !IsMalformedError(err) {
			t.Fatalf("TestTransactionExtra: case %d: expected a malformed error, got %v", i, err)
		}
	}

	noPaymentID, err := ParseTransactionExtra(BuildTransactionExtra(externalapi.PublicKey{3}, nil))
	if err != nil {
		t.Fatalf("TestTransactionExtra: %s", err)
	}
	if noPaymentID.PaymentID != nil {
		t.Fatalf("TestTransactionExtra: unexpected payment id %s", noPaymentID.PaymentID)
	}
}

func TestCachedInfoSerialization(t *testing.T) {
	blockInfo := &externalapi.CachedBlockInfo{
		BlockHash:                    externalapi.DomainHash{1},
		Version:                      1,
		UpgradeVote:                  0,
		Timestamp:                    1234567,
		BlobSize:                     400,
		CumulativeDifficulty:         1 << 40,
		AlreadyGeneratedCoins:        99999999,
		AlreadyGeneratedTransactions: 12,
	}
	decodedBlockInfo, err := CachedBlockInfoFromBytes(CachedBlockInfoToBytes(blockInfo))
	if err != nil {
		t.Fatalf("TestCachedInfoSerialization: %s", err)
	}
	if *decodedBlockInfo != *blockInfo {
		t.Fatalf("TestCachedInfoSerialization: got %+v, want %+v", decodedBlockInfo, blockInfo)
	}

	transactionInfo := &externalapi.CachedTransactionInfo{
		BlockIndex:       17,
		TransactionIndex: 3,
		TransactionHash:  externalapi.DomainHash{2},
		UnlockTime:       40,
		Outputs: []*externalapi.DomainTransactionOutput{
			{Amount: 10, Target: &externalapi.KeyOutput{Key: externalapi.PublicKey{1}}},
		},
		GlobalIndexes:                []uint32{5},
		IsDeterministicallyGenerated: true,
	}
	transactionInfoBytes, err := CachedTransactionInfoToBytes(transactionInfo)
	if err != nil {
		t.Fatalf("TestCachedInfoSerialization: %s", err)
	}
	decodedTransactionInfo, err := CachedTransactionInfoFromBytes(transactionInfoBytes)
	if err != nil {
		t.Fatalf("TestCachedInfoSerialization: %s", err)
	}
	if !reflect.DeepEqual(decodedTransactionInfo, transactionInfo) {
		t.Fatalf("TestCachedInfoSerialization: got %s, want %s",
			spew.Sdump(decodedTransactionInfo), spew.Sdump(transactionInfo))
	}

	packed := externalapi.PackedOutIndex{BlockIndex: 1 << 30, TransactionIndex: 2, OutputIndex: 65535}
	decodedPacked, err := PackedOutIndexFromBytes(PackedOutIndexToBytes(packed))
	if err != nil {
		t.Fatalf("TestCachedInfoSerialization: %s", err)
	}
	if decodedPacked != packed {
		t.Fatalf("TestCachedInfoSerialization: got %+v, want %+v", decodedPacked, packed)
	}
	_, err = PackedOutIndexFromBytes([]byte{1, 2, 3})
	if !IsMalformedError(err) {
		t.Fatalf("TestCachedInfoSerialization: expected a malformed error, got %v", err)
	}
}
