package hashes

import (
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

func TestKeccak(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}
	for _, test := range tests {
		hash := Keccak([]byte(test.input))
		if hash.String() != test.expected {
			t.Errorf("TestKeccak: Keccak(%q) = %s, want %s", test.input, hash, test.expected)
		}
	}

	split := Keccak([]byte("a"), []byte("bc"))
	if split != Keccak([]byte("abc")) {
		t.Errorf("TestKeccak: hashing chunks is not the same as hashing their concatenation")
	}
}

func TestCRC16(t *testing.T) {
	// The CRC-16/ARC check value.
	if checksum := CRC16([]byte("123456789")); checksum != 0xBB3D {
		t.Fatalf("TestCRC16: got %04x, want bb3d", checksum)
	}
	if checksum := CRC16(nil); checksum != 0 {
		t.Fatalf("TestCRC16: checksum of nothing is %04x", checksum)
	}
}

func TestTreeHash(t *testing.T) {
	leaves := make([]externalapi.DomainHash, 5)
	for i := range leaves {
		leaves[i] = Keccak([]byte{byte(i)})
	}

	if TreeHash(leaves[:1]) != leaves[0] {
		t.Fatalf("TestTreeHash: a single leaf must be its own root")
	}
	if TreeHash(leaves[:2]) != hashPair(&leaves[0], &leaves[1]) {
		t.Fatalf("TestTreeHash: unexpected root for two leaves")
	}

	// Three leaves: the first is carried up, the last two are paired.
	expectedThree := hashPair(&leaves[0], hashPtr(hashPair(&leaves[1], &leaves[2])))
	if TreeHash(leaves[:3]) != expectedThree {
		t.Fatalf("TestTreeHash: unexpected root for three leaves")
	}

	expectedFour := hashPair(hashPtr(hashPair(&leaves[0], &leaves[1])), hashPtr(hashPair(&leaves[2], &leaves[3])))
	if TreeHash(leaves[:4]) != expectedFour {
		t.Fatalf("TestTreeHash: unexpected root for four leaves")
	}

	// Five leaves: three untouched, the last two paired, then a tree of four.
	pairedTail := hashPair(&leaves[3], &leaves[4])
	expectedFive := hashPair(hashPtr(hashPair(&leaves[0], &leaves[1])), hashPtr(hashPair(&leaves[2], &pairedTail)))
	if TreeHash(leaves) != expectedFive {
		t.Fatalf("TestTreeHash: unexpected root for five leaves")
	}
}

func TestTreeHashWidth(t *testing.T) {
	for count, expected := range map[int]int{3: 2, 4: 2, 5: 4, 8: 4, 9: 8} {
		if width := treeHashWidth(count); width != expected {
			t.Errorf("TestTreeHashWidth: treeHashWidth(%d) = %d, want %d", count, width, expected)
		}
	}
}

func hashPtr(hash externalapi.DomainHash) *externalapi.DomainHash {
	return &hash
}

