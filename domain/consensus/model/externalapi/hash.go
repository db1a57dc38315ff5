package externalapi

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// DomainHashSize of array used to store hashes.
const DomainHashSize = 32

// DomainHash is the domain representation of a 256-bit hash. It is a value
// type so it can be used directly as a map key.
type DomainHash [DomainHashSize]byte

// ZeroHash is the all-zero hash, used as the previous hash of genesis.
var ZeroHash DomainHash

// NewDomainHashFromByteSlice copies hashBytes into a DomainHash.
func NewDomainHashFromByteSlice(hashBytes []byte) (DomainHash, error) {
	var hash DomainHash
	if len(hashBytes) != DomainHashSize {
		return hash, errors.Errorf("invalid hash size. Want: %d, got: %d",
			DomainHashSize, len(hashBytes))
	}
	copy(hash[:], hashBytes)
	return hash, nil
}

// NewDomainHashFromString parses a hex encoded hash.
func NewDomainHashFromString(hashString string) (DomainHash, error) {
	expectedLength := DomainHashSize * 2
	if len(hashString) != expectedLength {
		return DomainHash{}, errors.Errorf("hash string length is %d, while it should be be %d",
			len(hashString), expectedLength)
	}

	hashBytes, err := hex.DecodeString(hashString)
	if err != nil {
		return DomainHash{}, errors.WithStack(err)
	}
	return NewDomainHashFromByteSlice(hashBytes)
}

// String returns the Hash as the hexadecimal string of the hash.
func (hash DomainHash) String() string {
	return hex.EncodeToString(hash[:])
}

// ByteSlice returns a copy of the hash bytes.
func (hash DomainHash) ByteSlice() []byte {
	return append([]byte(nil), hash[:]...)
}

// IsZero returns whether the hash is all zeros.
func (hash DomainHash) IsZero() bool {
	return hash == ZeroHash
}

// Less returns true if hash is lexicographically smaller than other.
func (hash DomainHash) Less(other DomainHash) bool {
	return bytes.Compare(hash[:], other[:]) < 0
}

// KeyImage tags a spent output without revealing which ring member spent it.
type KeyImage DomainHash

func (keyImage KeyImage) String() string {
	return hex.EncodeToString(keyImage[:])
}

// PublicKey is a one-time output key.
type PublicKey DomainHash

func (key PublicKey) String() string {
	return hex.EncodeToString(key[:])
}

// SignatureSize is the size of a single ring member signature.
const SignatureSize = 64

// Signature is one element of a ring signature.
type Signature [SignatureSize]byte
