package hashes

import (
	"hash"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// HashWriter is used to incrementally hash data without concatenating all of the data to a single buffer
// it exposes an io.Writer api and a Finalize function to get the resulting hash.
// The used hash function is the original (pre-standard) Keccak-256.
type HashWriter struct {
	hash.Hash
}

// NewHashWriter returns a new Keccak-256 HashWriter.
func NewHashWriter() HashWriter {
	return HashWriter{sha3.NewLegacyKeccak256()}
}

// InfallibleWrite is just like write but doesn't return anything
func (h HashWriter) InfallibleWrite(p []byte) {
	// This write can never return an error, this is part of the hash.Hash interface contract.
	_, err := h.Write(p)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// Finalize returns the resulting hash
func (h HashWriter) Finalize() externalapi.DomainHash {
	var sum externalapi.DomainHash
	copy(sum[:], h.Sum(sum[:0]))
	return sum
}

// Keccak returns the Keccak-256 hash of the concatenation of data.
func Keccak(data ...[]byte) externalapi.DomainHash {
	writer := NewHashWriter()
	for _, chunk := range data {
		writer.InfallibleWrite(chunk)
	}
	return writer.Finalize()
}
