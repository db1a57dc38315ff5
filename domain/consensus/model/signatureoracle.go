package model

import "github.com/cnchain/cnd/domain/consensus/model/externalapi"

// SignatureOracle provides the elliptic curve and proof of work primitives
// consensus relies on but does not implement.
type SignatureOracle interface {
	// CheckRingSignature verifies that signatures prove ownership of one of
	// publicKeys and that keyImage was derived from it, over prefixHash.
	CheckRingSignature(prefixHash externalapi.DomainHash, keyImage externalapi.KeyImage,
		publicKeys []externalapi.PublicKey, signatures []externalapi.Signature) bool

	// CheckKeyImageDomain returns whether the key image lies in the prime
	// order subgroup.
	CheckKeyImageDomain(keyImage externalapi.KeyImage) bool

	// CheckPublicKey returns whether key is a valid point.
	CheckPublicKey(key externalapi.PublicKey) bool

	// ProofOfWorkHash hashes a block hashing blob with the slow hash.
	ProofOfWorkHash(hashingBlob []byte) externalapi.DomainHash
}
