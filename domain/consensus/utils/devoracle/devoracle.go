// Package devoracle provides a deterministic, insecure SignatureOracle for
// development networks and tests. Its ring signatures reveal the signer's
// secret and must never protect real value.
package devoracle

import (
	"github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/pkg/errors"
)

var (
	publicKeyDomain = []byte("pk")
	keyImageDomain  = []byte("ki")
	decoyDomain     = []byte("decoy")
)

// SecretKey is a development spend key.
type SecretKey externalapi.DomainHash

type oracle struct{}

// New returns the development SignatureOracle.
func New() model.SignatureOracle {
	return &oracle{}
}

// NewSecretKey derives a secret key from seed.
func NewSecretKey(seed []byte) SecretKey {
	return SecretKey(hashes.Keccak([]byte("sk"), seed))
}

// PublicKey returns the public key of secret.
func PublicKey(secret SecretKey) externalapi.PublicKey {
	return externalapi.PublicKey(hashes.Keccak(publicKeyDomain, secret[:]))
}

// KeyImage returns the key image of secret.
func KeyImage(secret SecretKey) externalapi.KeyImage {
	return externalapi.KeyImage(hashes.Keccak(keyImageDomain, secret[:]))
}

// Sign returns the key image and ring signature spending the output of
// publicKeys[realIndex], which must be the public key of secret.
func Sign(prefixHash externalapi.DomainHash, secret SecretKey, publicKeys []externalapi.PublicKey,
	realIndex int) (externalapi.KeyImage, []externalapi.Signature, error) {

	if realIndex < 0 || realIndex >= len(publicKeys) {
		return externalapi.KeyImage{}, nil, errors.Errorf("real index %d outside a ring of %d", realIndex, len(publicKeys))
	}
	if publicKeys[realIndex] != PublicKey(secret) {
		return externalapi.KeyImage{}, nil, errors.New("the secret does not own the real ring member")
	}

	keyImage := KeyImage(secret)
	commitment := hashes.Keccak(prefixHash[:], keyImage[:])
	signatures := make([]externalapi.Signature, len(publicKeys))
	for i, publicKey := range publicKeys {
		if i == realIndex {
			copy(signatures[i][:externalapi.DomainHashSize], secret[:])
		} else {
			decoy := decoyChallenge(prefixHash, publicKey)
			copy(signatures[i][:externalapi.DomainHashSize], decoy[:])
		}
		copy(signatures[i][externalapi.DomainHashSize:], commitment[:])
	}
	return keyImage, signatures, nil
}

func decoyChallenge(prefixHash externalapi.DomainHash, publicKey externalapi.PublicKey) externalapi.DomainHash {
	return hashes.Keccak(decoyDomain, prefixHash[:], publicKey[:])
}

func (o *oracle) CheckRingSignature(prefixHash externalapi.DomainHash, keyImage externalapi.KeyImage,
	publicKeys []externalapi.PublicKey, signatures []externalapi.Signature) bool {

	if len(publicKeys) == 0 || len(publicKeys) != len(signatures) {
		return false
	}

	commitment := hashes.Keccak(prefixHash[:], keyImage[:])
	realMembers := 0
	for i, signature := range signatures {
		var challenge externalapi.DomainHash
		copy(challenge[:], signature[:externalapi.DomainHashSize])
		var signatureCommitment externalapi.DomainHash
		copy(signatureCommitment[:], signature[externalapi.DomainHashSize:])
		if signatureCommitment != commitment {
			return false
		}

		if challenge == decoyChallenge(prefixHash, publicKeys[i]) {
			continue
		}
		secret := SecretKey(challenge)
		if PublicKey(secret) != publicKeys[i] || KeyImage(secret) != keyImage {
			return false
		}
		realMembers++
	}
	return realMembers == 1
}

func (o *oracle) CheckKeyImageDomain(keyImage externalapi.KeyImage) bool {
	return keyImage != externalapi.KeyImage{}
}

func (o *oracle) CheckPublicKey(key externalapi.PublicKey) bool {
	return key != externalapi.PublicKey{}
}

func (o *oracle) ProofOfWorkHash(hashingBlob []byte) externalapi.DomainHash {
	return hashes.Keccak(hashingBlob)
}
