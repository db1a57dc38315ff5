package devoracle

import (
	"testing"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

func TestRingSignature(t *testing.T) {
	oracle := New()
	secret := NewSecretKey([]byte("alice"))
	ring := []externalapi.PublicKey{
		PublicKey(NewSecretKey([]byte("bob"))),
		PublicKey(secret),
		PublicKey(NewSecretKey([]byte("carol"))),
	}
	prefixHash := externalapi.DomainHash{1, 2, 3}

	keyImage, signatures, err := Sign(prefixHash, secret, ring, 1)
	if err != nil {
		t.Fatalf("TestRingSignature: Sign: %s", err)
	}
	if keyImage != KeyImage(secret) {
		t.Fatalf("TestRingSignature: unexpected key image")
	}
	if !oracle.CheckRingSignature(prefixHash, keyImage, ring, signatures) {
		t.Fatalf("TestRingSignature: a valid signature was rejected")
	}

	if oracle.CheckRingSignature(externalapi.DomainHash{9}, keyImage, ring, signatures) {
		t.Fatalf("TestRingSignature: a signature over another prefix was accepted")
	}
	otherKeyImage := KeyImage(NewSecretKey([]byte("bob")))
	if oracle.CheckRingSignature(prefixHash, otherKeyImage, ring, signatures) {
		t.Fatalf("TestRingSignature: a signature with another key image was accepted")
	}
	if oracle.CheckRingSignature(prefixHash, keyImage, ring[:2], signatures) {
		t.Fatalf("TestRingSignature: a signature count mismatch was accepted")
	}

	swapped := []externalapi.PublicKey{ring[1], ring[0], ring[2]}
	if oracle.CheckRingSignature(prefixHash, keyImage, swapped, signatures) {
		t.Fatalf("TestRingSignature: a signature over a reordered ring was accepted")
	}

	_, _, err = Sign(prefixHash, secret, ring, 0)
	if err == nil {
		t.Fatalf("TestRingSignature: signing for a foreign ring member should fail")
	}
}

func TestKeyChecks(t *testing.T) {
	oracle := New()
	if oracle.CheckPublicKey(externalapi.PublicKey{}) {
		t.Fatalf("TestKeyChecks: the zero public key was accepted")
	}
	if !oracle.CheckPublicKey(PublicKey(NewSecretKey(nil))) {
		t.Fatalf("TestKeyChecks: a derived public key was rejected")
	}
	if oracle.CheckKeyImageDomain(externalapi.KeyImage{}) {
		t.Fatalf("TestKeyChecks: the zero key image was accepted")
	}
	if oracle.ProofOfWorkHash([]byte{1}) == oracle.ProofOfWorkHash([]byte{2}) {
		t.Fatalf("TestKeyChecks: proof of work hash ignores its input")
	}
}
