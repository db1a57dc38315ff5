package serialization

import (
	"bytes"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const (
	extraPaddingTag   = 0x00
	extraPublicKeyTag = 0x01
	extraNonceTag     = 0x02

	extraNoncePaymentIDTag = 0x00
	maxExtraNonceSize      = 255
)

// TransactionExtra is the parsed form of a transaction's extra field.
type TransactionExtra struct {
	PublicKey *externalapi.PublicKey
	Nonce     []byte
	PaymentID *externalapi.DomainHash
}

// ParseTransactionExtra parses the tagged fields of an extra blob. A
// padding tag consumes the rest of the blob, which must be zero.
func ParseTransactionExtra(extra []byte) (*TransactionExtra, error) {
	result := &TransactionExtra{}
	reader := bytes.NewReader(extra)
	for reader.Len() > 0 {
		var tag uint8
		err := ReadElement(reader, &tag)
		if err != nil {
			return nil, err
		}

		switch tag {
		case extraPaddingTag:
			for reader.Len() > 0 {
				padding, _ := reader.ReadByte()
				if padding != 0 {
					return nil, errors.Wrap(errMalformed, "non zero byte in extra padding")
				}
			}

		case extraPublicKeyTag:
			if result.PublicKey != nil {
				return nil, errors.Wrap(errMalformed, "extra has two public keys")
			}
			publicKey := externalapi.PublicKey{}
			err = ReadElement(reader, &publicKey)
			if err != nil {
				return nil, err
			}
			result.PublicKey = &publicKey

		case extraNonceTag:
			if result.Nonce != nil {
				return nil, errors.Wrap(errMalformed, "extra has two nonces")
			}
			nonce, err := ReadBytes(reader)
			if err != nil {
				return nil, err
			}
			if len(nonce) > maxExtraNonceSize {
				return nil, errors.Wrapf(errMalformed, "extra nonce of %d bytes is too large", len(nonce))
			}
			result.Nonce = nonce
			if len(nonce) == 1+externalapi.DomainHashSize && nonce[0] == extraNoncePaymentIDTag {
				paymentID, _ := externalapi.NewDomainHashFromByteSlice(nonce[1:])
				result.PaymentID = &paymentID
			}

		default:
			return nil, errors.Wrapf(errMalformed, "unknown extra tag %02x", tag)
		}
	}
	return result, nil
}

// BuildTransactionExtra returns an extra blob carrying publicKey and, when
// given, paymentID.
func BuildTransactionExtra(publicKey externalapi.PublicKey, paymentID *externalapi.DomainHash) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(extraPublicKeyTag)
	buf.Write(publicKey[:])
	if paymentID != nil {
		nonce := append([]byte{extraNoncePaymentIDTag}, paymentID[:]...)
		buf.WriteByte(extraNonceTag)
		// Writes into a bytes.Buffer don't fail.
		_ = WriteBytes(buf, nonce)
	}
	return buf.Bytes()
}
