package serialization

import (
	"bytes"
	"io"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

const (
	baseInputTag = 0xff
	keyInputTag  = 0x02
	keyOutputTag = 0x02
)

// SerializeTransaction writes the wire form of tx to w: the prefix followed
// by one length prefixed ring signature per input.
func SerializeTransaction(w io.Writer, tx *externalapi.DomainTransaction) error {
	err := SerializeTransactionPrefix(w, tx)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, uint64(len(tx.Signatures)))
	if err != nil {
		return err
	}
	for _, ring := range tx.Signatures {
		err = WriteVarInt(w, uint64(len(ring)))
		if err != nil {
			return err
		}
		for _, signature := range ring {
			err = WriteElement(w, signature)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// SerializeTransactionPrefix writes everything of tx that its ring
// signatures sign.
func SerializeTransactionPrefix(w io.Writer, tx *externalapi.DomainTransaction) error {
	err := WriteVarInt(w, uint64(tx.Version))
	if err != nil {
		return err
	}
	err = WriteVarInt(w, tx.UnlockTime)
	if err != nil {
		return err
	}

	err = WriteVarInt(w, uint64(len(tx.Inputs)))
	if err != nil {
		return err
	}
	for _, input := range tx.Inputs {
		err = serializeInput(w, input)
		if err != nil {
			return err
		}
	}

	err = WriteVarInt(w, uint64(len(tx.Outputs)))
	if err != nil {
		return err
	}
	for _, output := range tx.Outputs {
		err = serializeOutput(w, output)
		if err != nil {
			return err
		}
	}

	return WriteBytes(w, tx.Extra)
}

func serializeInput(w io.Writer, input externalapi.DomainTransactionInput) error {
	switch typedInput := input.(type) {
	case *externalapi.BaseInput:
		err := WriteElement(w, uint8(baseInputTag))
		if err != nil {
			return err
		}
		return WriteVarInt(w, uint64(typedInput.BlockIndex))

	case *externalapi.KeyInput:
		err := WriteElement(w, uint8(keyInputTag))
		if err != nil {
			return err
		}
		err = WriteVarInt(w, typedInput.Amount)
		if err != nil {
			return err
		}
		err = WriteVarInt(w, uint64(len(typedInput.OutputIndexes)))
		if err != nil {
			return err
		}
		for _, outputIndex := range typedInput.OutputIndexes {
			err = WriteVarInt(w, uint64(outputIndex))
			if err != nil {
				return err
			}
		}
		return WriteElement(w, typedInput.KeyImage)
	}
	return errors.Wrapf(errNoEncodingForType, "unknown input type %T", input)
}

func serializeOutput(w io.Writer, output *externalapi.DomainTransactionOutput) error {
	err := WriteVarInt(w, output.Amount)
	if err != nil {
		return err
	}
	keyOutput, ok := output.Target.(*externalapi.KeyOutput)
	if !ok {
		return errors.Wrapf(errNoEncodingForType, "unknown output target type %T", output.Target)
	}
	err = WriteElement(w, uint8(keyOutputTag))
	if err != nil {
		return err
	}
	return WriteElement(w, keyOutput.Key)
}

// DeserializeTransaction reads a transaction written by SerializeTransaction.
func DeserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx := &externalapi.DomainTransaction{}

	version, err := ReadVarIntUint8(r)
	if err != nil {
		return nil, err
	}
	tx.Version = version
	tx.UnlockTime, err = ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	inputCount, err := ReadCount(r)
	if err != nil {
		return nil, err
	}
	tx.Inputs = make([]externalapi.DomainTransactionInput, inputCount)
	for i := range tx.Inputs {
		tx.Inputs[i], err = deserializeInput(r)
		if err != nil {
			return nil, err
		}
	}

	outputCount, err := ReadCount(r)
	if err != nil {
		return nil, err
	}
	tx.Outputs = make([]*externalapi.DomainTransactionOutput, outputCount)
	for i := range tx.Outputs {
		tx.Outputs[i], err = deserializeOutput(r)
		if err != nil {
			return nil, err
		}
	}

	tx.Extra, err = ReadBytes(r)
	if err != nil {
		return nil, err
	}

	ringCount, err := ReadCount(r)
	if err != nil {
		return nil, err
	}
	if ringCount > 0 {
		tx.Signatures = make([][]externalapi.Signature, ringCount)
	}
	for i := range tx.Signatures {
		signatureCount, err := ReadCount(r)
		if err != nil {
			return nil, err
		}
		ring := make([]externalapi.Signature, signatureCount)
		for j := range ring {
			err = ReadElement(r, &ring[j])
			if err != nil {
				return nil, err
			}
		}
		tx.Signatures[i] = ring
	}
	return tx, nil
}

func deserializeInput(r io.Reader) (externalapi.DomainTransactionInput, error) {
	var tag uint8
	err := ReadElement(r, &tag)
	if err != nil {
		return nil, err
	}

	switch tag {
	case baseInputTag:
		blockIndex, err := ReadVarIntUint32(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.BaseInput{BlockIndex: blockIndex}, nil

	case keyInputTag:
		input := &externalapi.KeyInput{}
		input.Amount, err = ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		indexCount, err := ReadCount(r)
		if err != nil {
			return nil, err
		}
		input.OutputIndexes = make([]uint32, indexCount)
		for i := range input.OutputIndexes {
			input.OutputIndexes[i], err = ReadVarIntUint32(r)
			if err != nil {
				return nil, err
			}
		}
		err = ReadElement(r, &input.KeyImage)
		if err != nil {
			return nil, err
		}
		return input, nil
	}
	return nil, errors.Wrapf(errMalformed, "unknown input tag %02x", tag)
}

func deserializeOutput(r io.Reader) (*externalapi.DomainTransactionOutput, error) {
	amount, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	var tag uint8
	err = ReadElement(r, &tag)
	if err != nil {
		return nil, err
	}
	if tag != keyOutputTag {
		return nil, errors.Wrapf(errMalformed, "unknown output tag %02x", tag)
	}
	keyOutput := &externalapi.KeyOutput{}
	err = ReadElement(r, &keyOutput.Key)
	if err != nil {
		return nil, err
	}
	return &externalapi.DomainTransactionOutput{Amount: amount, Target: keyOutput}, nil
}

// TransactionToBytes returns the wire form of tx.
func TransactionToBytes(tx *externalapi.DomainTransaction) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := SerializeTransaction(buf, tx)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TransactionFromBytes parses a transaction blob. Trailing bytes are
// rejected so a blob has exactly one parse.
func TransactionFromBytes(blob []byte) (*externalapi.DomainTransaction, error) {
	reader := bytes.NewReader(blob)
	tx, err := DeserializeTransaction(reader)
	if err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.Wrapf(errMalformed, "%d trailing bytes after transaction", reader.Len())
	}
	return tx, nil
}

// TransactionPrefixToBytes returns the prefix of tx.
func TransactionPrefixToBytes(tx *externalapi.DomainTransaction) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := SerializeTransactionPrefix(buf, tx)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
