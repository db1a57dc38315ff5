package externalapi

// DomainTransaction represents a CryptoNote transaction. Signatures holds one
// ring signature per input and is empty for coinbase and static reward
// transactions.
type DomainTransaction struct {
	Version    uint8
	UnlockTime uint64
	Inputs     []DomainTransactionInput
	Outputs    []*DomainTransactionOutput
	Extra      []byte
	Signatures [][]Signature
}

// DomainTransactionInput is implemented by BaseInput and KeyInput.
type DomainTransactionInput interface {
	isTransactionInput()
}

// BaseInput is the single input of a generated transaction. It carries the
// index of the block that generates it.
type BaseInput struct {
	BlockIndex uint32
}

func (*BaseInput) isTransactionInput() {}

// KeyInput spends one of the outputs referenced by OutputIndexes. The
// indexes are delta encoded: the first is an absolute global index for
// Amount and every following one is an offset from its predecessor.
type KeyInput struct {
	Amount        uint64
	OutputIndexes []uint32
	KeyImage      KeyImage
}

func (*KeyInput) isTransactionInput() {}

// DomainTransactionOutput represents a transaction output.
type DomainTransactionOutput struct {
	Amount uint64
	Target DomainTransactionOutputTarget
}

// DomainTransactionOutputTarget is implemented by KeyOutput.
type DomainTransactionOutputTarget interface {
	isOutputTarget()
}

// KeyOutput is an output spendable by a ring signature over Key.
type KeyOutput struct {
	Key PublicKey
}

func (*KeyOutput) isOutputTarget() {}

// KeyOutputKey returns the output key if the output is a KeyOutput.
func (output *DomainTransactionOutput) KeyOutputKey() (PublicKey, bool) {
	keyOutput, ok := output.Target.(*KeyOutput)
	if !ok {
		return PublicKey{}, false
	}
	return keyOutput.Key, true
}

// IsGenerated returns whether the transaction is a coinbase or static reward
// transaction, both of which have a single BaseInput.
func (tx *DomainTransaction) IsGenerated() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	_, ok := tx.Inputs[0].(*BaseInput)
	return ok
}

// KeyImages returns the key images of every KeyInput of the transaction.
func (tx *DomainTransaction) KeyImages() []KeyImage {
	keyImages := make([]KeyImage, 0, len(tx.Inputs))
	for _, input := range tx.Inputs {
		if keyInput, ok := input.(*KeyInput); ok {
			keyImages = append(keyImages, keyInput.KeyImage)
		}
	}
	return keyImages
}

// Clone returns a deep copy of the transaction.
func (tx *DomainTransaction) Clone() *DomainTransaction {
	inputs := make([]DomainTransactionInput, len(tx.Inputs))
	for i, input := range tx.Inputs {
		switch typedInput := input.(type) {
		case *BaseInput:
			inputClone := *typedInput
			inputs[i] = &inputClone
		case *KeyInput:
			inputs[i] = &KeyInput{
				Amount:        typedInput.Amount,
				OutputIndexes: append([]uint32(nil), typedInput.OutputIndexes...),
				KeyImage:      typedInput.KeyImage,
			}
		default:
			inputs[i] = input
		}
	}

	outputs := make([]*DomainTransactionOutput, len(tx.Outputs))
	for i, output := range tx.Outputs {
		outputClone := &DomainTransactionOutput{Amount: output.Amount, Target: output.Target}
		if keyOutput, ok := output.Target.(*KeyOutput); ok {
			outputClone.Target = &KeyOutput{Key: keyOutput.Key}
		}
		outputs[i] = outputClone
	}

	var signatures [][]Signature
	if tx.Signatures != nil {
		signatures = make([][]Signature, len(tx.Signatures))
		for i, ring := range tx.Signatures {
			signatures[i] = append([]Signature(nil), ring...)
		}
	}

	return &DomainTransaction{
		Version:    tx.Version,
		UnlockTime: tx.UnlockTime,
		Inputs:     inputs,
		Outputs:    outputs,
		Extra:      append([]byte(nil), tx.Extra...),
		Signatures: signatures,
	}
}
