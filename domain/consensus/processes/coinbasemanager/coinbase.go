package coinbasemanager

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
)

const coinbaseTransactionVersion = 1

func (c *coinbaseManager) StaticRewardTransaction(version uint8, blockIndex uint32) *externalapi.DomainTransaction {
	if !c.params.HasStaticReward(version) {
		return nil
	}
	transactionPublicKey := externalapi.PublicKey(hashes.Keccak(c.params.StaticRewardSeed))
	return c.coinbaseTransaction(blockIndex, c.params.StaticRewardAmount, transactionPublicKey, c.params.StaticRewardSeed)
}

func (c *coinbaseManager) StaticRewardHash(version uint8, blockIndex uint32) *uint16 {
	transaction := c.StaticRewardTransaction(version, blockIndex)
	if transaction == nil {
		return nil
	}
	truncatedHash := hashes.TruncatedHash(consensushashing.TransactionHash(transaction))
	return &truncatedHash
}

func (c *coinbaseManager) MinerTransaction(blockIndex uint32, reward uint64,
	publicKey externalapi.PublicKey) *externalapi.DomainTransaction {

	return c.coinbaseTransaction(blockIndex, reward, publicKey, publicKey[:])
}

// coinbaseTransaction builds a transaction with a single base input paying
// reward, decomposed into canonical amounts, to one key per output derived
// from keySeed.
func (c *coinbaseManager) coinbaseTransaction(blockIndex uint32, reward uint64,
	transactionPublicKey externalapi.PublicKey, keySeed []byte) *externalapi.DomainTransaction {

	parts := amount.Decompose(reward)
	outputs := make([]*externalapi.DomainTransactionOutput, len(parts))
	var blockIndexBytes, outputIndexBytes [4]byte
	binary.LittleEndian.PutUint32(blockIndexBytes[:], blockIndex)
	for i, part := range parts {
		binary.LittleEndian.PutUint32(outputIndexBytes[:], uint32(i))
		outputKey := hashes.Keccak(keySeed, blockIndexBytes[:], outputIndexBytes[:])
		outputs[i] = &externalapi.DomainTransactionOutput{
			Amount: part,
			Target: &externalapi.KeyOutput{Key: externalapi.PublicKey(outputKey)},
		}
	}

	return &externalapi.DomainTransaction{
		Version:    coinbaseTransactionVersion,
		UnlockTime: uint64(blockIndex) + uint64(c.params.MinedMoneyUnlockWindow),
		Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: blockIndex}},
		Outputs:    outputs,
		Extra:      serialization.BuildTransactionExtra(transactionPublicKey, nil),
	}
}
