// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"encoding/binary"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/utils/amount"
	"github.com/cnchain/cnd/domain/consensus/utils/consensushashing"
	"github.com/cnchain/cnd/domain/consensus/utils/hashes"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
)

// newGenesisBlock builds the genesis block of a network: a version 1
// block on top of the zero hash whose miner transaction pays the genesis
// reward, decomposed, to keys nobody holds.
func newGenesisBlock(params *Params) *externalapi.DomainBlock {
	genesisSeed := []byte("cnd-genesis-" + params.Name)

	parts := amount.Decompose(params.GenesisBlockReward)
	outputs := make([]*externalapi.DomainTransactionOutput, len(parts))
	for i, part := range parts {
		var index [4]byte
		binary.LittleEndian.PutUint32(index[:], uint32(i))
		outputs[i] = &externalapi.DomainTransactionOutput{
			Amount: part,
			Target: &externalapi.KeyOutput{Key: externalapi.PublicKey(hashes.Keccak(genesisSeed, index[:]))},
		}
	}

	transactionPublicKey := externalapi.PublicKey(hashes.Keccak(genesisSeed))
	coinbase := &externalapi.DomainTransaction{
		Version:    1,
		UnlockTime: uint64(params.MinedMoneyUnlockWindow),
		Inputs:     []externalapi.DomainTransactionInput{&externalapi.BaseInput{BlockIndex: 0}},
		Outputs:    outputs,
		Extra:      serialization.BuildTransactionExtra(transactionPublicKey, nil),
	}

	return &externalapi.DomainBlock{
		Version:           1,
		UpgradeVote:       1,
		Timestamp:         params.GenesisTimestamp,
		PreviousBlockHash: externalapi.ZeroHash,
		BaseTransaction:   coinbase,
	}
}

func (p *Params) computeGenesisHash() externalapi.DomainHash {
	return consensushashing.BlockHash(p.GenesisBlock)
}

// GenesisRawBlock returns the genesis block in its stored form.
func (p *Params) GenesisRawBlock() *externalapi.RawBlock {
	blob, err := serialization.BlockToBytes(p.GenesisBlock)
	if err != nil {
		panic(err)
	}
	return &externalapi.RawBlock{Block: blob}
}
