package model

import (
	"testing"
	"time"

	consensusmodel "github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
)

func transaction(hashSeed byte, fee uint64, size int, receivedAt int64) *MempoolTransaction {
	return &MempoolTransaction{
		PoolTransaction: &consensusmodel.PoolTransaction{
			Hash: externalapi.DomainHash{hashSeed},
			Blob: make([]byte, size),
			Fee:  fee,
		},
		ReceiveTime: time.Unix(receivedAt, 0),
	}
}

func TestTransactionsOrderedByFeeRate(t *testing.T) {
	transactions := []*MempoolTransaction{
		transaction(1, 10, 100, 0),
		transaction(2, 30, 100, 0),
		transaction(3, 20, 200, 0),
		transaction(4, 10, 100, -1),
		transaction(5, 0, 300, 0),
		transaction(6, 5, 50, 0),
	}
	expectedOrder := []byte{2, 6, 4, 1, 3, 5}

	set := TransactionsOrderedByFeeRate{}
	for _, tx := range transactions {
		err := set.Push(tx)
		if err != nil {
			t.Fatalf("Push: %s", err)
		}
	}
	if set.Len() != len(expectedOrder) {
		t.Fatalf("expected %d transactions, got %d", len(expectedOrder), set.Len())
	}
	for i, hashSeed := range expectedOrder {
		if set.GetByIndex(i).Hash[0] != hashSeed {
			t.Fatalf("position %d: expected transaction %d, got %d", i, hashSeed, set.GetByIndex(i).Hash[0])
		}
	}

	err := set.Remove(transactions[3])
	if err != nil {
		t.Fatalf("Remove: %s", err)
	}
	err = set.Remove(transactions[3])
	if err == nil {
		t.Fatalf("removing a missing transaction did not fail")
	}
	if set.Len() != len(expectedOrder)-1 {
		t.Fatalf("expected %d transactions after removal, got %d", len(expectedOrder)-1, set.Len())
	}

	err = set.Push(transaction(7, 10, 0, 0))
	if err == nil {
		t.Fatalf("pushing a transaction without a blob did not fail")
	}
}
