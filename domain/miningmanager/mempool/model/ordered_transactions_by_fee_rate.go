package model

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// TransactionsOrderedByFeeRate represents a set of MempoolTransactions ordered by their fee / size rate,
// best rate first. Equal rates put the smaller transaction first, then the one received first.
type TransactionsOrderedByFeeRate struct {
	slice []*MempoolTransaction
}

// Push inserts a transaction into the set, placing it in the correct place to preserve order
func (tobf *TransactionsOrderedByFeeRate) Push(transaction *MempoolTransaction) error {
	if transaction.Size() == 0 {
		return errors.Errorf("TransactionsOrderedByFeeRate expects a transaction with a populated blob")
	}
	index := tobf.findTransactionIndex(transaction)
	tobf.slice = append(tobf.slice[:index],
		append([]*MempoolTransaction{transaction}, tobf.slice[index:]...)...)
	return nil
}

// Remove removes the given transaction from the set.
// Returns an error if transaction does not exist in the set.
func (tobf *TransactionsOrderedByFeeRate) Remove(transaction *MempoolTransaction) error {
	index := tobf.findTransactionIndex(transaction)
	if index >= len(tobf.slice) || tobf.slice[index].Hash != transaction.Hash {
		return errors.Errorf("Couldn't find %s in TransactionsOrderedByFeeRate", transaction.Hash)
	}
	return tobf.RemoveAtIndex(index)
}

// RemoveAtIndex removes the transaction at the given index.
// Returns an error in case of out-of-bounds index.
func (tobf *TransactionsOrderedByFeeRate) RemoveAtIndex(index int) error {
	if index < 0 || index > len(tobf.slice)-1 {
		return errors.Errorf("Index %d is out of bound of this TransactionsOrderedByFeeRate", index)
	}
	tobf.slice = append(tobf.slice[:index], tobf.slice[index+1:]...)
	return nil
}

// GetByIndex returns the transaction at the given index.
func (tobf *TransactionsOrderedByFeeRate) GetByIndex(index int) *MempoolTransaction {
	return tobf.slice[index]
}

// Len returns the number of transactions in the set.
func (tobf *TransactionsOrderedByFeeRate) Len() int {
	return len(tobf.slice)
}

// Transactions returns the transactions in order. The returned slice must
// not be modified.
func (tobf *TransactionsOrderedByFeeRate) Transactions() []*MempoolTransaction {
	return tobf.slice
}

func (tobf *TransactionsOrderedByFeeRate) findTransactionIndex(transaction *MempoolTransaction) int {
	return sort.Search(len(tobf.slice), func(i int) bool {
		return !comesBefore(tobf.slice[i], transaction)
	})
}

// comesBefore reports whether a is strictly better than b. Fee rates are
// compared as the cross products a.Fee*b.Size and b.Fee*a.Size.
func comesBefore(a, b *MempoolTransaction) bool {
	left := new(uint256.Int).Mul(uint256.NewInt(a.Fee), uint256.NewInt(b.Size()))
	right := new(uint256.Int).Mul(uint256.NewInt(b.Fee), uint256.NewInt(a.Size()))
	if cmp := left.Cmp(right); cmp != 0 {
		return cmp > 0
	}
	if a.Size() != b.Size() {
		return a.Size() < b.Size()
	}
	if !a.ReceiveTime.Equal(b.ReceiveTime) {
		return a.ReceiveTime.Before(b.ReceiveTime)
	}
	return a.Hash.Less(b.Hash)
}
