package mempool

import (
	"context"
	"sync"
	"time"

	consensusmodel "github.com/cnchain/cnd/domain/consensus/model"
	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/consensus/ruleerrors"
	"github.com/cnchain/cnd/domain/consensus/utils/serialization"
	"github.com/cnchain/cnd/domain/miningmanager/mempool/model"
	"github.com/cnchain/cnd/infrastructure/metrics"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/pkg/errors"
)

// RevalidateFunc checks that a pool transaction is still valid on top of
// the current main chain.
type RevalidateFunc func(transaction *consensusmodel.PoolTransaction) error

// Mempool maintains a set of known transactions that
// are intended to be mined into new blocks
type Mempool interface {
	consensusmodel.TransactionPool

	Count() int
	TransactionReceiveTime(transactionHash externalapi.DomainHash) (time.Time, bool)

	// Clean deletes outdated transactions and the ones revalidate rejects.
	Clean()
	// Start runs Clean every CleanInterval until Stop is called.
	Start(revalidate RevalidateFunc)
	Stop()
}

type mempool struct {
	mtx    sync.RWMutex
	config *Config
	clock  clock.Clock
	events chan<- externalapi.ConsensusEvent

	allTransactions     model.HashToTransaction
	keyImages           model.KeyImageToTransaction
	paymentIDs          model.PaymentIDToTransactions
	orderedTransactions model.TransactionsOrderedByFeeRate
	recentlyDeleted     map[externalapi.DomainHash]time.Time

	revalidate  RevalidateFunc
	cleanTicker ticker.Ticker
	quit        chan struct{}
	wg          sync.WaitGroup
}

// New constructs a new mempool. Pool changes are reported to events when
// it is not nil. Sends never block: a change that does not fit in events
// is logged and dropped.
func New(config *Config, clock clock.Clock, events chan<- externalapi.ConsensusEvent) Mempool {
	return &mempool{
		config:          config,
		clock:           clock,
		events:          events,
		allTransactions: model.HashToTransaction{},
		keyImages:       model.KeyImageToTransaction{},
		paymentIDs:      model.PaymentIDToTransactions{},
		recentlyDeleted: make(map[externalapi.DomainHash]time.Time),
		quit:            make(chan struct{}),
	}
}

func (mp *mempool) sendEvent(event externalapi.ConsensusEvent) {
	if mp.events == nil {
		return
	}
	select {
	case mp.events <- event:
	default:
		log.Warnf("Dropped %T: the consensus events channel is full", event)
	}
}

func (mp *mempool) EligibleTransactions(ctx context.Context) ([]*consensusmodel.PoolTransaction, error) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	transactions := make([]*consensusmodel.PoolTransaction, 0, mp.orderedTransactions.Len())
	for _, mempoolTransaction := range mp.orderedTransactions.Transactions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		transactions = append(transactions, mempoolTransaction.PoolTransaction)
	}
	return transactions, nil
}

func (mp *mempool) ContainsTransaction(transactionHash externalapi.DomainHash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	_, ok := mp.allTransactions[transactionHash]
	return ok
}

func (mp *mempool) ContainsKeyImage(keyImage externalapi.KeyImage) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	_, ok := mp.keyImages[keyImage]
	return ok
}

func (mp *mempool) GetTransaction(transactionHash externalapi.DomainHash) (*consensusmodel.PoolTransaction, bool) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	mempoolTransaction, ok := mp.allTransactions[transactionHash]
	if !ok {
		return nil, false
	}
	return mempoolTransaction.PoolTransaction, true
}

func (mp *mempool) GetTransactionHashes() []externalapi.DomainHash {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	hashes := make([]externalapi.DomainHash, 0, mp.orderedTransactions.Len())
	for _, mempoolTransaction := range mp.orderedTransactions.Transactions() {
		hashes = append(hashes, mempoolTransaction.Hash)
	}
	return hashes
}

func (mp *mempool) TransactionHashesByPaymentID(paymentID externalapi.DomainHash) []externalapi.DomainHash {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	hashes := mp.paymentIDs[paymentID]
	result := make([]externalapi.DomainHash, len(hashes))
	copy(result, hashes)
	return result
}

func (mp *mempool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return len(mp.allTransactions)
}

func (mp *mempool) TransactionReceiveTime(transactionHash externalapi.DomainHash) (time.Time, bool) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	mempoolTransaction, ok := mp.allTransactions[transactionHash]
	if !ok {
		return time.Time{}, false
	}
	return mempoolTransaction.ReceiveTime, true
}

// AddTransaction inserts a transaction validated against the main chain.
// Transactions spending a key image another pool transaction spends are
// refused.
func (mp *mempool) AddTransaction(transaction *consensusmodel.PoolTransaction) error {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	if deletedAt, ok := mp.recentlyDeleted[transaction.Hash]; ok &&
		mp.clock.Now().Sub(deletedAt) < mp.config.TransactionLifetime {

		return errors.Wrapf(ErrRecentlyDeleted, "transaction %s", transaction.Hash)
	}
	err := mp.insertTransaction(transaction)
	if err != nil {
		return err
	}
	log.Debugf("Transaction %s added to the pool", transaction.Hash)
	return nil
}

func (mp *mempool) PushBackTransactions(transactions []*consensusmodel.PoolTransaction) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	for _, transaction := range transactions {
		err := mp.insertTransaction(transaction)
		if err != nil {
			log.Debugf("Transaction %s of a block that left the main chain was not returned to the pool: %s",
				transaction.Hash, err)
		}
	}
}

func (mp *mempool) RemoveTransactions(transactionHashes []externalapi.DomainHash, reason externalapi.DeletionReason) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.removeTransactions(transactionHashes, reason)
}

func (mp *mempool) RemoveTransactionsSpending(keyImages []externalapi.KeyImage) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	var conflicting []externalapi.DomainHash
	seen := make(map[externalapi.DomainHash]struct{})
	for _, keyImage := range keyImages {
		mempoolTransaction, ok := mp.keyImages[keyImage]
		if !ok {
			continue
		}
		if _, ok := seen[mempoolTransaction.Hash]; ok {
			continue
		}
		seen[mempoolTransaction.Hash] = struct{}{}
		conflicting = append(conflicting, mempoolTransaction.Hash)
	}
	mp.removeTransactions(conflicting, externalapi.DeletionReasonNotActual)
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *mempool) insertTransaction(transaction *consensusmodel.PoolTransaction) error {
	if _, ok := mp.allTransactions[transaction.Hash]; ok {
		return errors.Wrapf(ruleerrors.ErrTransactionAlreadyInPool, "transaction %s", transaction.Hash)
	}
	keyImages := transaction.Transaction.KeyImages()
	for _, keyImage := range keyImages {
		if spender, ok := mp.keyImages[keyImage]; ok {
			return errors.Wrapf(ruleerrors.ErrInputKeyImageAlreadySpent, "key image %s is spent by pool "+
				"transaction %s", keyImage, spender.Hash)
		}
	}

	mempoolTransaction := &model.MempoolTransaction{
		PoolTransaction: transaction,
		ReceiveTime:     mp.clock.Now(),
	}
	extra, err := serialization.ParseTransactionExtra(transaction.Transaction.Extra)
	if err == nil {
		mempoolTransaction.PaymentID = extra.PaymentID
	}

	err = mp.orderedTransactions.Push(mempoolTransaction)
	if err != nil {
		return err
	}
	mp.allTransactions[transaction.Hash] = mempoolTransaction
	for _, keyImage := range keyImages {
		mp.keyImages[keyImage] = mempoolTransaction
	}
	if mempoolTransaction.PaymentID != nil {
		mp.paymentIDs[*mempoolTransaction.PaymentID] = append(mp.paymentIDs[*mempoolTransaction.PaymentID],
			transaction.Hash)
	}

	metrics.PoolTransactions.Set(float64(len(mp.allTransactions)))
	mp.sendEvent(&externalapi.TransactionAdded{TransactionHash: transaction.Hash})
	return nil
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *mempool) removeTransactions(transactionHashes []externalapi.DomainHash, reason externalapi.DeletionReason) {
	removed := make([]externalapi.DomainHash, 0, len(transactionHashes))
	for _, transactionHash := range transactionHashes {
		if mp.removeTransaction(transactionHash) {
			removed = append(removed, transactionHash)
		}
	}
	if len(removed) == 0 {
		return
	}

	log.Debugf("Removed %d transactions from the pool: %s", len(removed), reason)
	metrics.PoolTransactions.Set(float64(len(mp.allTransactions)))
	metrics.PoolDeletions.WithLabelValues(reason.String()).Add(float64(len(removed)))
	mp.sendEvent(&externalapi.TransactionDeleted{TransactionHashes: removed, Reason: reason})
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *mempool) removeTransaction(transactionHash externalapi.DomainHash) bool {
	mempoolTransaction, ok := mp.allTransactions[transactionHash]
	if !ok {
		return false
	}

	delete(mp.allTransactions, transactionHash)
	for _, keyImage := range mempoolTransaction.Transaction.KeyImages() {
		delete(mp.keyImages, keyImage)
	}
	if mempoolTransaction.PaymentID != nil {
		paymentID := *mempoolTransaction.PaymentID
		hashes := mp.paymentIDs[paymentID]
		for i, hash := range hashes {
			if hash == transactionHash {
				hashes = append(hashes[:i], hashes[i+1:]...)
				break
			}
		}
		if len(hashes) == 0 {
			delete(mp.paymentIDs, paymentID)
		} else {
			mp.paymentIDs[paymentID] = hashes
		}
	}

	err := mp.orderedTransactions.Remove(mempoolTransaction)
	if err != nil {
		// allTransactions and orderedTransactions always hold the same set
		panic(err)
	}
	return true
}
