package mempool

import (
	"time"

	"github.com/cnchain/cnd/domain/consensus/model/externalapi"
	"github.com/cnchain/cnd/domain/miningmanager/mempool/model"
	"github.com/lightningnetwork/lnd/ticker"
)

func (mp *mempool) Start(revalidate RevalidateFunc) {
	mp.mtx.Lock()
	mp.revalidate = revalidate
	mp.cleanTicker = ticker.New(mp.config.CleanInterval)
	mp.mtx.Unlock()

	mp.cleanTicker.Resume()
	mp.wg.Add(1)
	spawn("mempool.cleaner", func() {
		defer mp.wg.Done()
		for {
			select {
			case <-mp.cleanTicker.Ticks():
				mp.Clean()
			case <-mp.quit:
				return
			}
		}
	})
	log.Infof("Pool cleaner started, cleaning every %s", mp.config.CleanInterval)
}

func (mp *mempool) Stop() {
	close(mp.quit)
	mp.wg.Wait()
	if mp.cleanTicker != nil {
		mp.cleanTicker.Stop()
	}
}

// Clean revalidates without holding the pool lock: revalidation reads the
// chain, whose lock is always taken before the pool's.
func (mp *mempool) Clean() {
	now := mp.clock.Now()

	mp.mtx.Lock()
	var outdated []externalapi.DomainHash
	var remaining []*model.MempoolTransaction
	for _, mempoolTransaction := range mp.orderedTransactions.Transactions() {
		if now.Sub(mempoolTransaction.ReceiveTime) >= mp.config.TransactionLifetime {
			outdated = append(outdated, mempoolTransaction.Hash)
			continue
		}
		remaining = append(remaining, mempoolTransaction)
	}
	mp.forgetDeleted(outdated, now)
	mp.removeTransactions(outdated, externalapi.DeletionReasonOutdated)
	revalidate := mp.revalidate
	mp.mtx.Unlock()

	var invalid []externalapi.DomainHash
	if revalidate != nil {
		for _, mempoolTransaction := range remaining {
			err := revalidate(mempoolTransaction.PoolTransaction)
			if err != nil {
				log.Debugf("Pool transaction %s is no longer valid: %s", mempoolTransaction.Hash, err)
				invalid = append(invalid, mempoolTransaction.Hash)
			}
		}
	}

	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	invalid = mp.filterPresent(invalid)
	mp.forgetDeleted(invalid, now)
	mp.removeTransactions(invalid, externalapi.DeletionReasonPoolCleanProcedure)
	for transactionHash, deletedAt := range mp.recentlyDeleted {
		if now.Sub(deletedAt) >= mp.config.TransactionLifetime {
			delete(mp.recentlyDeleted, transactionHash)
		}
	}
	if len(outdated)+len(invalid) > 0 {
		log.Infof("Pool cleaner deleted %d outdated and %d invalid transactions", len(outdated), len(invalid))
	}
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *mempool) forgetDeleted(transactionHashes []externalapi.DomainHash, now time.Time) {
	for _, transactionHash := range transactionHashes {
		mp.recentlyDeleted[transactionHash] = now
	}
}

// this function MUST be called with the mempool mutex locked for reads
func (mp *mempool) filterPresent(transactionHashes []externalapi.DomainHash) []externalapi.DomainHash {
	present := transactionHashes[:0]
	for _, transactionHash := range transactionHashes {
		if _, ok := mp.allTransactions[transactionHash]; ok {
			present = append(present, transactionHash)
		}
	}
	return present
}
