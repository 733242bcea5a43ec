package orchestrator

import "sync"

// subscriptionLocks serializes mutations per subscription. Operations on
// different subscriptions proceed in parallel; the at-most-one-pending-action
// invariant and the ledger debit ordering require a single logical owner per
// subscription.
type subscriptionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSubscriptionLocks() *subscriptionLocks {
	return &subscriptionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-subscription mutex and returns its unlock func.
func (l *subscriptionLocks) Lock(subscriptionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[subscriptionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[subscriptionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
