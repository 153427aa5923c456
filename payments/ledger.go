package payments

import "sync"

// PendingPayment ties a gateway authority to the chat that initiated it.
type PendingPayment struct {
	ChatID      int64
	AmountToman int64
}

// Ledger tracks in-flight gateway payments between link creation and the
// callback hit. Entries are removed on resolve; abandoned links simply age
// out with the process.
type Ledger struct {
	mu      sync.Mutex
	pending map[string]PendingPayment
}

func NewLedger() *Ledger {
	return &Ledger{pending: make(map[string]PendingPayment)}
}

func (l *Ledger) Register(authority string, p PendingPayment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[authority] = p
}

// Resolve removes and returns the pending payment for an authority. The
// second return is false when the authority is unknown or already resolved.
func (l *Ledger) Resolve(authority string) (PendingPayment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pending[authority]
	if ok {
		delete(l.pending, authority)
	}
	return p, ok
}
