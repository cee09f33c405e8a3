package audit

import (
	"errors"
	"sync"
)

// ErrAuditInProgress signals a second audit request for a shipment whose
// audit is still running.
var ErrAuditInProgress = errors.New("audit already in progress for shipment")

// shipmentLocks is an in-process advisory lock keyed by tenant+shipment.
// It guarantees at most one in-flight audit per shipment per process.
type shipmentLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newShipmentLocks() *shipmentLocks {
	return &shipmentLocks{held: make(map[string]bool)}
}

// TryAcquire returns false when the key is already held.
func (l *shipmentLocks) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false
	}
	l.held[key] = true
	return true
}

func (l *shipmentLocks) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
