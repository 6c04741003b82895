package addressbook

import (
	"context"
	"sync"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// MemoryReader is an in-memory Reader for demo/test use.
type MemoryReader struct {
	mu      sync.RWMutex
	entries map[string]*Entry // walletID|addressKey
}

// NewMemoryReader creates an empty in-memory address book.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{entries: make(map[string]*Entry)}
}

// Put seeds an entry. Only used by the demo server and tests; production
// address-book writes happen in the wallet application.
func (r *MemoryReader) Put(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.WalletID+"|"+e.Address.Key()] = &e
}

func (r *MemoryReader) Find(ctx context.Context, walletID string, addr chainaddr.CanonicalAddress) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[walletID+"|"+addr.Key()]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}
