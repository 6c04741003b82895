package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// record is one stored transaction, either direction.
type record struct {
	counterparty chainaddr.CanonicalAddress
	assetSymbol  string
	outgoing     bool
	send         Send
}

// MemoryReader is an in-memory Reader for demo/test use.
type MemoryReader struct {
	mu      sync.RWMutex
	records map[string][]record // walletID → records
}

// NewMemoryReader creates an empty in-memory history reader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{records: make(map[string][]record)}
}

// AddOutgoing seeds an outgoing send.
func (r *MemoryReader) AddOutgoing(walletID string, a asset.Asset, s Send) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[walletID] = append(r.records[walletID], record{
		counterparty: s.To,
		assetSymbol:  a.Symbol,
		outgoing:     true,
		send:         s,
	})
}

// AddIncoming seeds an incoming transfer from the given counterparty.
func (r *MemoryReader) AddIncoming(walletID string, from chainaddr.CanonicalAddress, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[walletID] = append(r.records[walletID], record{
		counterparty: from,
		outgoing:     false,
		send:         Send{Timestamp: at, Status: StatusConfirmed},
	})
}

func (r *MemoryReader) OutgoingSends(ctx context.Context, walletID string, a asset.Asset, limit int) ([]Send, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Send
	for _, rec := range r.records[walletID] {
		if rec.outgoing && rec.assetSymbol == a.Symbol {
			out = append(out, rec.send)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryReader) Counterparties(ctx context.Context, walletID string, since time.Time) (map[string]chainaddr.CanonicalAddress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]chainaddr.CanonicalAddress)
	for _, rec := range r.records[walletID] {
		if rec.send.Timestamp.Before(since) {
			continue
		}
		set[rec.counterparty.Key()] = rec.counterparty
	}
	return set, nil
}
