package reputation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/syncutil"
)

// MemoryStore is an in-memory Store for demo/test use. Report operations
// take a per-address lock so concurrent reports on the same address
// serialize exactly like the Postgres row lock does.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	locks   syncutil.ShardedMutex
	now     func() time.Time
}

// NewMemoryStore creates an in-memory reputation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Lookup(ctx context.Context, addr chainaddr.CanonicalAddress) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[addr.Key()]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ReportScam(ctx context.Context, addr chainaddr.CanonicalAddress, severity Severity, description string) (*Record, error) {
	unlock := s.locks.Lock(addr.Key())
	defer unlock()
	return s.apply(addr, ClassificationScam, severity, description), nil
}

func (s *MemoryStore) ReportSuspicious(ctx context.Context, addr chainaddr.CanonicalAddress, reason string) (*Record, error) {
	unlock := s.locks.Lock(addr.Key())
	defer unlock()
	return s.apply(addr, ClassificationSuspicious, SeverityMedium, reason), nil
}

// apply performs the upsert under the per-address lock. Classification never
// downgrades from scam to suspicious; severity keeps the max; the count is
// monotone.
func (s *MemoryStore) apply(addr chainaddr.CanonicalAddress, class Classification, severity Severity, description string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[addr.Key()]
	if !ok {
		rec = &Record{
			Address:         addr,
			Classification:  class,
			Severity:        severity,
			Description:     description,
			ReportCount:     1,
			FirstReportedAt: now,
			LastReportedAt:  now,
		}
		s.records[addr.Key()] = rec
		cp := *rec
		return &cp
	}

	rec.ReportCount++
	rec.LastReportedAt = now
	rec.Severity = MaxSeverity(rec.Severity, severity)
	if class == ClassificationScam {
		rec.Classification = ClassificationScam
	}
	if description != "" {
		rec.Description = description
	}
	cp := *rec
	return &cp
}

func (s *MemoryStore) ListTop(ctx context.Context, n int) ([]*Record, error) {
	n = clampLimit(n)

	s.mu.RLock()
	all := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].ReportCount != all[j].ReportCount {
			return all[i].ReportCount > all[j].ReportCount
		}
		return all[i].Address.Key() < all[j].Address.Key()
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
