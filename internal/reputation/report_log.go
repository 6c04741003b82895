package reputation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/syncutil"
)

// MemoryReportLog is an in-memory ReportLog for demo/test use.
type MemoryReportLog struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	locks syncutil.ShardedMutex
	now   func() time.Time
}

// NewMemoryReportLog creates an in-memory report log.
func NewMemoryReportLog() *MemoryReportLog {
	return &MemoryReportLog{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *MemoryReportLog) Claim(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string, window time.Duration) (bool, error) {
	key := addr.Key() + "|" + reporter
	unlock := l.locks.Lock(key)
	defer unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.seen[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	l.seen[key] = now
	return true, nil
}

func (l *MemoryReportLog) Release(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string) error {
	key := addr.Key() + "|" + reporter
	unlock := l.locks.Lock(key)
	defer unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.seen, key)
	return nil
}

// PostgresReportLog persists report markers with UNIQUE(address, reporter).
// The claim is a single conditional upsert, so two racing reports by the
// same reporter cannot both count.
type PostgresReportLog struct {
	db *sql.DB
}

// NewPostgresReportLog creates a PostgreSQL-backed report log.
func NewPostgresReportLog(db *sql.DB) *PostgresReportLog {
	return &PostgresReportLog{db: db}
}

func (l *PostgresReportLog) Claim(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string, window time.Duration) (bool, error) {
	const q = `
		INSERT INTO scam_reports (address, reporter, reported_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address, reporter) DO UPDATE SET reported_at = NOW()
			WHERE scam_reports.reported_at < NOW() - $3::interval`

	res, err := l.db.ExecContext(ctx, q, addr.Key(), reporter, fmt.Sprintf("%d seconds", int64(window.Seconds())))
	if err != nil {
		return false, fmt.Errorf("%w: claim report: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: claim report: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Release deletes the reporter's claim row. A retry after a failed store
// write then counts as a fresh report rather than a duplicate.
func (l *PostgresReportLog) Release(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string) error {
	const q = `DELETE FROM scam_reports WHERE address = $1 AND reporter = $2`
	if _, err := l.db.ExecContext(ctx, q, addr.Key(), reporter); err != nil {
		return fmt.Errorf("%w: release report claim: %v", ErrUnavailable, err)
	}
	return nil
}
