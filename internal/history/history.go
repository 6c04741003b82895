// Package history summarizes a wallet's recent transaction activity for the
// evaluator: who it transacted with lately and how much it usually sends.
// The summary is recomputed from the transaction store at each validation;
// nothing is cached between requests.
package history

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Defaults for the rolling window and the stats sample.
const (
	DefaultWindow      = 30 * 24 * time.Hour
	DefaultSampleCount = 20
)

// ErrUnavailable is returned when the transaction store cannot be reached.
var ErrUnavailable = errors.New("history: transaction store unavailable")

// Send is one outgoing transfer from the wallet's history.
type Send struct {
	To        chainaddr.CanonicalAddress
	Amount    *big.Int // base units
	Timestamp time.Time
	Status    string // "confirmed", "pending", "failed"
}

// StatusConfirmed marks sends that count toward outgoing stats.
const StatusConfirmed = "confirmed"

// Reader is the read-only transaction-history contract consumed by the
// oracle. Implementations wrap whatever store the wallet application keeps
// its transactions in.
type Reader interface {
	// OutgoingSends returns the most recent outgoing sends of the asset,
	// newest first, up to limit.
	OutgoingSends(ctx context.Context, walletID string, a asset.Asset, limit int) ([]Send, error)
	// Counterparties returns every address the wallet sent to or received
	// from since the given time, keyed by canonical key.
	Counterparties(ctx context.Context, walletID string, since time.Time) (map[string]chainaddr.CanonicalAddress, error)
}

// Stats are rolling send-amount statistics for one asset.
type Stats struct {
	Mean  *big.Int // base units
	Count int
}

// Oracle computes history summaries over a Reader.
type Oracle struct {
	reader      Reader
	window      time.Duration
	sampleCount int
	now         func() time.Time
}

// OracleOption configures the oracle.
type OracleOption func(*Oracle)

// WithWindow overrides the default 30-day counterparty window.
func WithWindow(d time.Duration) OracleOption {
	return func(o *Oracle) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithSampleCount overrides the default 20-send stats sample.
func WithSampleCount(n int) OracleOption {
	return func(o *Oracle) {
		if n >= 1 && n <= DefaultSampleCount {
			o.sampleCount = n
		}
	}
}

// NewOracle creates a history oracle over the given reader.
func NewOracle(reader Reader, opts ...OracleOption) *Oracle {
	o := &Oracle{
		reader:      reader,
		window:      DefaultWindow,
		sampleCount: DefaultSampleCount,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Window returns the configured rolling window.
func (o *Oracle) Window() time.Duration { return o.window }

// RecentCounterparties returns the addresses this wallet transacted with
// inside the rolling window.
func (o *Oracle) RecentCounterparties(ctx context.Context, walletID string) (map[string]chainaddr.CanonicalAddress, error) {
	set, err := o.reader.Counterparties(ctx, walletID, o.now().Add(-o.window))
	if err != nil {
		return nil, err
	}
	return set, nil
}

// OutgoingStats returns the arithmetic mean over up to sampleCount most
// recent confirmed outgoing sends of the asset. Returns (nil, nil) when the
// wallet has no confirmed sends of the asset.
func (o *Oracle) OutgoingStats(ctx context.Context, walletID string, a asset.Asset) (*Stats, error) {
	sends, err := o.reader.OutgoingSends(ctx, walletID, a, o.sampleCount)
	if err != nil {
		return nil, err
	}

	sum := new(big.Int)
	count := 0
	for _, s := range sends {
		if s.Status != StatusConfirmed || s.Amount == nil {
			continue
		}
		sum.Add(sum, s.Amount)
		count++
		if count == o.sampleCount {
			break
		}
	}
	if count < 1 {
		return nil, nil
	}
	return &Stats{
		Mean:  new(big.Int).Quo(sum, big.NewInt(int64(count))),
		Count: count,
	}, nil
}

// VisuallySimilar reports whether two distinct addresses look alike to a
// human: same first six characters after the canonical prefix and same last
// four, or the same string with exactly one character swapped out. This is a
// deliberately crude heuristic for typosquat and clipboard attacks; treat it
// as a black box.
func VisuallySimilar(a, b chainaddr.CanonicalAddress) bool {
	if a.Chain != b.Chain || a.Value == b.Value {
		return false
	}
	av := strings.TrimPrefix(a.Value, "0x")
	bv := strings.TrimPrefix(b.Value, "0x")
	if len(av) < 10 || len(bv) < 10 {
		return false
	}
	if av[:6] == bv[:6] && av[len(av)-4:] == bv[len(bv)-4:] {
		return true
	}
	return singleCharDiff(av, bv)
}

// singleCharDiff reports whether two equal-length strings differ in exactly
// one position.
func singleCharDiff(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	diff := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			diff++
			if diff > 1 {
				return false
			}
		}
	}
	return diff == 1
}
