package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/idgen"
	"github.com/ayushns01/walletrix/internal/logging"
	"github.com/ayushns01/walletrix/internal/traces"
)

// DefaultDedupeWindow is how long a repeat report from the same reporter is
// treated as a duplicate and does not increment the count.
const DefaultDedupeWindow = 24 * time.Hour

// ReportLog tracks which reporter last reported which address, so repeat
// reports inside the dedupe window are idempotent.
type ReportLog interface {
	// Claim records a report attempt by reporter against addr. It returns
	// true when the report should count (first report, or the previous one
	// is older than window) and false for a duplicate inside the window.
	Claim(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string, window time.Duration) (bool, error)

	// Release drops the reporter's claim on addr so a retry counts again.
	// Called when the store write behind a successful claim failed.
	Release(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string) error
}

// Receipt acknowledges an accepted report. Duplicate reports are
// acknowledged without incrementing the count.
type Receipt struct {
	ID             string                     `json:"id"`
	Address        chainaddr.CanonicalAddress `json:"address"`
	Classification Classification             `json:"classification"`
	ReportCount    int                        `json:"reportCount"`
	Duplicate      bool                       `json:"duplicate"`
	ReportedAt     time.Time                  `json:"reportedAt"`
}

// Ingestor is the only write path into the reputation store. Writes are
// durable before the receipt is returned; they are not cancellable once the
// store has been asked to persist.
type Ingestor struct {
	store        Store
	log          ReportLog
	dedupeWindow time.Duration
	now          func() time.Time
}

// IngestorOption configures the ingestor.
type IngestorOption func(*Ingestor)

// WithDedupeWindow overrides the default 24h dedupe window.
func WithDedupeWindow(d time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if d > 0 {
			i.dedupeWindow = d
		}
	}
}

// NewIngestor creates the report ingestor over a store and a report log.
func NewIngestor(store Store, log ReportLog, opts ...IngestorOption) *Ingestor {
	ing := &Ingestor{
		store:        store,
		log:          log,
		dedupeWindow: DefaultDedupeWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// ReportScam canonicalizes the raw address and records a scam report from
// the given reporter. Repeat reports by the same reporter inside the dedupe
// window return a duplicate receipt and leave the count unchanged.
func (i *Ingestor) ReportScam(ctx context.Context, raw string, chain chainaddr.ChainKind, network string, severity Severity, description, reporter string) (*Receipt, error) {
	addr, err := chainaddr.Classify(raw, chain, network)
	if err != nil {
		return nil, fmt.Errorf("reputation: report rejected: %w", err)
	}
	if reporter == "" {
		return nil, fmt.Errorf("reputation: reporter identity is required")
	}

	ctx, span := traces.StartSpan(ctx, "reputation.report_scam", traces.Address(addr.Key()))
	defer span.End()

	counts, err := i.log.Claim(ctx, addr, reporter, i.dedupeWindow)
	if err != nil {
		return nil, err
	}

	if !counts {
		rec, err := i.store.Lookup(ctx, addr)
		if err != nil {
			return nil, err
		}
		count := 0
		class := ClassificationScam
		if rec != nil {
			count = rec.ReportCount
			class = rec.Classification
		}
		logging.L(ctx).Info("duplicate scam report ignored",
			slog.String("address", addr.Key()), slog.String("reporter", reporter))
		return &Receipt{
			ID:             idgen.WithPrefix("rpt_"),
			Address:        addr,
			Classification: class,
			ReportCount:    count,
			Duplicate:      true,
			ReportedAt:     i.now(),
		}, nil
	}

	rec, err := i.store.ReportScam(ctx, addr, severity, description)
	if err != nil {
		i.releaseClaim(ctx, addr, reporter)
		return nil, err
	}
	logging.L(ctx).Info("scam report recorded",
		slog.String("address", addr.Key()),
		slog.String("severity", string(rec.Severity)),
		slog.Int("report_count", rec.ReportCount))
	return &Receipt{
		ID:             idgen.WithPrefix("rpt_"),
		Address:        addr,
		Classification: rec.Classification,
		ReportCount:    rec.ReportCount,
		Duplicate:      false,
		ReportedAt:     rec.LastReportedAt,
	}, nil
}

// ReportSuspicious records a suspicious-activity report. Same dedupe
// semantics as ReportScam; an existing scam classification is preserved.
func (i *Ingestor) ReportSuspicious(ctx context.Context, raw string, chain chainaddr.ChainKind, network, reason, reporter string) (*Receipt, error) {
	addr, err := chainaddr.Classify(raw, chain, network)
	if err != nil {
		return nil, fmt.Errorf("reputation: report rejected: %w", err)
	}
	if reporter == "" {
		return nil, fmt.Errorf("reputation: reporter identity is required")
	}

	ctx, span := traces.StartSpan(ctx, "reputation.report_suspicious", traces.Address(addr.Key()))
	defer span.End()

	counts, err := i.log.Claim(ctx, addr, reporter, i.dedupeWindow)
	if err != nil {
		return nil, err
	}
	if !counts {
		rec, err := i.store.Lookup(ctx, addr)
		if err != nil {
			return nil, err
		}
		count := 0
		class := ClassificationSuspicious
		if rec != nil {
			count = rec.ReportCount
			class = rec.Classification
		}
		return &Receipt{
			ID:             idgen.WithPrefix("rpt_"),
			Address:        addr,
			Classification: class,
			ReportCount:    count,
			Duplicate:      true,
			ReportedAt:     i.now(),
		}, nil
	}

	rec, err := i.store.ReportSuspicious(ctx, addr, reason)
	if err != nil {
		i.releaseClaim(ctx, addr, reporter)
		return nil, err
	}
	return &Receipt{
		ID:             idgen.WithPrefix("rpt_"),
		Address:        addr,
		Classification: rec.Classification,
		ReportCount:    rec.ReportCount,
		Duplicate:      false,
		ReportedAt:     rec.LastReportedAt,
	}, nil
}

// releaseClaim undoes a claim whose store write failed, so the reporter's
// retry is counted instead of answered as a duplicate.
func (i *Ingestor) releaseClaim(ctx context.Context, addr chainaddr.CanonicalAddress, reporter string) {
	if err := i.log.Release(ctx, addr, reporter); err != nil {
		logging.L(ctx).Warn("failed to release report claim",
			slog.String("address", addr.Key()), slog.String("reporter", reporter),
			slog.String("error", err.Error()))
	}
}

// ListScam returns the most-reported addresses, capped at the store limit.
func (i *Ingestor) ListScam(ctx context.Context, n int) ([]*Record, error) {
	return i.store.ListTop(ctx, n)
}
