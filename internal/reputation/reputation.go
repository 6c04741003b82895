// Package reputation implements the append-only address reputation store.
//
// A record exists only for addresses that have been reported; absence means
// clean. Report operations are the only mutators: they linearize per address
// and keep the report count monotone. The evaluator reads this store in its
// fail-fast phase, so lookups must never serve stale in-process state.
package reputation

import (
	"context"
	"errors"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Classification of a reported address. Clean addresses have no record.
type Classification string

const (
	ClassificationScam       Classification = "scam"
	ClassificationSuspicious Classification = "suspicious"
)

// Severity of the reported behaviour.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for max() comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity returns the severity for a wire string, defaulting to medium.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// Record is the persistent judgement about one address.
type Record struct {
	Address         chainaddr.CanonicalAddress `json:"address"`
	Classification  Classification             `json:"classification"`
	Severity        Severity                   `json:"severity"`
	Description     string                     `json:"description,omitempty"`
	ReportCount     int                        `json:"reportCount"`
	FirstReportedAt time.Time                  `json:"firstReportedAt"`
	LastReportedAt  time.Time                  `json:"lastReportedAt"`
}

// ErrUnavailable is returned when the backing storage cannot be reached.
// The evaluator treats it as a skip of the reputation checks, never a fail.
var ErrUnavailable = errors.New("reputation: store unavailable")

// DefaultListCap bounds ListTop results.
const DefaultListCap = 1000

// Store is the reputation persistence contract. Lookup returns (nil, nil)
// for clean addresses. Report operations are atomic per address: concurrent
// reports on the same address serialize to a total order with a monotone
// report count.
type Store interface {
	Lookup(ctx context.Context, addr chainaddr.CanonicalAddress) (*Record, error)
	ReportScam(ctx context.Context, addr chainaddr.CanonicalAddress, severity Severity, description string) (*Record, error)
	ReportSuspicious(ctx context.Context, addr chainaddr.CanonicalAddress, reason string) (*Record, error)
	ListTop(ctx context.Context, n int) ([]*Record, error)
}

// clampLimit applies the default cap to a caller-provided limit.
func clampLimit(n int) int {
	if n <= 0 || n > DefaultListCap {
		return DefaultListCap
	}
	return n
}
