// Package evaluator runs pre-flight risk checks on outgoing transactions.
//
// Evaluation is two-phased. The gate checks run first, in order, and any
// failure ends the evaluation immediately: a transaction to a malformed or
// scam-flagged address never touches a chain endpoint. The advisory checks
// then run concurrently under per-check deadlines; they may fail the verdict
// too (an uncovered balance, a predicted revert), but a check that cannot
// reach its dependency is skipped, never failed.
//
// A verdict is invalid exactly when at least one check failed. The single
// exception is the overall evaluation deadline: when it expires before the
// advisory checks finish, the verdict is invalid with risk level "unknown".
package evaluator

import (
	"math/big"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/probe"
)

// Check IDs, in the order they appear in every verdict.
const (
	CheckAddressParse         = "addressParse"
	CheckReputationBlock      = "reputationBlock"
	CheckReputationSuspicion  = "reputationSuspicion"
	CheckBalanceCoverage      = "balanceCoverage"
	CheckAmountSanity         = "amountSanity"
	CheckRecipientFamiliarity = "recipientFamiliarity"
	CheckFeeAdvisory          = "feeAdvisory"
	CheckDryRun               = "dryRun"
)

// gateChecks run sequentially and fail-fast; advisoryChecks run
// concurrently under per-check deadlines.
var (
	gateChecks     = []string{CheckAddressParse, CheckReputationBlock}
	advisoryChecks = []string{
		CheckReputationSuspicion,
		CheckBalanceCoverage,
		CheckAmountSanity,
		CheckRecipientFamiliarity,
		CheckFeeAdvisory,
		CheckDryRun,
	}
)

// Status of a single check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Severity grades a warn or fail outcome; it doubles as the verdict's risk
// level scale.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskUnknown is the risk level reported when evaluation timed out before
// the checks could finish. It is not a severity.
const RiskUnknown = "unknown"

// Rank orders severities for comparison.
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

func maxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// escalate bumps a severity one level, capped at critical.
func escalate(s Severity) Severity {
	switch s {
	case SeverityNone:
		return SeverityLow
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Request is one transaction to evaluate before signing.
type Request struct {
	WalletID string
	Chain    chainaddr.ChainKind
	Network  string
	From     string
	To       string
	Asset    asset.Asset
	Amount   string // decimal, natural units
}

// Outcome is the result of a single check.
type Outcome struct {
	ID       string         `json:"id"`
	Status   Status         `json:"status"`
	Severity Severity       `json:"severity,omitempty"`
	Message  string         `json:"message,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

func pass(id, message string) Outcome {
	return Outcome{ID: id, Status: StatusPass, Message: message}
}

func warn(id string, severity Severity, message string) Outcome {
	return Outcome{ID: id, Status: StatusWarn, Severity: severity, Message: message}
}

func fail(id string, severity Severity, message string) Outcome {
	return Outcome{ID: id, Status: StatusFail, Severity: severity, Message: message}
}

func skip(id, reason string) Outcome {
	return Outcome{
		ID:       id,
		Status:   StatusSkip,
		Message:  reason,
		Evidence: map[string]any{"reason": reason},
	}
}

// with attaches one evidence field.
func (o Outcome) with(key string, value any) Outcome {
	if o.Evidence == nil {
		o.Evidence = make(map[string]any)
	}
	o.Evidence[key] = value
	return o
}

// Verdict is the evaluation result for one transaction. Checks always holds
// one outcome per check ID, in the fixed check order.
type Verdict struct {
	Valid     bool               `json:"valid"`
	RiskLevel string             `json:"riskLevel"`
	Errors    []string           `json:"errors"`
	Warnings  []string           `json:"warnings"`
	Checks    []Outcome          `json:"checks"`
	Fee       *probe.FeeEstimate `json:"feeEstimate,omitempty"`
}

// Outcome returns the outcome for a check ID, or a zero Outcome if absent.
func (v *Verdict) Outcome(id string) Outcome {
	for _, o := range v.Checks {
		if o.ID == id {
			return o
		}
	}
	return Outcome{}
}

// mulPct multiplies an amount by a whole percentage without leaving integer
// math.
func mulPct(amount *big.Int, pct int64) *big.Int {
	return new(big.Int).Div(
		new(big.Int).Mul(amount, big.NewInt(pct)),
		big.NewInt(100),
	)
}
