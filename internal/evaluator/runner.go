package evaluator

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ayushns01/walletrix/internal/addressbook"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/history"
	"github.com/ayushns01/walletrix/internal/logging"
	"github.com/ayushns01/walletrix/internal/metrics"
	"github.com/ayushns01/walletrix/internal/probe"
	"github.com/ayushns01/walletrix/internal/reputation"
	"github.com/ayushns01/walletrix/internal/traces"
)

// Defaults for the runner's tunables.
const (
	DefaultPerCheckTimeout = 5 * time.Second
	DefaultOverallTimeout  = 15 * time.Second
	DefaultMaxConcurrent   = 4

	// DefaultBufferPct is the balance headroom required before the
	// coverage check passes without a warning: 110 means the balance must
	// exceed amount plus fee by 10%.
	DefaultBufferPct = int64(110)

	// DefaultDustSat is the Bitcoin dust warning threshold in satoshi.
	DefaultDustSat = int64(1000)
)

// Amounts above these multiples of the wallet's recent average send draw a
// medium and high warning respectively.
const (
	meanMultipleMedium = int64(3)
	meanMultipleHigh   = int64(10)
)

// Runner evaluates transactions against the configured stores and chain
// probes.
type Runner struct {
	reputation reputation.Store
	book       addressbook.Reader
	history    *history.Oracle
	probes     map[chainaddr.ChainKind]probe.Client

	perCheckTimeout time.Duration
	overallTimeout  time.Duration
	maxConcurrent   int
	bufferPct       int64
	dustSat         *big.Int
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithPerCheckTimeout bounds each advisory check.
func WithPerCheckTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.perCheckTimeout = d
		}
	}
}

// WithOverallTimeout bounds the whole evaluation.
func WithOverallTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.overallTimeout = d
		}
	}
}

// WithBalanceBuffer sets the coverage headroom as a whole percentage of
// amount plus fee (110 = 10% headroom).
func WithBalanceBuffer(pct int64) RunnerOption {
	return func(r *Runner) {
		if pct >= 100 {
			r.bufferPct = pct
		}
	}
}

// WithMaxConcurrent bounds how many advisory checks run at once.
func WithMaxConcurrent(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithDustThreshold sets the Bitcoin dust warning threshold in satoshi.
func WithDustThreshold(sat int64) RunnerOption {
	return func(r *Runner) {
		if sat > 0 {
			r.dustSat = big.NewInt(sat)
		}
	}
}

// NewRunner creates a runner. probes maps each supported chain kind to its
// client; chains without a probe get their chain-touching checks skipped.
func NewRunner(
	rep reputation.Store,
	book addressbook.Reader,
	hist *history.Oracle,
	probes map[chainaddr.ChainKind]probe.Client,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		reputation:      rep,
		book:            book,
		history:         hist,
		probes:          probes,
		perCheckTimeout: DefaultPerCheckTimeout,
		overallTimeout:  DefaultOverallTimeout,
		maxConcurrent:   DefaultMaxConcurrent,
		bufferPct:       DefaultBufferPct,
		dustSat:         big.NewInt(DefaultDustSat),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// state carries per-request intermediates shared across checks. The parse
// results and the reputation record are written during the gate phase and
// only read afterwards; the fee memo is the one field advisory checks share
// concurrently.
type state struct {
	r   *Runner
	req Request

	from   chainaddr.CanonicalAddress
	to     chainaddr.CanonicalAddress
	amount *big.Int // nil when unparseable
	amtErr error

	repRecord *reputation.Record
	repErr    error

	probe probe.Client // nil when the chain has no client configured

	feeMu   sync.Mutex
	feeDone bool
	fee     *probe.FeeEstimate
	feeErr  error
}

// feeEstimate fetches the fee projection once per request; the coverage and
// fee advisory checks share the result. The mutex is held across the fetch
// so an abandoned check goroutine can never race a later reader.
func (s *state) feeEstimate(ctx context.Context) (*probe.FeeEstimate, error) {
	s.feeMu.Lock()
	defer s.feeMu.Unlock()
	if !s.feeDone {
		s.feeDone = true
		if s.probe == nil || s.amount == nil {
			s.feeErr = probe.ErrUnavailable
		} else {
			s.fee, s.feeErr = s.probe.EstimateFee(ctx, s.from, s.to, s.amount, s.req.Asset)
		}
	}
	return s.fee, s.feeErr
}

// feeSnapshot reads the memo without fetching.
func (s *state) feeSnapshot() (*probe.FeeEstimate, error) {
	s.feeMu.Lock()
	defer s.feeMu.Unlock()
	return s.fee, s.feeErr
}

// Evaluate runs every check against the request and returns the verdict.
// It never returns an error: infrastructure trouble degrades to skipped
// checks or, past the overall deadline, to an unknown-risk verdict.
func (r *Runner) Evaluate(ctx context.Context, req Request) *Verdict {
	ctx, span := traces.StartSpan(ctx, "evaluator.evaluate",
		traces.WalletID(req.WalletID),
		traces.Chain(string(req.Chain)),
		traces.Amount(req.Amount),
	)
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.overallTimeout)
	defer cancel()

	st := &state{r: r, req: req, probe: r.probes[req.Chain]}

	// Gate phase: in order, first failure ends the evaluation.
	outcomes := make([]Outcome, 0, len(gateChecks)+len(advisoryChecks))
	for _, gate := range []struct {
		id string
		fn func(context.Context) Outcome
	}{
		{CheckAddressParse, st.checkAddressParse},
		{CheckReputationBlock, st.checkReputationBlock},
	} {
		o := gate.fn(ctx)
		metrics.CheckOutcomesTotal.WithLabelValues(gate.id, string(o.Status)).Inc()
		outcomes = append(outcomes, o)
		if o.Status == StatusFail {
			return r.finish(ctx, start, st, shortCircuit(outcomes))
		}
	}

	// Advisory phase: concurrent, individually timed out, never blocking
	// on a single slow dependency.
	checks := []struct {
		id string
		fn func(context.Context) Outcome
	}{
		{CheckReputationSuspicion, st.checkReputationSuspicion},
		{CheckBalanceCoverage, st.checkBalanceCoverage},
		{CheckAmountSanity, st.checkAmountSanity},
		{CheckRecipientFamiliarity, st.checkRecipientFamiliarity},
		{CheckFeeAdvisory, st.checkFeeAdvisory},
		{CheckDryRun, st.checkDryRun},
	}

	results := make([]Outcome, len(checks))
	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, id string, fn func(context.Context) Outcome) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.runAdvisory(ctx, id, fn)
		}(i, c.id, c.fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timedOut := false
	select {
	case <-done:
		// A deadline that expired while the last checks were finishing
		// still counts as a timeout; the skipped outcomes are not a
		// verdict the caller should act on.
		timedOut = ctx.Err() != nil
	case <-ctx.Done():
		timedOut = true
	}
	if timedOut {
		logging.L(ctx).Warn("evaluation timed out",
			"wallet_id", req.WalletID,
			"chain", req.Chain,
			"elapsed", time.Since(start),
		)
		metrics.ValidationsTotal.WithLabelValues(string(req.Chain), "timeout").Inc()
		metrics.ValidationDuration.Observe(time.Since(start).Seconds())
		return timeoutVerdict(outcomes)
	}

	outcomes = append(outcomes, results...)
	return r.finish(ctx, start, st, aggregate(outcomes))
}

// runAdvisory executes one advisory check under its own deadline. A check
// that overruns it is recorded as skipped; the goroutine is left to notice
// the cancellation and exit on its own.
func (r *Runner) runAdvisory(ctx context.Context, id string, fn func(context.Context) Outcome) Outcome {
	ctx, span := traces.StartSpan(ctx, "evaluator.check", traces.CheckID(id))
	defer span.End()

	checkCtx, cancel := context.WithTimeout(ctx, r.perCheckTimeout)
	defer cancel()

	out := make(chan Outcome, 1)
	go func() {
		out <- fn(checkCtx)
	}()

	var o Outcome
	select {
	case o = <-out:
	case <-checkCtx.Done():
		o = skip(id, "check timed out")
	}
	metrics.CheckOutcomesTotal.WithLabelValues(id, string(o.Status)).Inc()
	return o
}

func (r *Runner) finish(ctx context.Context, start time.Time, st *state, v *Verdict) *Verdict {
	if fee, err := st.feeSnapshot(); err == nil && fee != nil {
		v.Fee = fee
	}

	result := "valid"
	if !v.Valid {
		result = "invalid"
	}
	metrics.ValidationsTotal.WithLabelValues(string(st.req.Chain), result).Inc()
	metrics.ValidationDuration.Observe(time.Since(start).Seconds())

	logging.L(ctx).Info("transaction evaluated",
		"wallet_id", st.req.WalletID,
		"chain", st.req.Chain,
		"valid", v.Valid,
		"risk_level", v.RiskLevel,
		"elapsed", time.Since(start),
	)
	return v
}

// shortCircuit fills the remaining check slots with "not evaluated" skips
// after a gate failure.
func shortCircuit(completed []Outcome) *Verdict {
	outcomes := make([]Outcome, 0, len(gateChecks)+len(advisoryChecks))
	outcomes = append(outcomes, completed...)
	for _, id := range allCheckIDs()[len(completed):] {
		outcomes = append(outcomes, skip(id, "not evaluated"))
	}
	return aggregate(outcomes)
}
