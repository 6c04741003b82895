package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/history"
	"github.com/ayushns01/walletrix/internal/logging"
	"github.com/ayushns01/walletrix/internal/probe"
	"github.com/ayushns01/walletrix/internal/reputation"
)

// checkAddressParse canonicalizes both endpoints and parses the amount for
// later checks. A recipient or sender that cannot be parsed fails the whole
// evaluation; a checksum mismatch on an otherwise valid recipient is only a
// warning.
func (s *state) checkAddressParse(ctx context.Context) Outcome {
	to, err := chainaddr.Classify(s.req.To, s.req.Chain, s.req.Network)
	if err != nil {
		return fail(CheckAddressParse, SeverityCritical, parseFailMessage("recipient", err))
	}
	s.to = to

	from, err := chainaddr.Classify(s.req.From, s.req.Chain, s.req.Network)
	if err != nil {
		return fail(CheckAddressParse, SeverityCritical, parseFailMessage("sender", err))
	}
	s.from = from

	// Parsed here so every later check shares one result; a bad amount is
	// amountSanity's failure to report, not this check's.
	s.amount, s.amtErr = asset.ParseAmount(s.req.Amount, s.req.Asset.Decimals)

	if s.req.Chain == chainaddr.ChainEVM && chainaddr.ChecksumMismatch(strings.TrimSpace(s.req.To)) {
		return warn(CheckAddressParse, SeverityLow,
			"recipient address fails its EIP-55 checksum; verify it was not retyped")
	}
	return pass(CheckAddressParse, "addresses parsed")
}

func parseFailMessage(role string, err error) string {
	switch {
	case errors.Is(err, chainaddr.ErrEmptyAddress):
		return role + " address is empty"
	case errors.Is(err, chainaddr.ErrWrongChain):
		return role + " address belongs to a different chain"
	case errors.Is(err, chainaddr.ErrUnknownChain):
		return "chain is not supported"
	default:
		return role + " address is malformed"
	}
}

// checkReputationBlock is the hard gate: a recipient reported as a scam
// blocks the send outright. The store being down does not; blocking on
// infrastructure trouble would freeze every wallet at once.
func (s *state) checkReputationBlock(ctx context.Context) Outcome {
	rec, err := s.r.reputation.Lookup(ctx, s.to)
	s.repRecord, s.repErr = rec, err
	if err != nil {
		logging.L(ctx).Warn("reputation lookup failed", "error", err)
		return skip(CheckReputationBlock, "reputation store unavailable")
	}
	if rec != nil && rec.Classification == reputation.ClassificationScam {
		return fail(CheckReputationBlock, SeverityCritical, "address flagged as scam").
			with("reportCount", rec.ReportCount).
			with("severity", string(rec.Severity))
	}
	return pass(CheckReputationBlock, "recipient is not on the scam list")
}

// checkReputationSuspicion surfaces suspicious (but not scam) reports as a
// warning, reusing the gate phase's lookup.
func (s *state) checkReputationSuspicion(ctx context.Context) Outcome {
	if s.repErr != nil {
		return skip(CheckReputationSuspicion, "reputation store unavailable")
	}
	rec := s.repRecord
	if rec == nil || rec.Classification != reputation.ClassificationSuspicious {
		return pass(CheckReputationSuspicion, "no suspicion reports for recipient")
	}
	return warn(CheckReputationSuspicion, SeverityHigh,
		fmt.Sprintf("recipient has %d suspicion report(s)", rec.ReportCount)).
		with("reportCount", rec.ReportCount).
		with("reportedSeverity", string(rec.Severity))
}

// checkAmountSanity fails malformed or non-positive amounts and warns on
// outliers against the wallet's recent average send.
func (s *state) checkAmountSanity(ctx context.Context) Outcome {
	if s.amtErr != nil {
		return fail(CheckAmountSanity, SeverityHigh, amountFailMessage(s.amtErr))
	}

	if s.req.Chain == chainaddr.ChainBitcoin && s.amount.Cmp(s.r.dustSat) < 0 {
		return warn(CheckAmountSanity, SeverityLow,
			"amount is below the dust threshold and may be unspendable").
			with("dustThresholdSat", s.r.dustSat.String())
	}

	stats, err := s.r.history.OutgoingStats(ctx, s.req.WalletID, s.req.Asset)
	if err != nil {
		logging.L(ctx).Warn("history stats failed", "error", err)
		return pass(CheckAmountSanity, "amount parsed; spending history unavailable")
	}
	if stats == nil {
		return pass(CheckAmountSanity, "amount parsed; no spending history to compare against")
	}

	highCeiling := new(big.Int).Mul(stats.Mean, big.NewInt(meanMultipleHigh))
	medCeiling := new(big.Int).Mul(stats.Mean, big.NewInt(meanMultipleMedium))
	switch {
	case s.amount.Cmp(highCeiling) > 0:
		return warn(CheckAmountSanity, SeverityHigh,
			fmt.Sprintf("amount is more than %d times the recent average send", meanMultipleHigh)).
			with("recentMean", asset.FormatAmount(stats.Mean, s.req.Asset.Decimals)).
			with("sampleCount", stats.Count)
	case s.amount.Cmp(medCeiling) > 0:
		return warn(CheckAmountSanity, SeverityMedium,
			fmt.Sprintf("amount is more than %d times the recent average send", meanMultipleMedium)).
			with("recentMean", asset.FormatAmount(stats.Mean, s.req.Asset.Decimals)).
			with("sampleCount", stats.Count)
	}
	return pass(CheckAmountSanity, "amount is in line with recent activity")
}

func amountFailMessage(err error) string {
	switch {
	case errors.Is(err, asset.ErrEmptyAmount):
		return "amount is empty"
	case errors.Is(err, asset.ErrNonPositive):
		return "amount must be greater than zero"
	case errors.Is(err, asset.ErrTooPrecise):
		return "amount has more decimal places than the asset supports"
	default:
		return "amount is malformed"
	}
}

// checkBalanceCoverage verifies the sender can actually pay: amount plus
// fee for native sends, amount alone for tokens (the fee comes out of the
// native balance). A balance exactly equal to the requirement passes;
// anything strictly between the requirement and the headroom buffer is a
// warning.
func (s *state) checkBalanceCoverage(ctx context.Context) Outcome {
	if s.probe == nil {
		return skip(CheckBalanceCoverage, "no chain client configured")
	}
	if s.amount == nil {
		return skip(CheckBalanceCoverage, "amount unavailable")
	}

	balance, err := s.probe.Balance(ctx, s.from, s.req.Asset)
	if err != nil {
		logging.L(ctx).Warn("balance probe failed", "error", err)
		return skip(CheckBalanceCoverage, "balance unavailable")
	}

	required := new(big.Int).Set(s.amount)
	if s.req.Asset.Native {
		if fee, err := s.feeEstimate(ctx); err == nil {
			required.Add(required, fee.Total)
		}
	}

	decimals := s.req.Asset.Decimals
	if balance.Cmp(required) < 0 {
		return fail(CheckBalanceCoverage, SeverityCritical,
			"balance does not cover the amount plus network fee").
			with("balance", asset.FormatAmount(balance, decimals)).
			with("required", asset.FormatAmount(required, decimals))
	}
	if balance.Cmp(required) > 0 && balance.Cmp(mulPct(required, s.r.bufferPct)) < 0 {
		return warn(CheckBalanceCoverage, SeverityLow,
			"balance barely covers the amount plus network fee").
			with("balance", asset.FormatAmount(balance, decimals)).
			with("required", asset.FormatAmount(required, decimals))
	}
	return pass(CheckBalanceCoverage, "balance covers the transfer").
		with("balance", asset.FormatAmount(balance, decimals))
}

// checkRecipientFamiliarity asks whether the wallet has dealt with this
// recipient before: address book first, then the rolling activity window.
// A near-miss against a known counterparty is the strongest signal here;
// it is what a clipboard swap or typosquat looks like.
func (s *state) checkRecipientFamiliarity(ctx context.Context) Outcome {
	entry, err := s.r.book.Find(ctx, s.req.WalletID, s.to)
	if err != nil {
		logging.L(ctx).Warn("address book lookup failed", "error", err)
	} else if entry != nil {
		return pass(CheckRecipientFamiliarity, "recipient is in the address book").
			with("label", entry.Label).
			with("trusted", entry.Trusted)
	}

	counterparties, err := s.r.history.RecentCounterparties(ctx, s.req.WalletID)
	if err != nil {
		return skip(CheckRecipientFamiliarity, "transaction history unavailable")
	}
	if _, ok := counterparties[s.to.Key()]; ok {
		return pass(CheckRecipientFamiliarity, "recipient seen in recent activity")
	}
	for _, cp := range counterparties {
		if history.VisuallySimilar(s.to, cp) {
			return warn(CheckRecipientFamiliarity, SeverityHigh,
				"possible typosquat: recipient closely resembles a recent counterparty").
				with("resembles", cp.Value)
		}
	}
	return warn(CheckRecipientFamiliarity, SeverityMedium, "first-time recipient")
}

// checkFeeAdvisory warns when sending now is unusually expensive, either
// because the network fee level is spiking or because the fee is out of
// proportion to the amount.
func (s *state) checkFeeAdvisory(ctx context.Context) Outcome {
	if s.probe == nil {
		return skip(CheckFeeAdvisory, "no chain client configured")
	}
	if s.amount == nil {
		return skip(CheckFeeAdvisory, "amount unavailable")
	}

	fee, err := s.feeEstimate(ctx)
	if err != nil {
		logging.L(ctx).Warn("fee estimate failed", "error", err)
		return skip(CheckFeeAdvisory, "fee estimate unavailable")
	}

	if fee.Spike {
		return warn(CheckFeeAdvisory, SeverityLow,
			"network fees are spiking; consider waiting").
			with("perUnit", fee.PerUnit.String())
	}
	if s.req.Asset.Native {
		tenPct := mulPct(s.amount, 10)
		if fee.Total.Cmp(tenPct) > 0 {
			return warn(CheckFeeAdvisory, SeverityLow,
				"network fee exceeds 10% of the amount").
				with("fee", fee.Total.String())
		}
	}
	return pass(CheckFeeAdvisory, "network fees are at normal levels")
}

// checkDryRun simulates the transfer on EVM chains. A predicted revert
// fails the verdict: the chain has already told us the send will not go
// through as constructed.
func (s *state) checkDryRun(ctx context.Context) Outcome {
	if s.req.Chain != chainaddr.ChainEVM {
		return skip(CheckDryRun, "not applicable to this chain")
	}
	if s.probe == nil {
		return skip(CheckDryRun, "no chain client configured")
	}
	if s.amount == nil {
		return skip(CheckDryRun, "amount unavailable")
	}

	sim, err := s.probe.Simulate(ctx, s.from, s.to, s.amount, s.req.Asset)
	if err != nil {
		logging.L(ctx).Warn("simulation failed", "error", err)
		return skip(CheckDryRun, "simulation unavailable")
	}
	if !sim.OK {
		severity := SeverityHigh
		if sim.Reason == probe.RevertInsufficientFunds {
			severity = SeverityCritical
		}
		return fail(CheckDryRun, severity, dryRunMessage(sim)).
			with("revertReason", string(sim.Reason))
	}

	outcome := pass(CheckDryRun, "transfer simulated successfully")
	if isContract, err := s.probe.IsContract(ctx, s.to); err == nil && isContract {
		outcome = outcome.with("recipientIsContract", true)
	}
	return outcome
}

func dryRunMessage(sim *probe.Simulation) string {
	switch sim.Reason {
	case probe.RevertInsufficientFunds:
		return "would revert: insufficient funds"
	case probe.RevertGasTooLow:
		return "would revert: gas too low"
	default:
		if sim.Message != "" {
			return "would revert: " + sim.Message
		}
		return "would revert"
	}
}
