// Package probe reads live chain state for advisory checks: balances, fee
// estimates, contract detection, and transfer simulation. Every probe call
// is best-effort; callers treat ErrUnavailable as "skip the check", never as
// a validation failure.
package probe

import (
	"context"
	"errors"
	"math/big"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

var (
	// ErrUnavailable means the chain endpoint could not answer in time.
	ErrUnavailable = errors.New("probe: chain client unavailable")
	// ErrUnsupportedAsset means the client has no way to read this asset.
	ErrUnsupportedAsset = errors.New("probe: asset not supported on this chain")
)

// FeeEstimate is the projected cost of sending the transaction now.
// PerUnit is wei-per-gas on EVM chains and sat-per-vbyte on Bitcoin.
type FeeEstimate struct {
	PerUnit *big.Int `json:"perUnit"`
	Units   uint64   `json:"units"`
	Total   *big.Int `json:"total"` // base units of the native asset
	Spike   bool     `json:"spike"` // fee level abnormally high right now
}

// RevertReason classifies why a simulated transfer would fail.
type RevertReason string

const (
	RevertInsufficientFunds RevertReason = "insufficient_funds"
	RevertGasTooLow         RevertReason = "gas_too_low"
	RevertOther             RevertReason = "other"
)

// Simulation is the outcome of a dry-run transfer.
type Simulation struct {
	OK      bool         `json:"ok"`
	Reason  RevertReason `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Client reads chain state for one chain. Implementations wrap an EVM RPC
// endpoint or a Bitcoin explorer API.
type Client interface {
	// Balance returns the owner's spendable balance of the asset in base units.
	Balance(ctx context.Context, owner chainaddr.CanonicalAddress, a asset.Asset) (*big.Int, error)
	// EstimateFee projects the network fee for sending amount from from to to.
	EstimateFee(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*FeeEstimate, error)
	// IsContract reports whether the address holds code. Always false on
	// chains without contracts.
	IsContract(ctx context.Context, addr chainaddr.CanonicalAddress) (bool, error)
	// Simulate dry-runs the transfer without broadcasting it.
	Simulate(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*Simulation, error)
}
