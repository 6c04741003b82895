package probe

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/circuitbreaker"
)

// Guarded wraps a Client with a circuit breaker so that a dead endpoint
// fails fast instead of eating the per-check timeout on every request.
// Only availability errors count as failures; a simulated revert or an
// unsupported asset is a successful probe.
type Guarded struct {
	inner   Client
	breaker *circuitbreaker.Breaker
	key     string
}

// NewGuarded wraps inner with the given breaker under key (one key per
// chain endpoint).
func NewGuarded(inner Client, breaker *circuitbreaker.Breaker, key string) *Guarded {
	return &Guarded{inner: inner, breaker: breaker, key: key}
}

// Compile-time interface check
var _ Client = (*Guarded)(nil)

func (g *Guarded) Balance(ctx context.Context, owner chainaddr.CanonicalAddress, a asset.Asset) (*big.Int, error) {
	if !g.breaker.Allow(g.key) {
		return nil, g.rejected()
	}
	bal, err := g.inner.Balance(ctx, owner, a)
	g.record(err)
	return bal, err
}

func (g *Guarded) EstimateFee(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*FeeEstimate, error) {
	if !g.breaker.Allow(g.key) {
		return nil, g.rejected()
	}
	fee, err := g.inner.EstimateFee(ctx, from, to, amount, a)
	g.record(err)
	return fee, err
}

func (g *Guarded) IsContract(ctx context.Context, addr chainaddr.CanonicalAddress) (bool, error) {
	if !g.breaker.Allow(g.key) {
		return false, g.rejected()
	}
	isContract, err := g.inner.IsContract(ctx, addr)
	g.record(err)
	return isContract, err
}

func (g *Guarded) Simulate(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*Simulation, error) {
	if !g.breaker.Allow(g.key) {
		return nil, g.rejected()
	}
	sim, err := g.inner.Simulate(ctx, from, to, amount, a)
	g.record(err)
	return sim, err
}

func (g *Guarded) rejected() error {
	return fmt.Errorf("%w: circuit open for %s", ErrUnavailable, g.key)
}

func (g *Guarded) record(err error) {
	if err != nil && errors.Is(err, ErrUnavailable) {
		g.breaker.RecordFailure(g.key)
		return
	}
	g.breaker.RecordSuccess(g.key)
}
