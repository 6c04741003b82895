package asset

import (
	"strings"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Registry resolves asset symbols per chain. Symbols are matched
// case-insensitively.
type Registry struct {
	assets map[string]Asset
}

// NewRegistry creates a registry holding the given assets.
func NewRegistry(assets ...Asset) *Registry {
	r := &Registry{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		r.assets[registryKey(a.Chain, a.Symbol)] = a
	}
	return r
}

// Resolve returns the asset for a chain and symbol.
func (r *Registry) Resolve(chain chainaddr.ChainKind, symbol string) (Asset, bool) {
	a, ok := r.assets[registryKey(chain, symbol)]
	return a, ok
}

func registryKey(chain chainaddr.ChainKind, symbol string) string {
	return string(chain) + ":" + strings.ToUpper(strings.TrimSpace(symbol))
}

// DefaultRegistry returns the assets supported out of the box.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Asset{Symbol: "ETH", Chain: chainaddr.ChainEVM, Decimals: 18, Native: true},
		Asset{Symbol: "USDC", Chain: chainaddr.ChainEVM, Decimals: 6},
		Asset{Symbol: "BTC", Chain: chainaddr.ChainBitcoin, Decimals: 8, Native: true},
	)
}
