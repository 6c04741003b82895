// Package asset defines the asset descriptor and decimal amount math used
// across the evaluator. Amounts are carried as *big.Int in the asset's
// smallest unit (wei, satoshi, token base units) so no check ever does
// floating-point money arithmetic.
package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Amount parsing errors.
var (
	ErrEmptyAmount     = errors.New("asset: empty amount")
	ErrMalformedAmount = errors.New("asset: malformed amount")
	ErrNonPositive     = errors.New("asset: amount must be greater than zero")
	ErrTooPrecise      = errors.New("asset: amount has more fractional digits than the asset supports")
)

// Asset describes the asset being transferred. Native marks the chain's own
// coin, whose balance also pays the network fee; token assets pay fees in
// the native coin instead.
type Asset struct {
	Symbol   string              `json:"symbol"`
	Chain    chainaddr.ChainKind `json:"chain"`
	Decimals int                 `json:"decimals"`
	Native   bool                `json:"native,omitempty"`
}

// Validate checks the descriptor itself.
func (a Asset) Validate() error {
	if strings.TrimSpace(a.Symbol) == "" {
		return errors.New("asset: symbol is required")
	}
	if a.Decimals < 0 || a.Decimals > 77 {
		// 10^78 overflows 256 bits; nothing real comes close.
		return fmt.Errorf("asset: unsupported decimals %d", a.Decimals)
	}
	return nil
}

// ParseAmount converts a decimal string in the asset's natural unit to base
// units. Zero, negative, and malformed values are rejected; fractional
// digits beyond the asset's decimals are an error rather than silently
// truncated.
func ParseAmount(raw string, decimals int) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyAmount
	}
	if strings.HasPrefix(raw, "-") {
		return nil, ErrNonPositive
	}

	parts := strings.Split(raw, ".")
	var whole, frac string
	switch len(parts) {
	case 1:
		whole = parts[0]
	case 2:
		whole, frac = parts[0], parts[1]
		if frac == "" {
			return nil, ErrMalformedAmount
		}
	default:
		return nil, ErrMalformedAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, ErrMalformedAmount
	}
	if len(frac) > decimals {
		// Trailing zeros beyond the precision are harmless.
		if !isAllZeros(frac[decimals:]) {
			return nil, ErrTooPrecise
		}
		frac = frac[:decimals]
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, ErrMalformedAmount
	}
	result := new(big.Int).Mul(wholeInt, scale)

	if frac != "" {
		padded := frac + strings.Repeat("0", decimals-len(frac))
		fracInt, ok := new(big.Int).SetString(padded, 10)
		if !ok {
			return nil, ErrMalformedAmount
		}
		result.Add(result, fracInt)
	}

	if result.Sign() <= 0 {
		return nil, ErrNonPositive
	}
	return result, nil
}

// FormatAmount renders base units as a decimal string in the natural unit,
// trimming trailing fractional zeros.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Quo(amount, scale)
	rem := new(big.Int).Mod(amount, scale)
	if rem.Sign() == 0 {
		return whole.String()
	}
	frac := fmt.Sprintf("%0*s", decimals, rem.String())
	frac = strings.TrimRight(frac, "0")
	return whole.String() + "." + frac
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isAllZeros(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}
