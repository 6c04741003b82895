// Package chainaddr parses and canonicalizes blockchain addresses.
//
// Every address that enters the evaluator is reduced to a canonical form
// (chain kind + normalized string) before it is compared, stored, or looked
// up. Comparing caller-provided strings directly is the classic source of
// reputation-lookup misses, so nothing outside this package should touch a
// raw address.
package chainaddr

import (
	"errors"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

// ChainKind identifies the address family of a chain.
type ChainKind string

const (
	// ChainEVM covers Ethereum mainnet, testnets, L2s, and sidechains that
	// share the 20-byte hex address format.
	ChainEVM ChainKind = "evm"
	// ChainBitcoin covers Bitcoin mainnet and testnets (base58 and bech32).
	ChainBitcoin ChainKind = "bitcoin"
)

// Classification errors. Callers match with errors.Is.
var (
	ErrEmptyAddress = errors.New("chainaddr: empty address")
	ErrMalformed    = errors.New("chainaddr: malformed address")
	ErrWrongChain   = errors.New("chainaddr: address belongs to a different chain")
	ErrUnknownChain = errors.New("chainaddr: unknown chain kind")
)

var evmAddressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// CanonicalAddress is the chain-qualified, normalized form of an address.
// Equality and hashing are defined on (Chain, Value); Network records which
// network a Bitcoin address parsed under and is diagnostic only.
type CanonicalAddress struct {
	Chain   ChainKind `json:"chain"`
	Value   string    `json:"value"`
	Network string    `json:"network,omitempty"`
}

// Key returns the string used as the lookup key in every store.
func (a CanonicalAddress) Key() string {
	return string(a.Chain) + ":" + a.Value
}

// Equal reports whether two canonical addresses identify the same address.
func (a CanonicalAddress) Equal(b CanonicalAddress) bool {
	return a.Chain == b.Chain && a.Value == b.Value
}

// IsZero reports whether the address is unset.
func (a CanonicalAddress) IsZero() bool {
	return a.Value == ""
}

func (a CanonicalAddress) String() string { return a.Value }

// Classify parses raw for the given chain kind and returns its canonical
// form. EVM addresses are lowercased; Bitcoin addresses are preserved
// bit-exact (bech32 is case-sensitive) with the parsed network recorded.
// Pure: no I/O.
func Classify(raw string, chain ChainKind, network string) (CanonicalAddress, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CanonicalAddress{}, ErrEmptyAddress
	}

	switch chain {
	case ChainEVM:
		return classifyEVM(raw, network)
	case ChainBitcoin:
		return classifyBitcoin(raw, network)
	default:
		return CanonicalAddress{}, ErrUnknownChain
	}
}

func classifyEVM(raw, network string) (CanonicalAddress, error) {
	if !evmAddressRegex.MatchString(raw) {
		// A Bitcoin address submitted for an EVM chain is accidental
		// cross-chain reuse, not garbage.
		if decodesAsBitcoin(raw) {
			return CanonicalAddress{}, ErrWrongChain
		}
		return CanonicalAddress{}, ErrMalformed
	}
	return CanonicalAddress{
		Chain:   ChainEVM,
		Value:   strings.ToLower(raw),
		Network: network,
	}, nil
}

func classifyBitcoin(raw, network string) (CanonicalAddress, error) {
	if evmAddressRegex.MatchString(raw) {
		return CanonicalAddress{}, ErrWrongChain
	}

	params := bitcoinParams(network)
	addr, err := btcutil.DecodeAddress(raw, params)
	if err != nil {
		return CanonicalAddress{}, ErrMalformed
	}
	if !addr.IsForNet(params) {
		// Decodes, but under a different Bitcoin network than declared.
		return CanonicalAddress{}, ErrMalformed
	}
	return CanonicalAddress{
		Chain:   ChainBitcoin,
		Value:   raw,
		Network: params.Name,
	}, nil
}

// ChecksumMismatch reports whether an EVM address carries an EIP-55 checksum
// that does not verify. Mixed-case addresses claim a checksum; all-lower or
// all-upper addresses do not. A mismatch is a warning signal, never a
// classification failure.
func ChecksumMismatch(raw string) bool {
	if !evmAddressRegex.MatchString(raw) {
		return false
	}
	hexPart := raw[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return false
	}
	return common.HexToAddress(raw).Hex() != raw
}

func bitcoinParams(network string) *chaincfg.Params {
	switch strings.ToLower(network) {
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "signet":
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func decodesAsBitcoin(raw string) bool {
	for _, params := range []*chaincfg.Params{&chaincfg.MainNetParams, &chaincfg.TestNet3Params} {
		if _, err := btcutil.DecodeAddress(raw, params); err == nil {
			return true
		}
	}
	return false
}
