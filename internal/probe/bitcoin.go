package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

const (
	// estimatedTxVBytes is the size assumed for a one-input two-output
	// segwit spend when projecting fees.
	estimatedTxVBytes = uint64(140)

	// DefaultSpikeSatPerVByte is the fee rate above which estimates carry
	// the spike flag.
	DefaultSpikeSatPerVByte = int64(100)
)

// ExplorerClient is the slice of a Bitcoin block explorer API the probe
// needs.
type ExplorerClient interface {
	// AddressBalance returns the confirmed balance of an address in satoshi.
	AddressBalance(ctx context.Context, address string) (*big.Int, error)
	// FeeRate returns the current fee rate in sat/vB for near-term
	// confirmation.
	FeeRate(ctx context.Context) (int64, error)
}

// BitcoinProbe reads balances and fee rates through an explorer API.
// Bitcoin has no contracts and no general pre-flight execution, so
// IsContract is always false and Simulate always succeeds; coverage
// problems surface through the balance check instead.
type BitcoinProbe struct {
	explorer   ExplorerClient
	spikeSatVB int64
}

// BitcoinOption configures the probe.
type BitcoinOption func(*BitcoinProbe)

// WithFeeRateSpike overrides the sat/vB rate above which estimates carry
// the spike flag.
func WithFeeRateSpike(satPerVByte int64) BitcoinOption {
	return func(p *BitcoinProbe) {
		if satPerVByte > 0 {
			p.spikeSatVB = satPerVByte
		}
	}
}

// NewBitcoinProbe creates a probe over an explorer client.
func NewBitcoinProbe(explorer ExplorerClient, opts ...BitcoinOption) *BitcoinProbe {
	p := &BitcoinProbe{
		explorer:   explorer,
		spikeSatVB: DefaultSpikeSatPerVByte,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compile-time interface check
var _ Client = (*BitcoinProbe)(nil)

func (p *BitcoinProbe) Balance(ctx context.Context, owner chainaddr.CanonicalAddress, a asset.Asset) (*big.Int, error) {
	if !strings.EqualFold(a.Symbol, "BTC") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, a.Symbol)
	}
	return p.explorer.AddressBalance(ctx, owner.Value)
}

func (p *BitcoinProbe) EstimateFee(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*FeeEstimate, error) {
	rate, err := p.explorer.FeeRate(ctx)
	if err != nil {
		return nil, err
	}
	perUnit := big.NewInt(rate)
	return &FeeEstimate{
		PerUnit: perUnit,
		Units:   estimatedTxVBytes,
		Total:   new(big.Int).Mul(perUnit, new(big.Int).SetUint64(estimatedTxVBytes)),
		Spike:   rate > p.spikeSatVB,
	}, nil
}

func (p *BitcoinProbe) IsContract(ctx context.Context, addr chainaddr.CanonicalAddress) (bool, error) {
	return false, nil
}

func (p *BitcoinProbe) Simulate(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*Simulation, error) {
	return &Simulation{OK: true}, nil
}

// EsploraClient talks to an Esplora-compatible explorer API
// (blockstream.info and its self-hosted deployments).
type EsploraClient struct {
	baseURL string
	client  *http.Client
}

// NewEsploraClient creates an explorer client for the given base URL,
// e.g. "https://blockstream.info/api".
func NewEsploraClient(baseURL string) *EsploraClient {
	return &EsploraClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *EsploraClient) AddressBalance(ctx context.Context, address string) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/address/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: explorer: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: explorer returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var result struct {
		ChainStats struct {
			FundedSum uint64 `json:"funded_txo_sum"`
			SpentSum  uint64 `json:"spent_txo_sum"`
		} `json:"chain_stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode balance response: %v", ErrUnavailable, err)
	}
	if result.ChainStats.SpentSum > result.ChainStats.FundedSum {
		return nil, fmt.Errorf("%w: explorer reported spent > funded", ErrUnavailable)
	}
	return new(big.Int).SetUint64(result.ChainStats.FundedSum - result.ChainStats.SpentSum), nil
}

func (c *EsploraClient) FeeRate(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fee-estimates", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: explorer: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: explorer returned status %d", ErrUnavailable, resp.StatusCode)
	}

	// Keys are confirmation targets in blocks, values sat/vB.
	var estimates map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&estimates); err != nil {
		return 0, fmt.Errorf("%w: decode fee estimates: %v", ErrUnavailable, err)
	}
	for _, target := range []string{"3", "6", "1"} {
		if rate, ok := estimates[target]; ok && rate > 0 {
			return int64(math.Ceil(rate)), nil
		}
	}
	return 0, fmt.Errorf("%w: no usable fee estimate", ErrUnavailable)
}
