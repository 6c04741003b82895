package probe

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// ERC20 minimal ABI for transfer and balanceOf
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

const (
	// NativeTransferGas is the fixed gas cost of a plain value transfer,
	// used when estimation fails.
	NativeTransferGas = uint64(21000)

	// DefaultTokenGas is the fallback gas limit for ERC20 transfers.
	DefaultTokenGas = uint64(100000)

	// DefaultSpikeGwei is the gas price above which fees are flagged as
	// spiking.
	DefaultSpikeGwei = int64(100)
)

var weiPerGwei = big.NewInt(1_000_000_000)

// EthClient is the slice of go-ethereum's client the probe needs.
// *ethclient.Client satisfies it.
type EthClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMProbe reads balances, fees, code, and call results from an EVM chain.
// Token assets are resolved through a symbol → contract registry; anything
// else is treated as the native asset.
type EVMProbe struct {
	client   EthClient
	erc20    abi.ABI
	tokens   map[string]common.Address
	spikeWei *big.Int
}

// EVMOption configures the probe.
type EVMOption func(*EVMProbe)

// WithToken registers an ERC20 contract for a symbol.
func WithToken(symbol, contract string) EVMOption {
	return func(p *EVMProbe) {
		p.tokens[strings.ToUpper(symbol)] = common.HexToAddress(contract)
	}
}

// WithSpikeThreshold overrides the gas price (in gwei) above which
// estimates carry the spike flag.
func WithSpikeThreshold(gwei int64) EVMOption {
	return func(p *EVMProbe) {
		if gwei > 0 {
			p.spikeWei = new(big.Int).Mul(big.NewInt(gwei), weiPerGwei)
		}
	}
}

// NewEVMProbe creates a probe over an EVM client.
func NewEVMProbe(client EthClient, opts ...EVMOption) (*EVMProbe, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	p := &EVMProbe{
		client:   client,
		erc20:    parsed,
		tokens:   make(map[string]common.Address),
		spikeWei: new(big.Int).Mul(big.NewInt(DefaultSpikeGwei), weiPerGwei),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Compile-time interface check
var _ Client = (*EVMProbe)(nil)

func (p *EVMProbe) Balance(ctx context.Context, owner chainaddr.CanonicalAddress, a asset.Asset) (*big.Int, error) {
	addr := common.HexToAddress(owner.Value)

	contract, isToken := p.tokens[strings.ToUpper(a.Symbol)]
	if !isToken {
		bal, err := p.client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: balance: %v", ErrUnavailable, err)
		}
		return bal, nil
	}

	data, err := p.erc20.Pack("balanceOf", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}
	result, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: token balance: %v", ErrUnavailable, err)
	}
	return new(big.Int).SetBytes(result), nil
}

func (p *EVMProbe) EstimateFee(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*FeeEstimate, error) {
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gas price: %v", ErrUnavailable, err)
	}

	msg, fallbackGas, err := p.transferMsg(from, to, amount, a)
	if err != nil {
		return nil, err
	}
	units, err := p.client.EstimateGas(ctx, msg)
	if err != nil {
		// Estimation failing is not fatal for a fee projection.
		units = fallbackGas
	}

	return &FeeEstimate{
		PerUnit: gasPrice,
		Units:   units,
		Total:   new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(units)),
		Spike:   gasPrice.Cmp(p.spikeWei) > 0,
	}, nil
}

func (p *EVMProbe) IsContract(ctx context.Context, addr chainaddr.CanonicalAddress) (bool, error) {
	code, err := p.client.CodeAt(ctx, common.HexToAddress(addr.Value), nil)
	if err != nil {
		return false, fmt.Errorf("%w: code: %v", ErrUnavailable, err)
	}
	return len(code) > 0, nil
}

func (p *EVMProbe) Simulate(ctx context.Context, from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (*Simulation, error) {
	msg, _, err := p.transferMsg(from, to, amount, a)
	if err != nil {
		return nil, err
	}

	_, err = p.client.CallContract(ctx, msg, nil)
	if err == nil {
		return &Simulation{OK: true}, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("%w: simulate: %v", ErrUnavailable, err)
	}
	return classifyRevert(err), nil
}

// transferMsg builds the eth_call/eth_estimateGas message for the transfer
// and the gas limit to assume when estimation fails.
func (p *EVMProbe) transferMsg(from, to chainaddr.CanonicalAddress, amount *big.Int, a asset.Asset) (ethereum.CallMsg, uint64, error) {
	sender := common.HexToAddress(from.Value)
	recipient := common.HexToAddress(to.Value)

	contract, isToken := p.tokens[strings.ToUpper(a.Symbol)]
	if !isToken {
		return ethereum.CallMsg{
			From:  sender,
			To:    &recipient,
			Value: amount,
		}, NativeTransferGas, nil
	}

	data, err := p.erc20.Pack("transfer", recipient, amount)
	if err != nil {
		return ethereum.CallMsg{}, 0, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	return ethereum.CallMsg{
		From:  sender,
		To:    &contract,
		Value: big.NewInt(0),
		Data:  data,
	}, DefaultTokenGas, nil
}

// classifyRevert maps a node error from eth_call to a revert reason. Node
// error strings are not standardized, so this matches the phrasings geth
// and the common RPC providers emit.
func classifyRevert(err error) *Simulation {
	msg := strings.ToLower(err.Error())
	reason := RevertOther
	switch {
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"):
		reason = RevertInsufficientFunds
	case strings.Contains(msg, "intrinsic gas too low"),
		strings.Contains(msg, "out of gas"),
		strings.Contains(msg, "gas required exceeds"):
		reason = RevertGasTooLow
	}
	return &Simulation{OK: false, Reason: reason, Message: err.Error()}
}
