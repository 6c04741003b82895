package probe

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/circuitbreaker"
)

// mockEthClient implements EthClient with overridable behavior.
type mockEthClient struct {
	balanceAt       func(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	suggestGasPrice func(ctx context.Context) (*big.Int, error)
	estimateGas     func(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	codeAt          func(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	callContract    func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func (m *mockEthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if m.balanceAt != nil {
		return m.balanceAt(ctx, account, blockNumber)
	}
	return big.NewInt(0), nil
}

func (m *mockEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.suggestGasPrice != nil {
		return m.suggestGasPrice(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (m *mockEthClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if m.estimateGas != nil {
		return m.estimateGas(ctx, call)
	}
	return NativeTransferGas, nil
}

func (m *mockEthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if m.codeAt != nil {
		return m.codeAt(ctx, account, blockNumber)
	}
	return nil, nil
}

func (m *mockEthClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.callContract != nil {
		return m.callContract(ctx, call, blockNumber)
	}
	return nil, nil
}

var (
	ethAsset  = asset.Asset{Symbol: "ETH", Chain: chainaddr.ChainEVM, Decimals: 18}
	usdcAsset = asset.Asset{Symbol: "USDC", Chain: chainaddr.ChainEVM, Decimals: 6}
)

func evmAddr(t *testing.T, raw string) chainaddr.CanonicalAddress {
	t.Helper()
	a, err := chainaddr.Classify(raw, chainaddr.ChainEVM, "mainnet")
	require.NoError(t, err)
	return a
}

func TestNativeBalance(t *testing.T) {
	client := &mockEthClient{
		balanceAt: func(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
			return big.NewInt(42), nil
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	owner := evmAddr(t, "0x1111111111111111111111111111111111111111")
	bal, err := p.Balance(context.Background(), owner, ethAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())
}

func TestTokenBalance(t *testing.T) {
	contract := "0x2222222222222222222222222222222222222222"
	var calledTo common.Address
	client := &mockEthClient{
		callContract: func(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			calledTo = *call.To
			return big.NewInt(5_000_000).FillBytes(make([]byte, 32)), nil
		},
	}
	p, err := NewEVMProbe(client, WithToken("USDC", contract))
	require.NoError(t, err)

	owner := evmAddr(t, "0x1111111111111111111111111111111111111111")
	bal, err := p.Balance(context.Background(), owner, usdcAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), bal.Int64())
	assert.Equal(t, common.HexToAddress(contract), calledTo, "balanceOf must target the token contract")
}

func TestEstimateFeeSpike(t *testing.T) {
	price := new(big.Int).Mul(big.NewInt(150), weiPerGwei)
	client := &mockEthClient{
		suggestGasPrice: func(ctx context.Context) (*big.Int, error) { return price, nil },
		estimateGas: func(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
			return NativeTransferGas, nil
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	from := evmAddr(t, "0x1111111111111111111111111111111111111111")
	to := evmAddr(t, "0x3333333333333333333333333333333333333333")
	fee, err := p.EstimateFee(context.Background(), from, to, big.NewInt(1), ethAsset)
	require.NoError(t, err)

	assert.True(t, fee.Spike, "150 gwei exceeds the 100 gwei default threshold")
	assert.Equal(t, NativeTransferGas, fee.Units)
	want := new(big.Int).Mul(price, new(big.Int).SetUint64(NativeTransferGas))
	assert.Zero(t, fee.Total.Cmp(want))
}

func TestEstimateFeeFallbackGas(t *testing.T) {
	client := &mockEthClient{
		estimateGas: func(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
			return 0, errors.New("execution reverted")
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	from := evmAddr(t, "0x1111111111111111111111111111111111111111")
	to := evmAddr(t, "0x3333333333333333333333333333333333333333")
	fee, err := p.EstimateFee(context.Background(), from, to, big.NewInt(1), ethAsset)
	require.NoError(t, err)
	assert.Equal(t, NativeTransferGas, fee.Units)
	assert.False(t, fee.Spike, "1 gwei default mock price is not a spike")
}

func TestEstimateFeeUnavailable(t *testing.T) {
	client := &mockEthClient{
		suggestGasPrice: func(ctx context.Context) (*big.Int, error) {
			return nil, errors.New("connection refused")
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	from := evmAddr(t, "0x1111111111111111111111111111111111111111")
	to := evmAddr(t, "0x3333333333333333333333333333333333333333")
	_, err = p.EstimateFee(context.Background(), from, to, big.NewInt(1), ethAsset)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIsContract(t *testing.T) {
	client := &mockEthClient{
		codeAt: func(ctx context.Context, account common.Address, _ *big.Int) ([]byte, error) {
			if account == common.HexToAddress("0x4444444444444444444444444444444444444444") {
				return []byte{0x60, 0x80}, nil
			}
			return nil, nil
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	isContract, err := p.IsContract(context.Background(), evmAddr(t, "0x4444444444444444444444444444444444444444"))
	require.NoError(t, err)
	assert.True(t, isContract)

	isContract, err = p.IsContract(context.Background(), evmAddr(t, "0x1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.False(t, isContract)
}

func TestSimulateClassification(t *testing.T) {
	tests := []struct {
		name    string
		callErr error
		wantOK  bool
		reason  RevertReason
	}{
		{name: "clean call", callErr: nil, wantOK: true},
		{name: "insufficient funds", callErr: errors.New("insufficient funds for gas * price + value"), reason: RevertInsufficientFunds},
		{name: "intrinsic gas", callErr: errors.New("intrinsic gas too low"), reason: RevertGasTooLow},
		{name: "custom revert", callErr: errors.New("execution reverted: paused"), reason: RevertOther},
	}

	from := evmAddr(t, "0x1111111111111111111111111111111111111111")
	to := evmAddr(t, "0x3333333333333333333333333333333333333333")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockEthClient{
				callContract: func(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
					return nil, tt.callErr
				},
			}
			p, err := NewEVMProbe(client)
			require.NoError(t, err)

			sim, err := p.Simulate(context.Background(), from, to, big.NewInt(1), ethAsset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, sim.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.reason, sim.Reason)
			}
		})
	}
}

func TestGuardedTripsAfterFailures(t *testing.T) {
	calls := 0
	client := &mockEthClient{
		balanceAt: func(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
			calls++
			return nil, errors.New("connection refused")
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	guarded := NewGuarded(p, circuitbreaker.New(3, time.Minute), "evm")
	owner := evmAddr(t, "0x1111111111111111111111111111111111111111")

	for i := 0; i < 3; i++ {
		_, err := guarded.Balance(context.Background(), owner, ethAsset)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, 3, calls)

	// Circuit is open now; the endpoint must not be hit again.
	_, err = guarded.Balance(context.Background(), owner, ethAsset)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestGuardedRevertIsNotAFailure(t *testing.T) {
	client := &mockEthClient{
		callContract: func(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			return nil, errors.New("execution reverted: paused")
		},
	}
	p, err := NewEVMProbe(client)
	require.NoError(t, err)

	breaker := circuitbreaker.New(1, time.Minute)
	guarded := NewGuarded(p, breaker, "evm")
	from := evmAddr(t, "0x1111111111111111111111111111111111111111")
	to := evmAddr(t, "0x3333333333333333333333333333333333333333")

	sim, err := guarded.Simulate(context.Background(), from, to, big.NewInt(1), ethAsset)
	require.NoError(t, err)
	assert.False(t, sim.OK)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State("evm"))
}
