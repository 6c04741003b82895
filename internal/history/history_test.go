package history

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

var eth = asset.Asset{Symbol: "ETH", Chain: chainaddr.ChainEVM, Decimals: 18}

func addr(t *testing.T, raw string) chainaddr.CanonicalAddress {
	t.Helper()
	a, err := chainaddr.Classify(raw, chainaddr.ChainEVM, "mainnet")
	if err != nil {
		t.Fatalf("Classify(%q) failed: %v", raw, err)
	}
	return a
}

func TestOutgoingStatsMean(t *testing.T) {
	reader := NewMemoryReader()
	to := addr(t, "0x1111111111111111111111111111111111111111")
	now := time.Now()

	// Three confirmed sends of 1, 2, 3 units; one pending of 100 must not count.
	for i, amount := range []int64{1, 2, 3} {
		reader.AddOutgoing("w1", eth, Send{
			To: to, Amount: big.NewInt(amount), Timestamp: now.Add(-time.Duration(i) * time.Hour), Status: StatusConfirmed,
		})
	}
	reader.AddOutgoing("w1", eth, Send{To: to, Amount: big.NewInt(100), Timestamp: now, Status: "pending"})

	oracle := NewOracle(reader)
	stats, err := oracle.OutgoingStats(context.Background(), "w1", eth)
	if err != nil {
		t.Fatalf("OutgoingStats failed: %v", err)
	}
	if stats == nil {
		t.Fatal("stats undefined despite confirmed sends")
	}
	if stats.Count != 3 {
		t.Errorf("count = %d, want 3", stats.Count)
	}
	if stats.Mean.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("mean = %s, want 2", stats.Mean)
	}
}

func TestOutgoingStatsUndefinedWithoutSends(t *testing.T) {
	oracle := NewOracle(NewMemoryReader())
	stats, err := oracle.OutgoingStats(context.Background(), "w1", eth)
	if err != nil {
		t.Fatalf("OutgoingStats failed: %v", err)
	}
	if stats != nil {
		t.Errorf("stats = %+v, want nil for empty history", stats)
	}
}

func TestOutgoingStatsSampleLimit(t *testing.T) {
	reader := NewMemoryReader()
	to := addr(t, "0x1111111111111111111111111111111111111111")
	now := time.Now()

	// 25 sends; only the most recent 20 should be sampled.
	for i := 0; i < 25; i++ {
		amount := big.NewInt(10)
		if i >= 20 {
			amount = big.NewInt(1000) // oldest five, out of sample
		}
		reader.AddOutgoing("w1", eth, Send{
			To: to, Amount: amount, Timestamp: now.Add(-time.Duration(i) * time.Minute), Status: StatusConfirmed,
		})
	}

	oracle := NewOracle(reader)
	stats, err := oracle.OutgoingStats(context.Background(), "w1", eth)
	if err != nil {
		t.Fatalf("OutgoingStats failed: %v", err)
	}
	if stats.Count != 20 {
		t.Errorf("count = %d, want capped at 20", stats.Count)
	}
	if stats.Mean.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("mean = %s, want 10 (old sends excluded)", stats.Mean)
	}
}

func TestRecentCounterpartiesWindow(t *testing.T) {
	reader := NewMemoryReader()
	recent := addr(t, "0x1111111111111111111111111111111111111111")
	stale := addr(t, "0x2222222222222222222222222222222222222222")
	inbound := addr(t, "0x3333333333333333333333333333333333333333")
	now := time.Now()

	reader.AddOutgoing("w1", eth, Send{To: recent, Amount: big.NewInt(1), Timestamp: now.Add(-3 * 24 * time.Hour), Status: StatusConfirmed})
	reader.AddOutgoing("w1", eth, Send{To: stale, Amount: big.NewInt(1), Timestamp: now.Add(-45 * 24 * time.Hour), Status: StatusConfirmed})
	reader.AddIncoming("w1", inbound, now.Add(-time.Hour))

	oracle := NewOracle(reader)
	set, err := oracle.RecentCounterparties(context.Background(), "w1")
	if err != nil {
		t.Fatalf("RecentCounterparties failed: %v", err)
	}
	if _, ok := set[recent.Key()]; !ok {
		t.Error("recent outgoing counterparty missing")
	}
	if _, ok := set[inbound.Key()]; !ok {
		t.Error("recent incoming counterparty missing")
	}
	if _, ok := set[stale.Key()]; ok {
		t.Error("counterparty outside 30-day window included")
	}
}

func TestVisuallySimilar(t *testing.T) {
	base := addr(t, "0x1234567890abcdef1234567890abcdef12345678")
	lastDigitOff := addr(t, "0x1234567890abcdef1234567890abcdef12345679")
	middleOff := addr(t, "0x123456ffffffffffffffffffffffffffff345678")
	unrelated := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	if VisuallySimilar(base, base) {
		t.Error("an address is not similar to itself")
	}
	if !VisuallySimilar(base, lastDigitOff) {
		// single-character typo in the final digit
		t.Error("one-character difference not reported as similar")
	}
	if !VisuallySimilar(base, middleOff) {
		t.Error("same first-6/last-4 with different middle not reported as similar")
	}
	if VisuallySimilar(base, unrelated) {
		t.Error("unrelated address reported as similar")
	}

	btcA, err := chainaddr.Classify("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", chainaddr.ChainBitcoin, "mainnet")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if VisuallySimilar(base, btcA) {
		t.Error("cross-chain addresses reported as similar")
	}
}
