package addressbook

import (
	"context"
	"testing"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

func TestMemoryReaderFind(t *testing.T) {
	reader := NewMemoryReader()
	addr, err := chainaddr.Classify("0x1234567890abcdef1234567890abcdef12345678", chainaddr.ChainEVM, "mainnet")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	reader.Put(Entry{
		WalletID:  "w1",
		Address:   addr,
		Label:     "exchange",
		Trusted:   true,
		CreatedAt: time.Now(),
	})

	got, err := reader.Find(context.Background(), "w1", addr)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got == nil || got.Label != "exchange" || !got.Trusted {
		t.Errorf("Find = %+v, want trusted exchange entry", got)
	}

	// Same address, different wallet: not known.
	other, err := reader.Find(context.Background(), "w2", addr)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if other != nil {
		t.Errorf("entry leaked across wallets: %+v", other)
	}
}
