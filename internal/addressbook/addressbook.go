// Package addressbook gives the evaluator a read-only view over the
// wallet-scoped trusted-address records maintained by the address-book
// subsystem. The evaluator never writes here.
package addressbook

import (
	"context"
	"errors"
	"time"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// Entry is a user-curated address-book record. (walletID, address) is unique.
type Entry struct {
	WalletID  string                     `json:"walletId"`
	Address   chainaddr.CanonicalAddress `json:"address"`
	Label     string                     `json:"label"`
	Trusted   bool                       `json:"trusted"`
	CreatedAt time.Time                  `json:"createdAt"`
}

// ErrUnavailable is returned when the address book cannot be reached. The
// evaluator degrades the familiarity check to a skip.
var ErrUnavailable = errors.New("addressbook: lookup unavailable")

// Reader is the read-only contract consumed by the evaluator. Find returns
// (nil, nil) when the address is not known to the wallet.
type Reader interface {
	Find(ctx context.Context, walletID string, addr chainaddr.CanonicalAddress) (*Entry, error)
}
