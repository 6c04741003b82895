package addressbook

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// PostgresReader reads address-book entries from the wallet application's
// address_book_entries table.
type PostgresReader struct {
	db *sql.DB
}

// NewPostgresReader creates a PostgreSQL-backed address-book reader.
func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

func (r *PostgresReader) Find(ctx context.Context, walletID string, addr chainaddr.CanonicalAddress) (*Entry, error) {
	const q = `
		SELECT label, trusted, created_at
		FROM address_book_entries
		WHERE wallet_id = $1 AND address = $2`

	e := &Entry{WalletID: walletID, Address: addr}
	err := r.db.QueryRowContext(ctx, q, walletID, addr.Key()).Scan(&e.Label, &e.Trusted, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return e, nil
}
