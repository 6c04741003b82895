package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// PostgresReader reads the wallet application's wallet_transactions table.
type PostgresReader struct {
	db *sql.DB
}

// NewPostgresReader creates a PostgreSQL-backed history reader.
func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

func (r *PostgresReader) OutgoingSends(ctx context.Context, walletID string, a asset.Asset, limit int) ([]Send, error) {
	const q = `
		SELECT counterparty, chain, amount_base, status, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1 AND direction = 'out' AND asset_symbol = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, q, walletID, a.Symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: outgoing sends: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Send
	for rows.Next() {
		var (
			key, chain, amountStr, status string
			at                            time.Time
		)
		if err := rows.Scan(&key, &chain, &amountStr, &status, &at); err != nil {
			return nil, fmt.Errorf("%w: outgoing sends scan: %v", ErrUnavailable, err)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			continue
		}
		out = append(out, Send{
			To:        counterpartyAddr(key, chain),
			Amount:    amount,
			Timestamp: at,
			Status:    status,
		})
	}
	return out, rows.Err()
}

func (r *PostgresReader) Counterparties(ctx context.Context, walletID string, since time.Time) (map[string]chainaddr.CanonicalAddress, error) {
	const q = `
		SELECT DISTINCT counterparty, chain
		FROM wallet_transactions
		WHERE wallet_id = $1 AND created_at >= $2`

	rows, err := r.db.QueryContext(ctx, q, walletID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: counterparties: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	set := make(map[string]chainaddr.CanonicalAddress)
	for rows.Next() {
		var key, chain string
		if err := rows.Scan(&key, &chain); err != nil {
			return nil, fmt.Errorf("%w: counterparties scan: %v", ErrUnavailable, err)
		}
		addr := counterpartyAddr(key, chain)
		set[addr.Key()] = addr
	}
	return set, rows.Err()
}

// counterpartyAddr rebuilds a canonical address from its stored key.
func counterpartyAddr(key, chain string) chainaddr.CanonicalAddress {
	prefix := chain + ":"
	value := key
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		value = key[len(prefix):]
	}
	return chainaddr.CanonicalAddress{Chain: chainaddr.ChainKind(chain), Value: value}
}
