package reputation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ayushns01/walletrix/internal/chainaddr"
)

// PostgresStore persists reputation records in PostgreSQL. The report
// operations are single-statement atomic upserts (UNIQUE on address), so a
// concurrent pair of reports never loses an increment.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed reputation store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// severityRankSQL maps a severity column to its ordinal for max() in SQL.
const severityRankSQL = `CASE %s WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`

func (s *PostgresStore) Lookup(ctx context.Context, addr chainaddr.CanonicalAddress) (*Record, error) {
	const q = `
		SELECT chain, network, classification, severity, description,
		       report_count, first_reported_at, last_reported_at
		FROM address_reputation
		WHERE address = $1`

	rec := &Record{Address: addr}
	var chain, network, class, severity string
	err := s.db.QueryRowContext(ctx, q, addr.Key()).Scan(
		&chain, &network, &class, &severity, &rec.Description,
		&rec.ReportCount, &rec.FirstReportedAt, &rec.LastReportedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", ErrUnavailable, err)
	}
	rec.Address = chainaddr.CanonicalAddress{Chain: chainaddr.ChainKind(chain), Value: addr.Value, Network: network}
	rec.Classification = Classification(class)
	rec.Severity = Severity(severity)
	return rec, nil
}

func (s *PostgresStore) ReportScam(ctx context.Context, addr chainaddr.CanonicalAddress, severity Severity, description string) (*Record, error) {
	q := fmt.Sprintf(`
		INSERT INTO address_reputation
			(address, chain, network, classification, severity, description, report_count, first_reported_at, last_reported_at)
		VALUES ($1, $2, $3, 'scam', $4, $5, 1, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE SET
			classification   = 'scam',
			severity         = CASE WHEN `+severityRankSQL+` >= `+severityRankSQL+`
			                        THEN address_reputation.severity ELSE EXCLUDED.severity END,
			description      = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description
			                        ELSE address_reputation.description END,
			report_count     = address_reputation.report_count + 1,
			last_reported_at = NOW()
		RETURNING classification, severity, description, report_count, first_reported_at, last_reported_at`,
		"address_reputation.severity", "EXCLUDED.severity")

	return s.scanReport(ctx, q, addr, string(severity), description)
}

func (s *PostgresStore) ReportSuspicious(ctx context.Context, addr chainaddr.CanonicalAddress, reason string) (*Record, error) {
	// A scam classification is never downgraded by a suspicious report.
	q := fmt.Sprintf(`
		INSERT INTO address_reputation
			(address, chain, network, classification, severity, description, report_count, first_reported_at, last_reported_at)
		VALUES ($1, $2, $3, 'suspicious', $4, $5, 1, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE SET
			classification   = CASE WHEN address_reputation.classification = 'scam'
			                        THEN 'scam' ELSE 'suspicious' END,
			severity         = CASE WHEN `+severityRankSQL+` >= `+severityRankSQL+`
			                        THEN address_reputation.severity ELSE EXCLUDED.severity END,
			description      = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description
			                        ELSE address_reputation.description END,
			report_count     = address_reputation.report_count + 1,
			last_reported_at = NOW()
		RETURNING classification, severity, description, report_count, first_reported_at, last_reported_at`,
		"address_reputation.severity", "EXCLUDED.severity")

	return s.scanReport(ctx, q, addr, string(SeverityMedium), reason)
}

func (s *PostgresStore) scanReport(ctx context.Context, q string, addr chainaddr.CanonicalAddress, severity, description string) (*Record, error) {
	rec := &Record{Address: addr}
	var class, sev string
	err := s.db.QueryRowContext(ctx, q, addr.Key(), string(addr.Chain), addr.Network, severity, description).Scan(
		&class, &sev, &rec.Description, &rec.ReportCount, &rec.FirstReportedAt, &rec.LastReportedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: report: %v", ErrUnavailable, err)
	}
	rec.Classification = Classification(class)
	rec.Severity = Severity(sev)
	return rec, nil
}

func (s *PostgresStore) ListTop(ctx context.Context, n int) ([]*Record, error) {
	const q = `
		SELECT address, chain, network, classification, severity, description,
		       report_count, first_reported_at, last_reported_at
		FROM address_reputation
		ORDER BY report_count DESC, address ASC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, q, clampLimit(n))
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec := &Record{}
		var key, chain, network, class, severity string
		if err := rows.Scan(&key, &chain, &network, &class, &severity, &rec.Description,
			&rec.ReportCount, &rec.FirstReportedAt, &rec.LastReportedAt); err != nil {
			return nil, fmt.Errorf("%w: list scan: %v", ErrUnavailable, err)
		}
		rec.Address = chainaddr.CanonicalAddress{
			Chain:   chainaddr.ChainKind(chain),
			Value:   trimKeyPrefix(key, chain),
			Network: network,
		}
		rec.Classification = Classification(class)
		rec.Severity = Severity(severity)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// trimKeyPrefix strips the "chain:" prefix from a stored address key.
func trimKeyPrefix(key, chain string) string {
	prefix := chain + ":"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
