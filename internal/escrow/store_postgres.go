package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
	"rentgate/pkg/platform/sentinel"
)

// PostgresLeaseStore persists leases in PostgreSQL.
type PostgresLeaseStore struct {
	db *sql.DB
}

func NewPostgresLeaseStore(db *sql.DB) *PostgresLeaseStore {
	return &PostgresLeaseStore{db: db}
}

const LeaseSchema = `
CREATE TABLE IF NOT EXISTS leases (
	policy_id  BIGINT NOT NULL,
	tenant     BYTEA NOT NULL,
	amount     NUMERIC(78,0) NOT NULL,
	deadline   BIGINT NOT NULL,
	status     TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (policy_id, tenant)
)`

func (s *PostgresLeaseStore) Get(ctx context.Context, policyID domain.PolicyID, tenant common.Address) (domain.Lease, error) {
	var (
		l        domain.Lease
		amount   string
		deadline int64
		status   string
		rawID    uint64
		rawAddr  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT policy_id, tenant, amount, deadline, status, started_at
		FROM leases WHERE policy_id = $1 AND tenant = $2`,
		uint64(policyID), tenant.Bytes(),
	).Scan(&rawID, &rawAddr, &amount, &deadline, &status, &l.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lease{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Lease{}, fmt.Errorf("select lease: %w", err)
	}

	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return domain.Lease{}, fmt.Errorf("corrupt lease amount %q", amount)
	}
	l.PolicyID = domain.PolicyID(rawID)
	l.Tenant = common.BytesToAddress(rawAddr)
	l.Amount = v
	l.Deadline = uint64(deadline)
	l.Status = domain.LeaseStatus(status)
	return l, nil
}

func (s *PostgresLeaseStore) Put(ctx context.Context, lease domain.Lease) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (policy_id, tenant, amount, deadline, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (policy_id, tenant) DO UPDATE
		SET amount = EXCLUDED.amount, deadline = EXCLUDED.deadline,
			status = EXCLUDED.status, started_at = EXCLUDED.started_at`,
		uint64(lease.PolicyID),
		lease.Tenant.Bytes(),
		lease.Amount.String(),
		int64(lease.Deadline),
		string(lease.Status),
		lease.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lease: %w", err)
	}
	return nil
}

func (s *PostgresLeaseStore) Delete(ctx context.Context, policyID domain.PolicyID, tenant common.Address) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM leases WHERE policy_id = $1 AND tenant = $2`,
		uint64(policyID), tenant.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	return nil
}
