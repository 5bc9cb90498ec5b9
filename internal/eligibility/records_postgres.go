package eligibility

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/internal/domain"
)

// PostgresRecordStore persists eligibility records. ON CONFLICT DO NOTHING
// keeps Set idempotent, matching the write-once semantics.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

const RecordSchema = `
CREATE TABLE IF NOT EXISTS eligibility_records (
	tenant     BYTEA NOT NULL,
	policy_id  BIGINT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant, policy_id)
)`

func (s *PostgresRecordStore) Set(ctx context.Context, tenant common.Address, policyID domain.PolicyID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eligibility_records (tenant, policy_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		tenant.Bytes(), uint64(policyID),
	)
	if err != nil {
		return fmt.Errorf("set eligibility record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) Get(ctx context.Context, tenant common.Address, policyID domain.PolicyID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM eligibility_records WHERE tenant = $1 AND policy_id = $2
		)`,
		tenant.Bytes(), uint64(policyID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("get eligibility record: %w", err)
	}
	return exists, nil
}
