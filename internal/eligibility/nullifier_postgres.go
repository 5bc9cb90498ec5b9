package eligibility

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"rentgate/pkg/platform/sentinel"
)

// PostgresNullifierStore persists the used set. The primary key makes
// INSERT ... ON CONFLICT DO NOTHING the indivisible check-and-insert.
type PostgresNullifierStore struct {
	db *sql.DB
}

func NewPostgresNullifierStore(db *sql.DB) *PostgresNullifierStore {
	return &PostgresNullifierStore{db: db}
}

const NullifierSchema = `
CREATE TABLE IF NOT EXISTS nullifiers (
	domain      TEXT NOT NULL,
	value       BYTEA NOT NULL,
	consumed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (domain, value)
)`

func (s *PostgresNullifierStore) Consume(ctx context.Context, dom NullifierDomain, value common.Hash) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nullifiers (domain, value) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		string(dom), value.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("consume nullifier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume nullifier: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}
