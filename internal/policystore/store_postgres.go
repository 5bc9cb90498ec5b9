package policystore

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

// PostgresStore persists policies in PostgreSQL. IDs come from a BIGSERIAL so
// they stay sequential across restarts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is applied by deployment migrations; kept here so the integration
// suite can create it.
const Schema = `
CREATE TABLE IF NOT EXISTS policies (
	id                   BIGSERIAL PRIMARY KEY,
	min_age              BIGINT NOT NULL,
	income_multiplier    BIGINT NOT NULL,
	rent_amount          NUMERIC(78,0) NOT NULL,
	require_clean_record BOOLEAN NOT NULL,
	deadline             BIGINT NOT NULL,
	owner_address        BYTEA NOT NULL,
	content_hash         BYTEA NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL
)`

func (s *PostgresStore) Create(ctx context.Context, p domain.Policy) (domain.PolicyID, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO policies (min_age, income_multiplier, rent_amount, require_clean_record,
			deadline, owner_address, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.Terms.MinAge,
		p.Terms.IncomeMultiplier,
		p.Terms.RentAmount.String(),
		p.Terms.RequireCleanRecord,
		int64(p.Terms.Deadline),
		p.Owner.Bytes(),
		p.ContentHash.Bytes(),
		p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert policy: %w", err)
	}
	return domain.PolicyID(id), nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.PolicyID) (domain.Policy, error) {
	var (
		p          domain.Policy
		rent       string
		deadline   int64
		owner      []byte
		hash       []byte
		rawID      uint64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, min_age, income_multiplier, rent_amount, require_clean_record,
			deadline, owner_address, content_hash, created_at
		FROM policies WHERE id = $1`, uint64(id),
	).Scan(&rawID, &p.Terms.MinAge, &p.Terms.IncomeMultiplier, &rent,
		&p.Terms.RequireCleanRecord, &deadline, &owner, &hash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Policy{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Policy{}, fmt.Errorf("select policy: %w", err)
	}

	amount, ok := new(big.Int).SetString(rent, 10)
	if !ok {
		return domain.Policy{}, fmt.Errorf("corrupt rent amount %q for policy %d", rent, rawID)
	}
	p.ID = domain.PolicyID(rawID)
	p.Terms.RentAmount = amount
	p.Terms.Deadline = uint64(deadline)
	p.Owner = common.BytesToAddress(owner)
	p.ContentHash = common.BytesToHash(hash)
	return p, nil
}
