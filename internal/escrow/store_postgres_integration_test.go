//go:build integration

package escrow_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"rentgate/internal/domain"
	"rentgate/internal/escrow"
	"rentgate/pkg/platform/sentinel"
	"rentgate/pkg/testutil/containers"
)

type PostgresLeaseSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *escrow.PostgresLeaseStore
}

func TestPostgresLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLeaseSuite))
}

func (s *PostgresLeaseSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = escrow.NewPostgresLeaseStore(s.postgres.DB)
}

func (s *PostgresLeaseSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "leases"))
}

func (s *PostgresLeaseSuite) lease(status domain.LeaseStatus) domain.Lease {
	return domain.Lease{
		PolicyID:  7,
		Tenant:    common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Amount:    big.NewInt(1_000),
		Deadline:  2_000_000,
		Status:    status,
		StartedAt: time.Unix(1_000_000, 0).UTC(),
	}
}

func (s *PostgresLeaseSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	want := s.lease(domain.LeaseStatusActive)

	s.Require().NoError(s.store.Put(ctx, want))

	got, err := s.store.Get(ctx, want.PolicyID, want.Tenant)
	s.Require().NoError(err)
	s.Equal(want.PolicyID, got.PolicyID)
	s.Equal(want.Tenant, got.Tenant)
	s.Zero(want.Amount.Cmp(got.Amount))
	s.Equal(want.Deadline, got.Deadline)
	s.Equal(want.Status, got.Status)
	s.True(want.StartedAt.Equal(got.StartedAt))
}

func (s *PostgresLeaseSuite) TestPutUpsertsStatus() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.lease(domain.LeaseStatusActive)))
	s.Require().NoError(s.store.Put(ctx, s.lease(domain.LeaseStatusReleased)))

	got, err := s.store.Get(ctx, 7, common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"))
	s.Require().NoError(err)
	s.Equal(domain.LeaseStatusReleased, got.Status)
}

func (s *PostgresLeaseSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), 404, common.HexToAddress("0x01"))
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresLeaseSuite) TestDelete() {
	ctx := context.Background()
	want := s.lease(domain.LeaseStatusActive)
	s.Require().NoError(s.store.Put(ctx, want))
	s.Require().NoError(s.store.Delete(ctx, want.PolicyID, want.Tenant))

	_, err := s.store.Get(ctx, want.PolicyID, want.Tenant)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
