package eligibility

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"rentgate/pkg/platform/sentinel"
)

func TestInMemoryNullifierStoreConsumeOnce(t *testing.T) {
	store := NewInMemoryNullifierStore()
	ctx := context.Background()
	value := common.HexToHash("0x01")

	require.NoError(t, store.Consume(ctx, DomainProof, value))
	require.ErrorIs(t, store.Consume(ctx, DomainProof, value), sentinel.ErrAlreadyUsed)
}

func TestInMemoryNullifierStoreDomainsAreDistinct(t *testing.T) {
	store := NewInMemoryNullifierStore()
	ctx := context.Background()
	value := common.HexToHash("0x02")

	require.NoError(t, store.Consume(ctx, DomainProof, value))
	require.NoError(t, store.Consume(ctx, DomainAttest, value))
	require.ErrorIs(t, store.Consume(ctx, DomainAttest, value), sentinel.ErrAlreadyUsed)
}

func TestInMemoryNullifierStoreCheckAndInsertIsIndivisible(t *testing.T) {
	store := NewInMemoryNullifierStore()
	ctx := context.Background()
	value := common.HexToHash("0x03")

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Consume(ctx, DomainProof, value)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		}
	}
	require.Equal(t, 1, succeeded, fmt.Sprintf("exactly one of %d concurrent consumers may win", workers))
}
