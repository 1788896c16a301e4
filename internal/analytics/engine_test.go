package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/civicledger/civicledger/internal/store"
	"github.com/civicledger/civicledger/pkg/types"
)

func seededEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	for _, policy := range []*types.Policy{
		{Title: "Roads", Status: types.PolicyActive, FundAllocation: types.MustBigInt("1000"), FundReleased: types.MustBigInt("400")},
		{Title: "Water", Status: types.PolicyDraft, FundAllocation: types.MustBigInt("500")},
	} {
		require.NoError(t, s.CreatePolicy(ctx, policy))
	}
	for _, complaint := range []*types.Complaint{
		{Title: "Pothole", Status: types.ComplaintResolved},
		{Title: "Leak", Status: types.ComplaintSubmitted},
	} {
		require.NoError(t, s.CreateComplaint(ctx, complaint))
	}

	return NewEngine(s, time.Minute, zaptest.NewLogger(t)), s
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	engine, _ := seededEngine(t)

	overview, err := engine.Overview(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), overview.TotalPolicies)
	assert.Equal(t, uint64(1), overview.ActivePolicies)
	assert.Equal(t, uint64(2), overview.TotalComplaints)
	assert.Equal(t, uint64(1), overview.ResolvedComplaints)
	assert.InDelta(t, 0.5, overview.ResolutionRate, 1e-9)
	assert.Equal(t, "1500", overview.TotalFundsAllocated.String())
	assert.Equal(t, "400", overview.TotalFundsReleased.String())
	assert.NotZero(t, overview.GeneratedAt)
}

func TestOverviewCaching(t *testing.T) {
	ctx := context.Background()
	engine, s := seededEngine(t)

	first, err := engine.Overview(ctx)
	require.NoError(t, err)

	require.NoError(t, s.CreateComplaint(ctx, &types.Complaint{Title: "Noise"}))

	// The cached snapshot does not see the new complaint until invalidated.
	cached, err := engine.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TotalComplaints, cached.TotalComplaints)

	engine.Invalidate()
	fresh, err := engine.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TotalComplaints+1, fresh.TotalComplaints)
}

func TestEmptyStoreOverview(t *testing.T) {
	engine := NewEngine(store.NewMemoryStore(), time.Minute, zaptest.NewLogger(t))
	overview, err := engine.Overview(context.Background())
	require.NoError(t, err)

	assert.Zero(t, overview.TotalPolicies)
	assert.Zero(t, overview.ResolutionRate)
	assert.Equal(t, "0", overview.TotalFundsAllocated.String())
}
