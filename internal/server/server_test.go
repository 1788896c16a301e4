package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/civicledger/civicledger/internal/config"
	"github.com/civicledger/civicledger/pkg/client"
	"github.com/civicledger/civicledger/pkg/format"
	"github.com/civicledger/civicledger/pkg/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// newTestServer serves the full router over httptest with an empty
// in-memory store and returns an SDK client pointed at it.
func newTestServer(t *testing.T) *client.Client {
	t.Helper()

	cfg := &config.Config{
		Analytics: config.AnalyticsConfig{
			RefreshSchedule: "@every 30s",
			CacheTTLSeconds: 60,
		},
	}
	s, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL + "/api")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPolicyLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	id, err := c.Policies.Create(ctx, client.CreatePolicyRequest{
		Title:          "Test",
		FundAllocation: types.MustBigInt("500000000000"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	policies := c.Policies.GetAll(ctx)
	require.Len(t, policies, 1)
	assert.Equal(t, id, policies[0].ID)
	assert.Equal(t, types.PolicyDraft, policies[0].Status)
	assert.Equal(t, "5000.00", format.Amount(policies[0].FundAllocation))

	t.Run("ReleaseBeforeActivationRejected", func(t *testing.T) {
		_, err := c.Policies.ReleaseFunds(ctx, id, client.ReleaseFundsRequest{
			Amount:    types.MustBigInt("100000000000"),
			ToAddress: "contractor-1",
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusConflict, reqErr.StatusCode)
	})

	require.NoError(t, c.Policies.Activate(ctx, id))
	policy := c.Policies.Get(ctx, id)
	require.NotNil(t, policy)
	assert.Equal(t, types.PolicyActive, policy.Status)

	t.Run("ReleaseFundsRecordsTransaction", func(t *testing.T) {
		txID, err := c.Policies.ReleaseFunds(ctx, id, client.ReleaseFundsRequest{
			Amount:    types.MustBigInt("100000000000"),
			ToAddress: "contractor-1",
		})
		require.NoError(t, err)
		require.NotEmpty(t, txID)

		policy := c.Policies.Get(ctx, id)
		require.NotNil(t, policy)
		assert.Equal(t, "100000000000", policy.FundReleased.String())

		txs := c.Transactions.GetByPolicy(ctx, id)
		require.Len(t, txs, 1)
		assert.Equal(t, txID, txs[0].ID)
		assert.Equal(t, types.TxRelease, txs[0].Type)
	})

	t.Run("ReleaseBeyondRemainingRejected", func(t *testing.T) {
		_, err := c.Policies.ReleaseFunds(ctx, id, client.ReleaseFundsRequest{
			Amount:    types.MustBigInt("500000000000"),
			ToAddress: "contractor-1",
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusConflict, reqErr.StatusCode)
	})

	t.Run("ActivateUnknownPolicy", func(t *testing.T) {
		err := c.Policies.Activate(ctx, "no-such-policy")
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	})
}

func TestVotingEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	id, err := c.Proposals.Create(ctx, client.CreateProposalRequest{
		Title:               "Extend program",
		Proposer:            "council-member-1",
		VotingDurationHours: types.NewBigInt(24),
		QuorumRequired:      types.NewBigInt(2),
	})
	require.NoError(t, err)

	vote := func(voter string) *types.Proposal {
		require.NoError(t, c.Proposals.CastVote(ctx, id, client.CastVoteRequest{
			Voter:       voter,
			VoteType:    types.VoteYes,
			VotingPower: types.NewBigInt(1),
		}))
		proposal := c.Proposals.Get(ctx, id)
		require.NotNil(t, proposal)
		return proposal
	}

	// Consecutive votes grow the yes tally monotonically.
	first := vote("voter-1")
	assert.Equal(t, "1", first.YesVotes.String())
	second := vote("voter-2")
	assert.Equal(t, "2", second.YesVotes.String())
	assert.Equal(t, 1, second.YesVotes.Cmp(first.YesVotes))
	assert.Equal(t, "2", second.TotalVotes.String())
	assert.True(t, second.QuorumReached())

	t.Run("DurationBeyondInt64Rejected", func(t *testing.T) {
		// 2^64+24 truncates to 24 through Int64; the handler must reject
		// it instead of opening a silently collapsed window.
		_, err := c.Proposals.Create(ctx, client.CreateProposalRequest{
			Title:               "Overflow",
			Proposer:            "council-member-1",
			VotingDurationHours: types.MustBigInt("18446744073709551640"),
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)

		proposals := c.Proposals.GetAll(ctx)
		for _, p := range proposals {
			assert.NotEqual(t, "Overflow", p.Title)
		}
	})

	t.Run("DurationBeyondOneYearRejected", func(t *testing.T) {
		_, err := c.Proposals.Create(ctx, client.CreateProposalRequest{
			Title:               "Too long",
			Proposer:            "council-member-1",
			VotingDurationHours: types.NewBigInt(24*365 + 1),
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	})

	t.Run("ZeroPowerRejected", func(t *testing.T) {
		err := c.Proposals.CastVote(ctx, id, client.CastVoteRequest{
			Voter:       "voter-3",
			VoteType:    types.VoteYes,
			VotingPower: types.NewBigInt(0),
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	})

	t.Run("UnknownProposal", func(t *testing.T) {
		err := c.Proposals.CastVote(ctx, "no-such-proposal", client.CastVoteRequest{
			Voter:       "voter-1",
			VoteType:    types.VoteYes,
			VotingPower: types.NewBigInt(1),
		})
		var reqErr *client.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	})
}

func TestComplaintsEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	id, err := c.Complaints.Submit(ctx, client.SubmitComplaintRequest{
		Title:       "Pothole on Main Street",
		Description: "Large pothole near the market",
		Category:    "Infrastructure",
		District:    "Central",
		CitizenID:   "citizen-1001",
	})
	require.NoError(t, err)

	complaint := c.Complaints.Get(ctx, id)
	require.NotNil(t, complaint)
	assert.Equal(t, types.ComplaintSubmitted, complaint.Status)
	assert.Equal(t, types.PriorityMedium, complaint.Priority)

	assert.Nil(t, c.Complaints.Get(ctx, "no-such-complaint"))
}

func TestAnalyticsEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	overview := c.Analytics.GetOverview(ctx)
	assert.Zero(t, overview.TotalPolicies)

	id, err := c.Policies.Create(ctx, client.CreatePolicyRequest{
		Title:          "Water Supply",
		FundAllocation: types.MustBigInt("1000"),
	})
	require.NoError(t, err)
	require.NoError(t, c.Policies.Activate(ctx, id))

	// The write invalidated the cached overview.
	overview = c.Analytics.GetOverview(ctx)
	assert.Equal(t, uint64(1), overview.TotalPolicies)
	assert.Equal(t, uint64(1), overview.ActivePolicies)
	assert.Equal(t, "1000", overview.TotalFundsAllocated.String())
}

func TestPushOnWrite(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)

	var pushes atomic.Int32
	var lastLen atomic.Int32
	unsubscribe := c.Policies.SubscribeToUpdates(func(policies []types.Policy) {
		pushes.Add(1)
		lastLen.Store(int32(len(policies)))
	})
	defer unsubscribe()

	require.True(t, c.ChannelConnected())
	// Give the hub a moment to process the subscription intent.
	time.Sleep(200 * time.Millisecond)

	_, err := c.Policies.Create(ctx, client.CreatePolicyRequest{
		Title:          "Street Lighting",
		FundAllocation: types.MustBigInt("1000"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return pushes.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), lastLen.Load())
}

func TestHealthEndpoints(t *testing.T) {
	ctx := context.Background()
	c := newTestServer(t)
	assert.True(t, c.CheckHealth(ctx))
}
