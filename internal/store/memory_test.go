package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicledger/civicledger/pkg/types"
)

func newActivePolicy(t *testing.T, s *MemoryStore, allocation string) *types.Policy {
	t.Helper()
	ctx := context.Background()

	policy := &types.Policy{
		Title:          "Test Policy",
		FundAllocation: types.MustBigInt(allocation),
	}
	require.NoError(t, s.CreatePolicy(ctx, policy))

	activated, err := s.ActivatePolicy(ctx, policy.ID)
	require.NoError(t, err)
	return activated
}

func TestPolicyLifecycleInStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	policy := &types.Policy{
		Title:          "Rural Roads",
		FundAllocation: types.MustBigInt("500000000000"),
	}
	require.NoError(t, s.CreatePolicy(ctx, policy))
	require.NotEmpty(t, policy.ID)
	assert.Equal(t, types.PolicyDraft, policy.Status)
	assert.NotZero(t, policy.CreatedAt)

	t.Run("IDStableAcrossFetches", func(t *testing.T) {
		first, err := s.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		second, err := s.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("Activate", func(t *testing.T) {
		activated, err := s.ActivatePolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, types.PolicyActive, activated.Status)
		assert.GreaterOrEqual(t, activated.UpdatedAt, activated.CreatedAt)
	})

	t.Run("ActivateTwiceRejected", func(t *testing.T) {
		_, err := s.ActivatePolicy(ctx, policy.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("ActivateUnknownPolicy", func(t *testing.T) {
		_, err := s.ActivatePolicy(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReleaseFunds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	policy := newActivePolicy(t, s, "1000")

	t.Run("WithinAllocation", func(t *testing.T) {
		tx, err := s.ReleaseFunds(ctx, policy.ID, types.MustBigInt("600"), "contractor-1")
		require.NoError(t, err)
		assert.Equal(t, types.TxRelease, tx.Type)
		assert.Equal(t, types.TxCompleted, tx.Status)
		assert.NotEmpty(t, tx.TransactionHash)

		updated, err := s.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, "600", updated.FundReleased.String())
		assert.NoError(t, updated.Validate())
	})

	t.Run("ExceedingRemainingRejected", func(t *testing.T) {
		_, err := s.ReleaseFunds(ctx, policy.ID, types.MustBigInt("500"), "contractor-1")
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		// The failed release must not move any funds.
		updated, err := s.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, "600", updated.FundReleased.String())
	})

	t.Run("ExactRemainderAllowed", func(t *testing.T) {
		_, err := s.ReleaseFunds(ctx, policy.ID, types.MustBigInt("400"), "contractor-1")
		require.NoError(t, err)

		updated, err := s.GetPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.FundReleased.Cmp(updated.FundAllocation))
	})

	t.Run("DraftPolicyRejected", func(t *testing.T) {
		draft := &types.Policy{Title: "Draft", FundAllocation: types.MustBigInt("100")}
		require.NoError(t, s.CreatePolicy(ctx, draft))
		_, err := s.ReleaseFunds(ctx, draft.ID, types.MustBigInt("10"), "x")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("NonPositiveAmountRejected", func(t *testing.T) {
		_, err := s.ReleaseFunds(ctx, policy.ID, types.NewBigInt(0), "contractor-1")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = s.ReleaseFunds(ctx, policy.ID, types.NewBigInt(-5), "contractor-1")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestReleaseFundsConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	policy := newActivePolicy(t, s, "1000")

	// Ten racing releases of 200 against an allocation of 1000: exactly
	// five may pass the remaining-funds check, whatever the interleaving.
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ReleaseFunds(ctx, policy.ID, types.NewBigInt(200), "contractor-1"); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	updated, err := s.GetPolicy(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", updated.FundReleased.String())
	assert.NoError(t, updated.Validate())

	txs, err := s.TransactionsForPolicy(ctx, policy.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 5)
}

func TestCastVoteConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UnixNano()
	proposal := &types.Proposal{
		Title:       "Concurrent ballots",
		CreatedAt:   now,
		VotingStart: now,
		VotingEnd:   now + int64(time.Hour),
		Status:      types.ProposalActive,
	}
	require.NoError(t, s.CreateProposal(ctx, proposal))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "v", Type: types.VoteYes, Power: types.NewBigInt(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := s.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, "20", final.YesVotes.String())
	assert.Equal(t, "20", final.TotalVotes.String())
}

func TestCastVote(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UnixNano()
	proposal := &types.Proposal{
		Title:          "Extend program",
		Proposer:       "council-member-1",
		CreatedAt:      now,
		VotingStart:    now,
		VotingEnd:      now + int64(time.Hour),
		Status:         types.ProposalActive,
		QuorumRequired: types.NewBigInt(10),
	}
	require.NoError(t, s.CreateProposal(ctx, proposal))

	t.Run("TalliesAccumulate", func(t *testing.T) {
		first, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-1", Type: types.VoteYes, Power: types.NewBigInt(1)})
		require.NoError(t, err)
		second, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-1", Type: types.VoteYes, Power: types.NewBigInt(1)})
		require.NoError(t, err)

		// yes_votes grows monotonically across consecutive casts.
		assert.Equal(t, 1, second.YesVotes.Cmp(first.YesVotes))

		_, err = s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-2", Type: types.VoteNo, Power: types.NewBigInt(3)})
		require.NoError(t, err)
		final, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-3", Type: types.VoteAbstain, Power: types.NewBigInt(2)})
		require.NoError(t, err)

		assert.Equal(t, "2", final.YesVotes.String())
		assert.Equal(t, "3", final.NoVotes.String())
		assert.Equal(t, "2", final.AbstainVotes.String())
		assert.Equal(t, "7", final.TotalVotes.String())
		assert.NoError(t, final.Validate())
	})

	t.Run("ZeroPowerRejected", func(t *testing.T) {
		_, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-4", Type: types.VoteYes, Power: types.NewBigInt(0)})
		assert.ErrorIs(t, err, ErrInvalidVote)
	})

	t.Run("UnknownVoteTypeRejected", func(t *testing.T) {
		_, err := s.CastVote(ctx, proposal.ID, Vote{Voter: "voter-4", Type: "Maybe", Power: types.NewBigInt(1)})
		assert.ErrorIs(t, err, ErrInvalidVote)
	})

	t.Run("ClosedWindowRejected", func(t *testing.T) {
		closed := &types.Proposal{
			Title:       "Old proposal",
			CreatedAt:   now - int64(3*time.Hour),
			VotingStart: now - int64(3*time.Hour),
			VotingEnd:   now - int64(time.Hour),
			Status:      types.ProposalActive,
		}
		require.NoError(t, s.CreateProposal(ctx, closed))
		_, err := s.CastVote(ctx, closed.ID, Vote{Voter: "voter-1", Type: types.VoteYes, Power: types.NewBigInt(1)})
		assert.ErrorIs(t, err, ErrVotingClosed)
	})
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	policy := newActivePolicy(t, s, "1000")
	other := newActivePolicy(t, s, "1000")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordTransaction(ctx, &types.FundTransaction{
			PolicyID: policy.ID,
			Type:     types.TxTransfer,
			Amount:   types.NewBigInt(int64(i + 1)),
		}))
	}
	require.NoError(t, s.RecordTransaction(ctx, &types.FundTransaction{
		PolicyID: other.ID,
		Type:     types.TxAllocation,
		Amount:   types.NewBigInt(50),
	}))

	t.Run("RecentNewestFirstWithLimit", func(t *testing.T) {
		txs, err := s.ListTransactions(ctx, 2)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "50", txs[0].Amount.String())
		assert.Equal(t, "3", txs[1].Amount.String())
	})

	t.Run("FilterByPolicy", func(t *testing.T) {
		txs, err := s.TransactionsForPolicy(ctx, policy.ID)
		require.NoError(t, err)
		assert.Len(t, txs, 3)
		for _, tx := range txs {
			assert.Equal(t, policy.ID, tx.PolicyID)
		}
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		tx := &types.FundTransaction{PolicyID: policy.ID, Type: types.TxFee, Amount: types.NewBigInt(1)}
		require.NoError(t, s.RecordTransaction(ctx, tx))
		assert.Equal(t, types.TxPending, tx.Status)
		assert.NotEmpty(t, tx.TransactionHash)
		assert.NotZero(t, tx.Timestamp)
	})

	t.Run("NonPositiveAmountRejected", func(t *testing.T) {
		err := s.RecordTransaction(ctx, &types.FundTransaction{PolicyID: policy.ID, Amount: types.NewBigInt(0)})
		assert.Error(t, err)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, Seed(ctx, s))

	policies, err := s.ListPolicies(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, policies)
	for i := range policies {
		assert.NoError(t, policies[i].Validate())
	}

	proposals, err := s.ListProposals(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, proposals)
	for i := range proposals {
		assert.NoError(t, proposals[i].Validate())
	}
}
