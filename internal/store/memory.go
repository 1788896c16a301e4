package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicledger/civicledger/pkg/types"
)

// MemoryStore keeps everything in process memory. It is the default backend
// for local and demo use; data lives for the lifetime of the server.
type MemoryStore struct {
	mu sync.RWMutex

	policies   map[string]*types.Policy
	complaints map[string]*types.Complaint
	proposals  map[string]*types.Proposal
	txs        map[string]*types.FundTransaction

	// Insertion order, so lists are stable across repeated fetches.
	policyOrder    []string
	complaintOrder []string
	proposalOrder  []string
	txOrder        []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies:   make(map[string]*types.Policy),
		complaints: make(map[string]*types.Complaint),
		proposals:  make(map[string]*types.Proposal),
		txs:        make(map[string]*types.FundTransaction),
	}
}

func nowNanos() int64 {
	return time.Now().UnixNano()
}

// txHash derives the opaque transaction hash from the ID and timestamp.
func txHash(id string, ts int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", id, ts)))
	return "0x" + hex.EncodeToString(sum[:])
}

func (s *MemoryStore) ListPolicies(ctx context.Context) ([]types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Policy, 0, len(s.policyOrder))
	for _, id := range s.policyOrder {
		out = append(out, *s.policies[id])
	}
	return out, nil
}

func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	copied := *policy
	return &copied, nil
}

func (s *MemoryStore) CreatePolicy(ctx context.Context, policy *types.Policy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := nowNanos()
	if policy.CreatedAt == 0 {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = policy.CreatedAt
	if policy.Status == "" {
		policy.Status = types.PolicyDraft
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *policy
	s.policies[policy.ID] = &copied
	s.policyOrder = append(s.policyOrder, policy.ID)
	return nil
}

func (s *MemoryStore) ActivatePolicy(ctx context.Context, id string) (*types.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policy, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	if !policy.Status.CanTransitionTo(types.PolicyActive) {
		return nil, fmt.Errorf("policy %s is %s: %w", id, policy.Status, ErrInvalidTransition)
	}
	policy.Status = types.PolicyActive
	policy.UpdatedAt = nowNanos()

	copied := *policy
	return &copied, nil
}

func (s *MemoryStore) ReleaseFunds(ctx context.Context, policyID string, amount types.BigInt, toAddress string) (*types.FundTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("release amount must be positive: %w", ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	policy, ok := s.policies[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	if policy.Status != types.PolicyActive {
		return nil, fmt.Errorf("policy %s is %s: %w", policyID, policy.Status, ErrInvalidTransition)
	}
	if amount.Cmp(policy.RemainingFunds()) > 0 {
		return nil, fmt.Errorf("policy %s has %s remaining: %w",
			policyID, policy.RemainingFunds().String(), ErrInsufficientFunds)
	}

	now := nowNanos()
	policy.FundReleased = policy.FundReleased.Add(amount)
	policy.UpdatedAt = now

	tx := &types.FundTransaction{
		ID:          uuid.NewString(),
		PolicyID:    policyID,
		Type:        types.TxRelease,
		Amount:      amount,
		FromAddress: "treasury",
		ToAddress:   toAddress,
		Timestamp:   now,
		Status:      types.TxCompleted,
	}
	tx.TransactionHash = txHash(tx.ID, now)
	s.txs[tx.ID] = tx
	s.txOrder = append(s.txOrder, tx.ID)

	copied := *tx
	return &copied, nil
}

func (s *MemoryStore) ListComplaints(ctx context.Context) ([]types.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Complaint, 0, len(s.complaintOrder))
	for _, id := range s.complaintOrder {
		out = append(out, *s.complaints[id])
	}
	return out, nil
}

func (s *MemoryStore) GetComplaint(ctx context.Context, id string) (*types.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	complaint, ok := s.complaints[id]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
	}
	copied := *complaint
	return &copied, nil
}

func (s *MemoryStore) CreateComplaint(ctx context.Context, complaint *types.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := nowNanos()
	if complaint.CreatedAt == 0 {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = complaint.CreatedAt
	if complaint.Status == "" {
		complaint.Status = types.ComplaintSubmitted
	}
	if complaint.Priority == "" {
		complaint.Priority = types.PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *complaint
	s.complaints[complaint.ID] = &copied
	s.complaintOrder = append(s.complaintOrder, complaint.ID)
	return nil
}

func (s *MemoryStore) ListProposals(ctx context.Context) ([]types.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Proposal, 0, len(s.proposalOrder))
	for _, id := range s.proposalOrder {
		out = append(out, *s.proposals[id])
	}
	return out, nil
}

func (s *MemoryStore) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proposal, ok := s.proposals[id]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
	}
	copied := *proposal
	return &copied, nil
}

func (s *MemoryStore) CreateProposal(ctx context.Context, proposal *types.Proposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := nowNanos()
	if proposal.CreatedAt == 0 {
		proposal.CreatedAt = now
	}
	if proposal.VotingStart == 0 {
		proposal.VotingStart = proposal.CreatedAt
	}
	if proposal.Status == "" {
		proposal.Status = types.ProposalActive
	}
	if err := proposal.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *proposal
	s.proposals[proposal.ID] = &copied
	s.proposalOrder = append(s.proposalOrder, proposal.ID)
	return nil
}

func (s *MemoryStore) CastVote(ctx context.Context, proposalID string, vote Vote) (*types.Proposal, error) {
	if vote.Power.Sign() <= 0 {
		return nil, fmt.Errorf("voting power must be positive: %w", ErrInvalidVote)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proposal, ok := s.proposals[proposalID]
	if !ok {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	now := nowNanos()
	if proposal.Status != types.ProposalActive || now < proposal.VotingStart || now > proposal.VotingEnd {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrVotingClosed)
	}

	switch vote.Type {
	case types.VoteYes:
		proposal.YesVotes = proposal.YesVotes.Add(vote.Power)
	case types.VoteNo:
		proposal.NoVotes = proposal.NoVotes.Add(vote.Power)
	case types.VoteAbstain:
		proposal.AbstainVotes = proposal.AbstainVotes.Add(vote.Power)
	default:
		return nil, fmt.Errorf("unknown vote type %q: %w", vote.Type, ErrInvalidVote)
	}
	proposal.TotalVotes = proposal.YesVotes.Add(proposal.NoVotes).Add(proposal.AbstainVotes)

	copied := *proposal
	return &copied, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, limit int) ([]types.FundTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first.
	out := make([]types.FundTransaction, 0, len(s.txOrder))
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		out = append(out, *s.txs[s.txOrder[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) TransactionsForPolicy(ctx context.Context, policyID string) ([]types.FundTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.FundTransaction
	for _, id := range s.txOrder {
		if s.txs[id].PolicyID == policyID {
			out = append(out, *s.txs[id])
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordTransaction(ctx context.Context, tx *types.FundTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = nowNanos()
	}
	if tx.Status == "" {
		tx.Status = types.TxPending
	}
	if tx.TransactionHash == "" {
		tx.TransactionHash = txHash(tx.ID, tx.Timestamp)
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *tx
	s.txs[tx.ID] = &copied
	s.txOrder = append(s.txOrder, tx.ID)
	return nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
