package client

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicledger/civicledger/pkg/types"
)

// ProposalService wraps the /proposals endpoints.
type ProposalService struct {
	c *Client
}

// CreateProposalRequest is the body for opening a proposal. The voting
// window length travels as a decimal string like the other large numerics.
type CreateProposalRequest struct {
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Proposer            string       `json:"proposer"`
	VotingDurationHours types.BigInt `json:"voting_duration_hours"`
	QuorumRequired      types.BigInt `json:"quorum_required"`
}

// CastVoteRequest is the body for voting on a proposal.
type CastVoteRequest struct {
	Voter       string         `json:"voter"`
	VoteType    types.VoteType `json:"vote_type"`
	VotingPower types.BigInt   `json:"voting_power"`
	Reason      string         `json:"reason,omitempty"`
}

// GetAll lists all proposals. Fail-soft.
func (s *ProposalService) GetAll(ctx context.Context) []types.Proposal {
	var proposals []types.Proposal
	if !s.c.safeGet(ctx, "/proposals", &proposals) {
		return []types.Proposal{}
	}
	return proposals
}

// Get fetches one proposal. Fail-soft: nil when unavailable.
func (s *ProposalService) Get(ctx context.Context, id string) *types.Proposal {
	var proposal types.Proposal
	if !s.c.safeGet(ctx, "/proposals/"+id, &proposal) {
		return nil
	}
	return &proposal
}

// Create opens a new proposal and returns its ID. Fail-hard.
func (s *ProposalService) Create(ctx context.Context, req CreateProposalRequest) (string, error) {
	var out idResponse
	if err := s.c.do(ctx, http.MethodPost, "/proposals", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CastVote records a vote on a proposal. Fail-hard.
func (s *ProposalService) CastVote(ctx context.Context, id string, req CastVoteRequest) error {
	return s.c.do(ctx, http.MethodPost, "/proposals/"+id+"/vote", req, nil)
}

// SubscribeToUpdates registers cb for pushed proposal collections and
// returns the unsubscribe function.
func (s *ProposalService) SubscribeToUpdates(cb func([]types.Proposal)) func() {
	ch := s.c.getChannel()
	ch.Emit("subscribe_proposals", nil)
	return ch.Subscribe("proposals_update", func(data json.RawMessage) {
		var proposals []types.Proposal
		if err := json.Unmarshal(data, &proposals); err != nil {
			s.c.logger.Warn("malformed proposals update", zap.Error(err))
			return
		}
		cb(proposals)
	})
}
