// Package store persists the governance entities. The default backend is
// in-memory; a postgres-backed implementation is selected when a DSN is
// configured. Entities are never hard-deleted, only moved through their
// lifecycles.
package store

import (
	"context"
	"errors"

	"github.com/civicledger/civicledger/pkg/types"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a lifecycle rule forbids the
	// requested status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientFunds is returned when a release would push
	// fund_released past fund_allocation.
	ErrInsufficientFunds = errors.New("insufficient remaining allocation")
	// ErrVotingClosed is returned when a vote arrives outside the
	// proposal's voting window.
	ErrVotingClosed = errors.New("voting is not open")
	// ErrInvalidVote is returned for an unknown vote type or non-positive
	// voting power.
	ErrInvalidVote = errors.New("invalid vote")
	// ErrInvalidAmount is returned for a non-positive monetary amount.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Vote is one ballot cast against a proposal.
type Vote struct {
	Voter  string
	Type   types.VoteType
	Power  types.BigInt
	Reason string
}

// Store is the persistence boundary shared by the in-memory and postgres
// backends.
type Store interface {
	ListPolicies(ctx context.Context) ([]types.Policy, error)
	GetPolicy(ctx context.Context, id string) (*types.Policy, error)
	CreatePolicy(ctx context.Context, policy *types.Policy) error
	ActivatePolicy(ctx context.Context, id string) (*types.Policy, error)
	ReleaseFunds(ctx context.Context, policyID string, amount types.BigInt, toAddress string) (*types.FundTransaction, error)

	ListComplaints(ctx context.Context) ([]types.Complaint, error)
	GetComplaint(ctx context.Context, id string) (*types.Complaint, error)
	CreateComplaint(ctx context.Context, complaint *types.Complaint) error

	ListProposals(ctx context.Context) ([]types.Proposal, error)
	GetProposal(ctx context.Context, id string) (*types.Proposal, error)
	CreateProposal(ctx context.Context, proposal *types.Proposal) error
	CastVote(ctx context.Context, proposalID string, vote Vote) (*types.Proposal, error)

	ListTransactions(ctx context.Context, limit int) ([]types.FundTransaction, error)
	TransactionsForPolicy(ctx context.Context, policyID string) ([]types.FundTransaction, error)
	RecordTransaction(ctx context.Context, tx *types.FundTransaction) error

	Ping(ctx context.Context) error
	Close() error
}
