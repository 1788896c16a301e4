package client

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicledger/civicledger/pkg/types"
)

// PolicyService wraps the /policies endpoints.
type PolicyService struct {
	c *Client
}

// CreatePolicyRequest is the body for creating a policy. FundAllocation
// crosses the wire as a decimal string.
type CreatePolicyRequest struct {
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Category            string       `json:"category"`
	District            string       `json:"district"`
	FundAllocation      types.BigInt `json:"fund_allocation"`
	EligibilityCriteria []string     `json:"eligibility_criteria"`
	ExecutionConditions []string     `json:"execution_conditions"`
	SmartContractCode   string       `json:"smart_contract_code,omitempty"`
}

// ReleaseFundsRequest is the body for releasing funds from a policy.
type ReleaseFundsRequest struct {
	Amount    types.BigInt `json:"amount"`
	ToAddress string       `json:"to_address"`
}

// GetAll lists all policies. Fail-soft: an unreachable or rejecting
// backend yields an empty slice.
func (s *PolicyService) GetAll(ctx context.Context) []types.Policy {
	var policies []types.Policy
	if !s.c.safeGet(ctx, "/policies", &policies) {
		return []types.Policy{}
	}
	return policies
}

// Get fetches one policy. Fail-soft: nil when unavailable.
func (s *PolicyService) Get(ctx context.Context, id string) *types.Policy {
	var policy types.Policy
	if !s.c.safeGet(ctx, "/policies/"+id, &policy) {
		return nil
	}
	return &policy
}

// Create registers a new policy and returns its ID. Fail-hard.
func (s *PolicyService) Create(ctx context.Context, req CreatePolicyRequest) (string, error) {
	var out idResponse
	if err := s.c.do(ctx, http.MethodPost, "/policies", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Activate transitions a draft policy to active. Fail-hard.
func (s *PolicyService) Activate(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodPut, "/policies/"+id+"/activate", nil, nil)
}

// ReleaseFunds releases part of a policy's allocation and returns the
// resulting transaction ID. Fail-hard.
func (s *PolicyService) ReleaseFunds(ctx context.Context, id string, req ReleaseFundsRequest) (string, error) {
	var out idResponse
	if err := s.c.do(ctx, http.MethodPost, "/policies/"+id+"/release-funds", req, &out); err != nil {
		return "", err
	}
	return out.TransactionID, nil
}

// SubscribeToUpdates registers cb for pushed policy collections and returns
// the unsubscribe function. Callers must invoke it on teardown.
func (s *PolicyService) SubscribeToUpdates(cb func([]types.Policy)) func() {
	ch := s.c.getChannel()
	ch.Emit("subscribe_policies", nil)
	return ch.Subscribe("policies_update", func(data json.RawMessage) {
		var policies []types.Policy
		if err := json.Unmarshal(data, &policies); err != nil {
			s.c.logger.Warn("malformed policies update", zap.Error(err))
			return
		}
		cb(policies)
	})
}
