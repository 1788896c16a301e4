// Package types holds the records exchanged with the civic governance
// backend. Timestamps are nanoseconds since epoch; monetary and weight
// fields are decimal-string integers (see BigInt).
package types

import "fmt"

// Policy is a funded government program tracked from draft to completion.
type Policy struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Category            string       `json:"category"`
	District            string       `json:"district"`
	FundAllocation      BigInt       `json:"fund_allocation"`
	FundReleased        BigInt       `json:"fund_released"`
	Beneficiaries       uint64       `json:"beneficiaries"`
	Status              PolicyStatus `json:"status"`
	CreatedAt           int64        `json:"created_at"`
	UpdatedAt           int64        `json:"updated_at"`
	Contractor          string       `json:"contractor,omitempty"`
	EligibilityCriteria []string     `json:"eligibility_criteria"`
	ExecutionConditions []string     `json:"execution_conditions"`
	// SmartContractCode is display-only text; nothing in this system
	// executes it.
	SmartContractCode string `json:"smart_contract_code,omitempty"`
}

// Validate checks the policy invariants.
func (p *Policy) Validate() error {
	if p.FundAllocation.Sign() < 0 {
		return fmt.Errorf("policy %s: negative fund_allocation", p.ID)
	}
	if p.FundReleased.Sign() < 0 {
		return fmt.Errorf("policy %s: negative fund_released", p.ID)
	}
	if p.FundReleased.Cmp(p.FundAllocation) > 0 {
		return fmt.Errorf("policy %s: fund_released %s exceeds allocation %s",
			p.ID, p.FundReleased.String(), p.FundAllocation.String())
	}
	if p.UpdatedAt < p.CreatedAt {
		return fmt.Errorf("policy %s: updated_at precedes created_at", p.ID)
	}
	return nil
}

// RemainingFunds returns fund_allocation - fund_released.
func (p *Policy) RemainingFunds() BigInt {
	return p.FundAllocation.Sub(p.FundReleased)
}

// AIAnalysis is the automated triage attached to a complaint.
type AIAnalysis struct {
	Sentiment         string   `json:"sentiment"`
	PredictedCategory string   `json:"predicted_category"`
	PriorityScore     float64  `json:"priority_score"`
	SuggestedAction   string   `json:"suggested_action"`
	Confidence        float64  `json:"confidence"`
	Keywords          []string `json:"keywords"`
}

// Complaint is a citizen-filed grievance, optionally linked to a policy.
type Complaint struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Priority    ComplaintPriority `json:"priority"`
	Status      ComplaintStatus   `json:"status"`
	PolicyID    string            `json:"policy_id,omitempty"`
	District    string            `json:"district"`
	Location    string            `json:"location"`
	Media       []string          `json:"media"`
	CitizenID   string            `json:"citizen_id"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
	AIAnalysis  *AIAnalysis       `json:"ai_analysis,omitempty"`
	AuditScore  float64           `json:"audit_score"`
}

// ExecutionRecord captures how a passed proposal was carried out.
type ExecutionRecord struct {
	ExecutedAt    int64  `json:"executed_at"`
	Outcome       string `json:"outcome"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Proposal is a governance question put to a vote.
type Proposal struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Proposer       string           `json:"proposer"`
	CreatedAt      int64            `json:"created_at"`
	VotingStart    int64            `json:"voting_start"`
	VotingEnd      int64            `json:"voting_end"`
	Status         ProposalStatus   `json:"status"`
	YesVotes       BigInt           `json:"yes_votes"`
	NoVotes        BigInt           `json:"no_votes"`
	AbstainVotes   BigInt           `json:"abstain_votes"`
	TotalVotes     BigInt           `json:"total_votes"`
	QuorumRequired BigInt           `json:"quorum_required"`
	Execution      *ExecutionRecord `json:"execution,omitempty"`
}

// Validate checks the proposal invariants.
func (p *Proposal) Validate() error {
	if p.CreatedAt > p.VotingStart || p.VotingStart > p.VotingEnd {
		return fmt.Errorf("proposal %s: created_at <= voting_start <= voting_end violated", p.ID)
	}
	if p.YesVotes.Sign() < 0 || p.NoVotes.Sign() < 0 || p.AbstainVotes.Sign() < 0 {
		return fmt.Errorf("proposal %s: negative vote tally", p.ID)
	}
	sum := p.YesVotes.Add(p.NoVotes).Add(p.AbstainVotes)
	if sum.Cmp(p.TotalVotes) != 0 {
		return fmt.Errorf("proposal %s: total_votes %s != tally sum %s",
			p.ID, p.TotalVotes.String(), sum.String())
	}
	return nil
}

// QuorumReached reports whether total_votes meets quorum_required.
func (p *Proposal) QuorumReached() bool {
	return p.TotalVotes.Cmp(p.QuorumRequired) >= 0
}

// MetadataEntry is one key-value pair on a transaction. Order is not
// significant.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FundTransaction is a single fund movement against a policy.
type FundTransaction struct {
	ID              string            `json:"id"`
	PolicyID        string            `json:"policy_id"`
	Type            TransactionType   `json:"transaction_type"`
	Amount          BigInt            `json:"amount"`
	FromAddress     string            `json:"from_address"`
	ToAddress       string            `json:"to_address"`
	Timestamp       int64             `json:"timestamp"`
	Status          TransactionStatus `json:"status"`
	TransactionHash string            `json:"transaction_hash"`
	Metadata        []MetadataEntry   `json:"metadata"`
}

// Validate checks the transaction invariants.
func (t *FundTransaction) Validate() error {
	if t.Amount.Sign() <= 0 {
		return fmt.Errorf("transaction %s: amount must be positive", t.ID)
	}
	return nil
}

// AnalyticsOverview is the server-computed aggregate snapshot. Read-only
// from the client's point of view.
type AnalyticsOverview struct {
	TotalPolicies       uint64  `json:"total_policies"`
	ActivePolicies      uint64  `json:"active_policies"`
	TotalComplaints     uint64  `json:"total_complaints"`
	ResolvedComplaints  uint64  `json:"resolved_complaints"`
	ResolutionRate      float64 `json:"resolution_rate"`
	TotalProposals      uint64  `json:"total_proposals"`
	ActiveProposals     uint64  `json:"active_proposals"`
	TotalTransactions   uint64  `json:"total_transactions"`
	TotalFundsAllocated BigInt  `json:"total_funds_allocated"`
	TotalFundsReleased  BigInt  `json:"total_funds_released"`
	GeneratedAt         int64   `json:"generated_at"`
}
