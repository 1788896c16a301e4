package types

import (
	"encoding/json"
	"fmt"
)

// Status values arrive in two wire shapes: a plain string ("Active") from the
// HTTP backend, or a tagged union ({"Active":null}) from the canister-style
// mock service. decodeVariant accepts both and returns the canonical label so
// consumers never see the raw shape.
func decodeVariant(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return "", fmt.Errorf("invalid enum value %s", string(data))
	}
	if len(tagged) != 1 {
		return "", fmt.Errorf("invalid enum variant %s", string(data))
	}
	for k := range tagged {
		return k, nil
	}
	return "", fmt.Errorf("invalid enum variant %s", string(data))
}

// PolicyStatus is the lifecycle state of a Policy.
type PolicyStatus string

const (
	PolicyDraft       PolicyStatus = "Draft"
	PolicyActive      PolicyStatus = "Active"
	PolicyPaused      PolicyStatus = "Paused"
	PolicyUnderReview PolicyStatus = "UnderReview"
	PolicyCompleted   PolicyStatus = "Completed"
	PolicyCancelled   PolicyStatus = "Cancelled"
)

// policyTransitions encodes Draft → Active → Paused/UnderReview → Completed/Cancelled.
var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyDraft:       {PolicyActive, PolicyCancelled},
	PolicyActive:      {PolicyPaused, PolicyUnderReview, PolicyCompleted, PolicyCancelled},
	PolicyPaused:      {PolicyActive, PolicyCancelled},
	PolicyUnderReview: {PolicyActive, PolicyCompleted, PolicyCancelled},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	for _, allowed := range policyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *PolicyStatus) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*s = PolicyStatus(label)
	return nil
}

// ComplaintStatus is the lifecycle state of a Complaint.
type ComplaintStatus string

const (
	ComplaintSubmitted     ComplaintStatus = "Submitted"
	ComplaintUnderReview   ComplaintStatus = "UnderReview"
	ComplaintInvestigation ComplaintStatus = "Investigation"
	ComplaintResolved      ComplaintStatus = "Resolved"
	ComplaintDismissed     ComplaintStatus = "Dismissed"
	ComplaintEscalated     ComplaintStatus = "Escalated"
)

var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintSubmitted:     {ComplaintUnderReview, ComplaintDismissed},
	ComplaintUnderReview:   {ComplaintInvestigation, ComplaintResolved, ComplaintDismissed, ComplaintEscalated},
	ComplaintInvestigation: {ComplaintResolved, ComplaintDismissed, ComplaintEscalated},
	ComplaintEscalated:     {ComplaintInvestigation, ComplaintResolved, ComplaintDismissed},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ComplaintStatus) CanTransitionTo(next ComplaintStatus) bool {
	for _, allowed := range complaintTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *ComplaintStatus) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*s = ComplaintStatus(label)
	return nil
}

// ComplaintPriority orders complaints for triage.
type ComplaintPriority string

const (
	PriorityLow      ComplaintPriority = "Low"
	PriorityMedium   ComplaintPriority = "Medium"
	PriorityHigh     ComplaintPriority = "High"
	PriorityCritical ComplaintPriority = "Critical"
)

func (p *ComplaintPriority) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*p = ComplaintPriority(label)
	return nil
}

// ProposalStatus is the lifecycle state of a Proposal.
type ProposalStatus string

const (
	ProposalDraft    ProposalStatus = "Draft"
	ProposalActive   ProposalStatus = "Active"
	ProposalPassed   ProposalStatus = "Passed"
	ProposalRejected ProposalStatus = "Rejected"
	ProposalExecuted ProposalStatus = "Executed"
	ProposalExpired  ProposalStatus = "Expired"
)

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalDraft:  {ProposalActive},
	ProposalActive: {ProposalPassed, ProposalRejected, ProposalExpired},
	ProposalPassed: {ProposalExecuted, ProposalExpired},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	for _, allowed := range proposalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *ProposalStatus) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*s = ProposalStatus(label)
	return nil
}

// VoteType is a ballot choice on a proposal.
type VoteType string

const (
	VoteYes     VoteType = "Yes"
	VoteNo      VoteType = "No"
	VoteAbstain VoteType = "Abstain"
)

func (v *VoteType) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*v = VoteType(label)
	return nil
}

// TransactionType classifies fund movements.
type TransactionType string

const (
	TxAllocation TransactionType = "Allocation"
	TxRelease    TransactionType = "Release"
	TxTransfer   TransactionType = "Transfer"
	TxRefund     TransactionType = "Refund"
	TxFee        TransactionType = "Fee"
)

func (t *TransactionType) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*t = TransactionType(label)
	return nil
}

// TransactionStatus is the lifecycle state of a FundTransaction.
type TransactionStatus string

const (
	TxPending    TransactionStatus = "Pending"
	TxProcessing TransactionStatus = "Processing"
	TxCompleted  TransactionStatus = "Completed"
	TxFailed     TransactionStatus = "Failed"
	TxCancelled  TransactionStatus = "Cancelled"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TxPending:    {TxProcessing, TxCompleted, TxFailed, TxCancelled},
	TxProcessing: {TxCompleted, TxFailed, TxCancelled},
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	label, err := decodeVariant(data)
	if err != nil {
		return err
	}
	*s = TransactionStatus(label)
	return nil
}
