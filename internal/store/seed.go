package store

import (
	"context"
	"fmt"
	"time"

	"github.com/civicledger/civicledger/pkg/types"
)

// Seed loads the demo dataset into an empty store. Amounts use the 10^8
// fixed-point scale the dashboards format with.
func Seed(ctx context.Context, s Store) error {
	now := time.Now().UnixNano()
	day := int64(24 * time.Hour)

	policies := []*types.Policy{
		{
			Title:          "Rural Road Rehabilitation",
			Description:    "Resurfacing of 40km of district roads with drainage works.",
			Category:       "Infrastructure",
			District:       "North",
			FundAllocation: types.MustBigInt("500000000000"), // 5000.00
			Beneficiaries:  12000,
			Status:         types.PolicyActive,
			CreatedAt:      now - 30*day,
			Contractor:     "Meridian Works Ltd",
			EligibilityCriteria: []string{
				"Village population above 500",
				"Road classified as all-weather priority",
			},
			ExecutionConditions: []string{
				"Milestone inspection before each release",
			},
		},
		{
			Title:          "Primary School Meal Program",
			Description:    "Daily mid-day meals across 85 primary schools.",
			Category:       "Education",
			District:       "East",
			FundAllocation: types.MustBigInt("250000000000"),
			Beneficiaries:  8500,
			Status:         types.PolicyDraft,
			CreatedAt:      now - 7*day,
			EligibilityCriteria: []string{
				"Government-run primary schools only",
			},
		},
		{
			Title:          "Clean Water Access",
			Description:    "Borewell installation and purification units for 15 villages.",
			Category:       "Health",
			District:       "South",
			FundAllocation: types.MustBigInt("120000000000"),
			Beneficiaries:  4300,
			Status:         types.PolicyActive,
			CreatedAt:      now - 60*day,
			Contractor:     "AquaGrid Services",
		},
	}
	for _, p := range policies {
		if err := s.CreatePolicy(ctx, p); err != nil {
			return fmt.Errorf("seed policy %q: %w", p.Title, err)
		}
	}

	complaints := []*types.Complaint{
		{
			Title:       "Road work abandoned near Keshavpur",
			Description: "Contractor equipment idle for three weeks, open trenches remain.",
			Category:    "Infrastructure",
			Priority:    types.PriorityHigh,
			Status:      types.ComplaintUnderReview,
			PolicyID:    policies[0].ID,
			District:    "North",
			Location:    "Keshavpur junction",
			CitizenID:   "citizen-4821",
			AuditScore:  0.72,
			AIAnalysis: &types.AIAnalysis{
				Sentiment:         "negative",
				PredictedCategory: "Infrastructure",
				PriorityScore:     0.81,
				SuggestedAction:   "Schedule site inspection",
				Confidence:        0.9,
				Keywords:          []string{"road", "contractor", "delay"},
			},
		},
		{
			Title:       "Water unit leaking",
			Description: "Purification unit in Dharapuram leaks since installation.",
			Category:    "Health",
			Priority:    types.PriorityMedium,
			Status:      types.ComplaintSubmitted,
			PolicyID:    policies[2].ID,
			District:    "South",
			Location:    "Dharapuram village center",
			CitizenID:   "citizen-1107",
			AuditScore:  0.35,
		},
	}
	for _, c := range complaints {
		if err := s.CreateComplaint(ctx, c); err != nil {
			return fmt.Errorf("seed complaint %q: %w", c.Title, err)
		}
	}

	proposals := []*types.Proposal{
		{
			Title:          "Extend meal program to middle schools",
			Description:    "Raise the meal program allocation to cover grades 6-8.",
			Proposer:       "council-member-3",
			CreatedAt:      now - 2*day,
			VotingStart:    now - 2*day,
			VotingEnd:      now + 5*day,
			Status:         types.ProposalActive,
			YesVotes:       types.NewBigInt(42),
			NoVotes:        types.NewBigInt(11),
			AbstainVotes:   types.NewBigInt(3),
			TotalVotes:     types.NewBigInt(56),
			QuorumRequired: types.NewBigInt(100),
		},
	}
	for _, p := range proposals {
		if err := s.CreateProposal(ctx, p); err != nil {
			return fmt.Errorf("seed proposal %q: %w", p.Title, err)
		}
	}

	txs := []*types.FundTransaction{
		{
			PolicyID:    policies[0].ID,
			Type:        types.TxAllocation,
			Amount:      types.MustBigInt("500000000000"),
			FromAddress: "treasury",
			ToAddress:   "policy-escrow",
			Timestamp:   now - 29*day,
			Status:      types.TxCompleted,
			Metadata: []types.MetadataEntry{
				{Key: "approved_by", Value: "finance-board"},
			},
		},
		{
			PolicyID:    policies[2].ID,
			Type:        types.TxAllocation,
			Amount:      types.MustBigInt("120000000000"),
			FromAddress: "treasury",
			ToAddress:   "policy-escrow",
			Timestamp:   now - 59*day,
			Status:      types.TxCompleted,
		},
	}
	for _, tx := range txs {
		if err := s.RecordTransaction(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction for %s: %w", tx.PolicyID, err)
		}
	}

	return nil
}
