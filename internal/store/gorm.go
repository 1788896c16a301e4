package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/civicledger/civicledger/pkg/types"
)

// GormStore persists entities in postgres. Selected when a database DSN is
// configured; the demo default stays in memory.
type GormStore struct {
	db *gorm.DB
}

// policyRecord is the relational shape of types.Policy. List fields are
// stored as JSON text.
type policyRecord struct {
	ID                  string       `gorm:"primaryKey;size:64"`
	Title               string       `gorm:"size:256;not null"`
	Description         string       `gorm:"type:text"`
	Category            string       `gorm:"size:64;index"`
	District            string       `gorm:"size:64;index"`
	FundAllocation      types.BigInt `gorm:"type:text"`
	FundReleased        types.BigInt `gorm:"type:text"`
	Beneficiaries       uint64
	Status              string `gorm:"size:32;index"`
	CreatedAt           int64
	UpdatedAt           int64
	Contractor          string `gorm:"size:128"`
	EligibilityCriteria []byte `gorm:"type:jsonb"`
	ExecutionConditions []byte `gorm:"type:jsonb"`
	SmartContractCode   string `gorm:"type:text"`
}

func (policyRecord) TableName() string { return "policies" }

type complaintRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	Title       string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	Category    string `gorm:"size:64;index"`
	Priority    string `gorm:"size:16"`
	Status      string `gorm:"size:32;index"`
	PolicyID    string `gorm:"size:64;index"`
	District    string `gorm:"size:64"`
	Location    string `gorm:"size:256"`
	Media       []byte `gorm:"type:jsonb"`
	CitizenID   string `gorm:"size:64"`
	CreatedAt   int64
	UpdatedAt   int64
	AIAnalysis  []byte `gorm:"type:jsonb"`
	AuditScore  float64
}

func (complaintRecord) TableName() string { return "complaints" }

type proposalRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	Title          string `gorm:"size:256;not null"`
	Description    string `gorm:"type:text"`
	Proposer       string `gorm:"size:64"`
	CreatedAt      int64
	VotingStart    int64
	VotingEnd      int64
	Status         string       `gorm:"size:32;index"`
	YesVotes       types.BigInt `gorm:"type:text"`
	NoVotes        types.BigInt `gorm:"type:text"`
	AbstainVotes   types.BigInt `gorm:"type:text"`
	TotalVotes     types.BigInt `gorm:"type:text"`
	QuorumRequired types.BigInt `gorm:"type:text"`
	Execution      []byte       `gorm:"type:jsonb"`
}

func (proposalRecord) TableName() string { return "proposals" }

type transactionRecord struct {
	ID              string       `gorm:"primaryKey;size:64"`
	PolicyID        string       `gorm:"size:64;index"`
	Type            string       `gorm:"size:32"`
	Amount          types.BigInt `gorm:"type:text"`
	FromAddress     string       `gorm:"size:128"`
	ToAddress       string       `gorm:"size:128"`
	Timestamp       int64        `gorm:"index"`
	Status          string       `gorm:"size:32"`
	TransactionHash string       `gorm:"size:128"`
	Metadata        []byte       `gorm:"type:jsonb"`
}

func (transactionRecord) TableName() string { return "fund_transactions" }

// NewGormStore connects to postgres and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&policyRecord{}, &complaintRecord{}, &proposalRecord{}, &transactionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func mustJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func policyToRecord(p *types.Policy) *policyRecord {
	return &policyRecord{
		ID:                  p.ID,
		Title:               p.Title,
		Description:         p.Description,
		Category:            p.Category,
		District:            p.District,
		FundAllocation:      p.FundAllocation,
		FundReleased:        p.FundReleased,
		Beneficiaries:       p.Beneficiaries,
		Status:              string(p.Status),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		Contractor:          p.Contractor,
		EligibilityCriteria: mustJSON(p.EligibilityCriteria),
		ExecutionConditions: mustJSON(p.ExecutionConditions),
		SmartContractCode:   p.SmartContractCode,
	}
}

func recordToPolicy(r *policyRecord) types.Policy {
	p := types.Policy{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		Category:          r.Category,
		District:          r.District,
		FundAllocation:    r.FundAllocation,
		FundReleased:      r.FundReleased,
		Beneficiaries:     r.Beneficiaries,
		Status:            types.PolicyStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Contractor:        r.Contractor,
		SmartContractCode: r.SmartContractCode,
	}
	_ = json.Unmarshal(r.EligibilityCriteria, &p.EligibilityCriteria)
	_ = json.Unmarshal(r.ExecutionConditions, &p.ExecutionConditions)
	return p
}

func complaintToRecord(c *types.Complaint) *complaintRecord {
	return &complaintRecord{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Priority:    string(c.Priority),
		Status:      string(c.Status),
		PolicyID:    c.PolicyID,
		District:    c.District,
		Location:    c.Location,
		Media:       mustJSON(c.Media),
		CitizenID:   c.CitizenID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		AIAnalysis:  mustJSON(c.AIAnalysis),
		AuditScore:  c.AuditScore,
	}
}

func recordToComplaint(r *complaintRecord) types.Complaint {
	c := types.Complaint{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Priority:    types.ComplaintPriority(r.Priority),
		Status:      types.ComplaintStatus(r.Status),
		PolicyID:    r.PolicyID,
		District:    r.District,
		Location:    r.Location,
		CitizenID:   r.CitizenID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		AuditScore:  r.AuditScore,
	}
	_ = json.Unmarshal(r.Media, &c.Media)
	if len(r.AIAnalysis) > 0 {
		var analysis types.AIAnalysis
		if json.Unmarshal(r.AIAnalysis, &analysis) == nil {
			c.AIAnalysis = &analysis
		}
	}
	return c
}

func proposalToRecord(p *types.Proposal) *proposalRecord {
	return &proposalRecord{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Proposer:       p.Proposer,
		CreatedAt:      p.CreatedAt,
		VotingStart:    p.VotingStart,
		VotingEnd:      p.VotingEnd,
		Status:         string(p.Status),
		YesVotes:       p.YesVotes,
		NoVotes:        p.NoVotes,
		AbstainVotes:   p.AbstainVotes,
		TotalVotes:     p.TotalVotes,
		QuorumRequired: p.QuorumRequired,
		Execution:      mustJSON(p.Execution),
	}
}

func recordToProposal(r *proposalRecord) types.Proposal {
	p := types.Proposal{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Proposer:       r.Proposer,
		CreatedAt:      r.CreatedAt,
		VotingStart:    r.VotingStart,
		VotingEnd:      r.VotingEnd,
		Status:         types.ProposalStatus(r.Status),
		YesVotes:       r.YesVotes,
		NoVotes:        r.NoVotes,
		AbstainVotes:   r.AbstainVotes,
		TotalVotes:     r.TotalVotes,
		QuorumRequired: r.QuorumRequired,
	}
	if len(r.Execution) > 0 {
		var exec types.ExecutionRecord
		if json.Unmarshal(r.Execution, &exec) == nil {
			p.Execution = &exec
		}
	}
	return p
}

func txToRecord(t *types.FundTransaction) *transactionRecord {
	return &transactionRecord{
		ID:              t.ID,
		PolicyID:        t.PolicyID,
		Type:            string(t.Type),
		Amount:          t.Amount,
		FromAddress:     t.FromAddress,
		ToAddress:       t.ToAddress,
		Timestamp:       t.Timestamp,
		Status:          string(t.Status),
		TransactionHash: t.TransactionHash,
		Metadata:        mustJSON(t.Metadata),
	}
}

func recordToTx(r *transactionRecord) types.FundTransaction {
	t := types.FundTransaction{
		ID:              r.ID,
		PolicyID:        r.PolicyID,
		Type:            types.TransactionType(r.Type),
		Amount:          r.Amount,
		FromAddress:     r.FromAddress,
		ToAddress:       r.ToAddress,
		Timestamp:       r.Timestamp,
		Status:          types.TransactionStatus(r.Status),
		TransactionHash: r.TransactionHash,
	}
	_ = json.Unmarshal(r.Metadata, &t.Metadata)
	return t
}

func (s *GormStore) ListPolicies(ctx context.Context) ([]types.Policy, error) {
	var records []policyRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.Policy, 0, len(records))
	for i := range records {
		out = append(out, recordToPolicy(&records[i]))
	}
	return out, nil
}

func (s *GormStore) GetPolicy(ctx context.Context, id string) (*types.Policy, error) {
	var record policyRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	policy := recordToPolicy(&record)
	return &policy, nil
}

func (s *GormStore) CreatePolicy(ctx context.Context, policy *types.Policy) error {
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
	return s.db.WithContext(ctx).Create(policyToRecord(policy)).Error
}

func (s *GormStore) ActivatePolicy(ctx context.Context, id string) (*types.Policy, error) {
	var out *types.Policy
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record policyRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("policy %s: %w", id, ErrNotFound)
			}
			return err
		}
		status := types.PolicyStatus(record.Status)
		if !status.CanTransitionTo(types.PolicyActive) {
			return fmt.Errorf("policy %s is %s: %w", id, status, ErrInvalidTransition)
		}
		record.Status = string(types.PolicyActive)
		record.UpdatedAt = nowNanos()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		policy := recordToPolicy(&record)
		out = &policy
		return nil
	})
	return out, err
}

func (s *GormStore) ReleaseFunds(ctx context.Context, policyID string, amount types.BigInt, toAddress string) (*types.FundTransaction, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("release amount must be positive: %w", ErrInvalidAmount)
	}

	var out *types.FundTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the row so concurrent releases serialize on the
		// remaining-allocation check.
		var record policyRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", policyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
			}
			return err
		}
		policy := recordToPolicy(&record)
		if policy.Status != types.PolicyActive {
			return fmt.Errorf("policy %s is %s: %w", policyID, policy.Status, ErrInvalidTransition)
		}
		if amount.Cmp(policy.RemainingFunds()) > 0 {
			return fmt.Errorf("policy %s has %s remaining: %w",
				policyID, policy.RemainingFunds().String(), ErrInsufficientFunds)
		}

		now := nowNanos()
		record.FundReleased = policy.FundReleased.Add(amount)
		record.UpdatedAt = now
		if err := tx.Save(&record).Error; err != nil {
			return err
		}

		fundTx := &types.FundTransaction{
			ID:          uuid.NewString(),
			PolicyID:    policyID,
			Type:        types.TxRelease,
			Amount:      amount,
			FromAddress: "treasury",
			ToAddress:   toAddress,
			Timestamp:   now,
			Status:      types.TxCompleted,
		}
		fundTx.TransactionHash = txHash(fundTx.ID, now)
		if err := tx.Create(txToRecord(fundTx)).Error; err != nil {
			return err
		}
		out = fundTx
		return nil
	})
	return out, err
}

func (s *GormStore) ListComplaints(ctx context.Context) ([]types.Complaint, error) {
	var records []complaintRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.Complaint, 0, len(records))
	for i := range records {
		out = append(out, recordToComplaint(&records[i]))
	}
	return out, nil
}

func (s *GormStore) GetComplaint(ctx context.Context, id string) (*types.Complaint, error) {
	var record complaintRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	complaint := recordToComplaint(&record)
	return &complaint, nil
}

func (s *GormStore) CreateComplaint(ctx context.Context, complaint *types.Complaint) error {
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
	return s.db.WithContext(ctx).Create(complaintToRecord(complaint)).Error
}

func (s *GormStore) ListProposals(ctx context.Context) ([]types.Proposal, error) {
	var records []proposalRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.Proposal, 0, len(records))
	for i := range records {
		out = append(out, recordToProposal(&records[i]))
	}
	return out, nil
}

func (s *GormStore) GetProposal(ctx context.Context, id string) (*types.Proposal, error) {
	var record proposalRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	proposal := recordToProposal(&record)
	return &proposal, nil
}

func (s *GormStore) CreateProposal(ctx context.Context, proposal *types.Proposal) error {
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
	return s.db.WithContext(ctx).Create(proposalToRecord(proposal)).Error
}

func (s *GormStore) CastVote(ctx context.Context, proposalID string, vote Vote) (*types.Proposal, error) {
	if vote.Power.Sign() <= 0 {
		return nil, fmt.Errorf("voting power must be positive: %w", ErrInvalidVote)
	}

	var out *types.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the row so concurrent ballots serialize on the tallies.
		var record proposalRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", proposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
			}
			return err
		}
		proposal := recordToProposal(&record)
		now := nowNanos()
		if proposal.Status != types.ProposalActive || now < proposal.VotingStart || now > proposal.VotingEnd {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrVotingClosed)
		}

		switch vote.Type {
		case types.VoteYes:
			proposal.YesVotes = proposal.YesVotes.Add(vote.Power)
		case types.VoteNo:
			proposal.NoVotes = proposal.NoVotes.Add(vote.Power)
		case types.VoteAbstain:
			proposal.AbstainVotes = proposal.AbstainVotes.Add(vote.Power)
		default:
			return fmt.Errorf("unknown vote type %q: %w", vote.Type, ErrInvalidVote)
		}
		proposal.TotalVotes = proposal.YesVotes.Add(proposal.NoVotes).Add(proposal.AbstainVotes)

		if err := tx.Save(proposalToRecord(&proposal)).Error; err != nil {
			return err
		}
		out = &proposal
		return nil
	})
	return out, err
}

func (s *GormStore) ListTransactions(ctx context.Context, limit int) ([]types.FundTransaction, error) {
	q := s.db.WithContext(ctx).Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []transactionRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.FundTransaction, 0, len(records))
	for i := range records {
		out = append(out, recordToTx(&records[i]))
	}
	return out, nil
}

func (s *GormStore) TransactionsForPolicy(ctx context.Context, policyID string) ([]types.FundTransaction, error) {
	var records []transactionRecord
	if err := s.db.WithContext(ctx).Where("policy_id = ?", policyID).Order("timestamp").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]types.FundTransaction, 0, len(records))
	for i := range records {
		out = append(out, recordToTx(&records[i]))
	}
	return out, nil
}

func (s *GormStore) RecordTransaction(ctx context.Context, tx *types.FundTransaction) error {
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
	return s.db.WithContext(ctx).Create(txToRecord(tx)).Error
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
