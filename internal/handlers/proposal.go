package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
	"github.com/civicledger/civicledger/internal/realtime"
	"github.com/civicledger/civicledger/internal/store"
	"github.com/civicledger/civicledger/pkg/types"
)

// maxVotingHours caps the voting window at one year.
const maxVotingHours = 24 * 365

// ProposalHandler serves the /proposals endpoints.
type ProposalHandler struct {
	pusher
}

// NewProposalHandler creates a proposal handler.
func NewProposalHandler(s store.Store, hub *realtime.Hub, engine *analytics.Engine, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{pusher{
		store:     s,
		hub:       hub,
		analytics: engine,
		logger:    logger.Named("proposal_handler"),
	}}
}

// createProposalRequest is the POST /proposals body. The voting window
// length arrives as a decimal string like the other large numerics.
type createProposalRequest struct {
	Title               string       `json:"title" binding:"required"`
	Description         string       `json:"description"`
	Proposer            string       `json:"proposer" binding:"required"`
	VotingDurationHours types.BigInt `json:"voting_duration_hours"`
	QuorumRequired      types.BigInt `json:"quorum_required"`
}

// castVoteRequest is the POST /proposals/:id/vote body.
type castVoteRequest struct {
	Voter       string         `json:"voter" binding:"required"`
	VoteType    types.VoteType `json:"vote_type" binding:"required"`
	VotingPower types.BigInt   `json:"voting_power"`
	Reason      string         `json:"reason"`
}

// List returns all proposals.
func (h *ProposalHandler) List(c *gin.Context) {
	proposals, err := h.store.ListProposals(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposals)
}

// Get returns one proposal.
func (h *ProposalHandler) Get(c *gin.Context) {
	proposal, err := h.store.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// Create opens a new proposal with an immediate voting window and returns
// its ID.
func (h *ProposalHandler) Create(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration := req.VotingDurationHours.Int()
	if !duration.IsInt64() || duration.Int64() <= 0 || duration.Int64() > maxVotingHours {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("voting_duration_hours must be between 1 and %d", maxVotingHours)})
		return
	}
	hours := duration.Int64()

	now := time.Now().UnixNano()
	proposal := &types.Proposal{
		Title:          req.Title,
		Description:    req.Description,
		Proposer:       req.Proposer,
		CreatedAt:      now,
		VotingStart:    now,
		VotingEnd:      now + hours*int64(time.Hour),
		Status:         types.ProposalActive,
		QuorumRequired: req.QuorumRequired,
	}
	if err := h.store.CreateProposal(c.Request.Context(), proposal); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("proposal created",
		zap.String("proposal_id", proposal.ID),
		zap.Int64("voting_hours", hours))
	h.pushProposals(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": proposal.ID})
}

// Vote records a ballot against an active proposal.
func (h *ProposalHandler) Vote(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.store.CastVote(c.Request.Context(), c.Param("id"), store.Vote{
		Voter:  req.Voter,
		Type:   req.VoteType,
		Power:  req.VotingPower,
		Reason: req.Reason,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("vote cast",
		zap.String("proposal_id", proposal.ID),
		zap.String("voter", req.Voter),
		zap.String("vote_type", string(req.VoteType)),
		zap.String("total_votes", proposal.TotalVotes.String()))
	h.pushProposals(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"id": proposal.ID, "total_votes": proposal.TotalVotes})
}
