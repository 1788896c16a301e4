package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
	"github.com/civicledger/civicledger/internal/realtime"
	"github.com/civicledger/civicledger/internal/store"
	"github.com/civicledger/civicledger/pkg/types"
)

// PolicyHandler serves the /policies endpoints.
type PolicyHandler struct {
	pusher
}

// NewPolicyHandler creates a policy handler.
func NewPolicyHandler(s store.Store, hub *realtime.Hub, engine *analytics.Engine, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{pusher{
		store:     s,
		hub:       hub,
		analytics: engine,
		logger:    logger.Named("policy_handler"),
	}}
}

// createPolicyRequest is the POST /policies body. The allocation arrives as
// a decimal string.
type createPolicyRequest struct {
	Title               string       `json:"title" binding:"required"`
	Description         string       `json:"description"`
	Category            string       `json:"category"`
	District            string       `json:"district"`
	FundAllocation      types.BigInt `json:"fund_allocation"`
	EligibilityCriteria []string     `json:"eligibility_criteria"`
	ExecutionConditions []string     `json:"execution_conditions"`
	SmartContractCode   string       `json:"smart_contract_code"`
}

// releaseFundsRequest is the POST /policies/:id/release-funds body.
type releaseFundsRequest struct {
	Amount    types.BigInt `json:"amount"`
	ToAddress string       `json:"to_address" binding:"required"`
}

// List returns all policies.
func (h *PolicyHandler) List(c *gin.Context) {
	policies, err := h.store.ListPolicies(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policies)
}

// Get returns one policy.
func (h *PolicyHandler) Get(c *gin.Context) {
	policy, err := h.store.GetPolicy(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// Create registers a new draft policy and returns its ID.
func (h *PolicyHandler) Create(c *gin.Context) {
	var req createPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FundAllocation.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fund_allocation must be non-negative"})
		return
	}

	policy := &types.Policy{
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		District:            req.District,
		FundAllocation:      req.FundAllocation,
		EligibilityCriteria: req.EligibilityCriteria,
		ExecutionConditions: req.ExecutionConditions,
		SmartContractCode:   req.SmartContractCode,
	}
	if err := h.store.CreatePolicy(c.Request.Context(), policy); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("policy created",
		zap.String("policy_id", policy.ID),
		zap.String("title", policy.Title),
		zap.String("fund_allocation", policy.FundAllocation.String()))
	h.pushPolicies(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": policy.ID})
}

// Activate transitions a draft policy to active.
func (h *PolicyHandler) Activate(c *gin.Context) {
	policy, err := h.store.ActivatePolicy(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("policy activated", zap.String("policy_id", policy.ID))
	h.pushPolicies(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"id": policy.ID, "status": policy.Status})
}

// ReleaseFunds releases part of the allocation and returns the transaction
// ID.
func (h *PolicyHandler) ReleaseFunds(c *gin.Context) {
	var req releaseFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.store.ReleaseFunds(c.Request.Context(), c.Param("id"), req.Amount, req.ToAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("funds released",
		zap.String("policy_id", tx.PolicyID),
		zap.String("transaction_id", tx.ID),
		zap.String("amount", tx.Amount.String()))
	h.pushPolicies(c.Request.Context())
	h.pushTransactions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"transaction_id": tx.ID})
}
