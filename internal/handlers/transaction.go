package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
	"github.com/civicledger/civicledger/internal/realtime"
	"github.com/civicledger/civicledger/internal/store"
	"github.com/civicledger/civicledger/pkg/types"
)

const defaultTransactionLimit = 20

// TransactionHandler serves the /transactions endpoints.
type TransactionHandler struct {
	pusher
}

// NewTransactionHandler creates a transaction handler.
func NewTransactionHandler(s store.Store, hub *realtime.Hub, engine *analytics.Engine, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{pusher{
		store:     s,
		hub:       hub,
		analytics: engine,
		logger:    logger.Named("transaction_handler"),
	}}
}

// recordTransactionRequest is the POST /transactions body.
type recordTransactionRequest struct {
	PolicyID    string                `json:"policy_id" binding:"required"`
	Type        types.TransactionType `json:"transaction_type" binding:"required"`
	Amount      types.BigInt          `json:"amount"`
	FromAddress string                `json:"from_address"`
	ToAddress   string                `json:"to_address"`
	Metadata    []types.MetadataEntry `json:"metadata"`
}

// ListRecent returns the most recent transactions, newest first.
func (h *TransactionHandler) ListRecent(c *gin.Context) {
	limit := defaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	txs, err := h.store.ListTransactions(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// ListForPolicy returns the transactions recorded against one policy.
func (h *TransactionHandler) ListForPolicy(c *gin.Context) {
	policyID := c.Param("id")
	if _, err := h.store.GetPolicy(c.Request.Context(), policyID); err != nil {
		abortWithError(c, err)
		return
	}

	txs, err := h.store.TransactionsForPolicy(c.Request.Context(), policyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// Record registers a transaction and returns its ID.
func (h *TransactionHandler) Record(c *gin.Context) {
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	if _, err := h.store.GetPolicy(c.Request.Context(), req.PolicyID); err != nil {
		abortWithError(c, err)
		return
	}

	tx := &types.FundTransaction{
		PolicyID:    req.PolicyID,
		Type:        req.Type,
		Amount:      req.Amount,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Metadata:    req.Metadata,
	}
	if err := h.store.RecordTransaction(c.Request.Context(), tx); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("policy_id", tx.PolicyID),
		zap.String("amount", tx.Amount.String()))
	h.pushTransactions(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": tx.ID})
}
