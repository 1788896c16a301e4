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

// ComplaintHandler serves the /complaints endpoints.
type ComplaintHandler struct {
	pusher
}

// NewComplaintHandler creates a complaint handler.
func NewComplaintHandler(s store.Store, hub *realtime.Hub, engine *analytics.Engine, logger *zap.Logger) *ComplaintHandler {
	return &ComplaintHandler{pusher{
		store:     s,
		hub:       hub,
		analytics: engine,
		logger:    logger.Named("complaint_handler"),
	}}
}

// submitComplaintRequest is the POST /complaints body.
type submitComplaintRequest struct {
	Title       string                  `json:"title" binding:"required"`
	Description string                  `json:"description"`
	Category    string                  `json:"category"`
	Priority    types.ComplaintPriority `json:"priority"`
	PolicyID    string                  `json:"policy_id"`
	District    string                  `json:"district"`
	Location    string                  `json:"location"`
	Media       []string                `json:"media"`
	CitizenID   string                  `json:"citizen_id" binding:"required"`
}

// List returns all complaints.
func (h *ComplaintHandler) List(c *gin.Context) {
	complaints, err := h.store.ListComplaints(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaints)
}

// Get returns one complaint.
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.store.GetComplaint(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Submit files a new complaint and returns its ID.
func (h *ComplaintHandler) Submit(c *gin.Context) {
	var req submitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A complaint may reference a policy, but only one that exists.
	if req.PolicyID != "" {
		if _, err := h.store.GetPolicy(c.Request.Context(), req.PolicyID); err != nil {
			abortWithError(c, err)
			return
		}
	}

	complaint := &types.Complaint{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		PolicyID:    req.PolicyID,
		District:    req.District,
		Location:    req.Location,
		Media:       req.Media,
		CitizenID:   req.CitizenID,
	}
	if err := h.store.CreateComplaint(c.Request.Context(), complaint); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("complaint submitted",
		zap.String("complaint_id", complaint.ID),
		zap.String("priority", string(complaint.Priority)))
	h.pushComplaints(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": complaint.ID})
}
