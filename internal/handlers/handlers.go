// Package handlers implements the REST surface under /api plus the
// liveness probe. Write handlers enforce the entity lifecycles, return the
// created or mutated resource's ID, and push the full updated collection
// over the realtime hub.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
	"github.com/civicledger/civicledger/internal/realtime"
	"github.com/civicledger/civicledger/internal/store"
)

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrVotingClosed):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidVote),
		errors.Is(err, store.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// pusher shares the post-write fanout between entity handlers.
type pusher struct {
	store     store.Store
	hub       *realtime.Hub
	analytics *analytics.Engine
	logger    *zap.Logger
}

// pushPolicies publishes the full policy collection and invalidates the
// analytics cache.
func (p *pusher) pushPolicies(ctx context.Context) {
	p.analytics.Invalidate()
	policies, err := p.store.ListPolicies(ctx)
	if err != nil {
		p.logger.Warn("failed to load policies for push", zap.Error(err))
		return
	}
	p.hub.Publish(realtime.TopicPolicies, policies)
}

func (p *pusher) pushComplaints(ctx context.Context) {
	p.analytics.Invalidate()
	complaints, err := p.store.ListComplaints(ctx)
	if err != nil {
		p.logger.Warn("failed to load complaints for push", zap.Error(err))
		return
	}
	p.hub.Publish(realtime.TopicComplaints, complaints)
}

func (p *pusher) pushProposals(ctx context.Context) {
	p.analytics.Invalidate()
	proposals, err := p.store.ListProposals(ctx)
	if err != nil {
		p.logger.Warn("failed to load proposals for push", zap.Error(err))
		return
	}
	p.hub.Publish(realtime.TopicProposals, proposals)
}

func (p *pusher) pushTransactions(ctx context.Context) {
	p.analytics.Invalidate()
	txs, err := p.store.ListTransactions(ctx, 0)
	if err != nil {
		p.logger.Warn("failed to load transactions for push", zap.Error(err))
		return
	}
	p.hub.Publish(realtime.TopicTransactions, txs)
}
