// Package analytics computes the read-only aggregate snapshot served at
// /analytics/overview.
package analytics

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/store"
	"github.com/civicledger/civicledger/pkg/types"
)

const overviewKey = "overview"

// Engine aggregates store contents into an AnalyticsOverview, caching the
// result so dashboard polling does not hammer the store.
type Engine struct {
	store  store.Store
	logger *zap.Logger
	cache  *gocache.Cache
	cron   *cron.Cron
}

// NewEngine creates an engine whose cached overview expires after ttl.
func NewEngine(s store.Store, ttl time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger.Named("analytics"),
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// StartScheduler recomputes the overview on the given cron schedule so the
// cache is warm when dashboards ask.
func (e *Engine) StartScheduler(schedule string) error {
	e.cron = cron.New()
	_, err := e.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := e.refresh(ctx); err != nil {
			e.logger.Warn("scheduled overview refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	e.cron.Start()
	return nil
}

// StopScheduler stops the refresh schedule.
func (e *Engine) StopScheduler() {
	if e.cron != nil {
		e.cron.Stop()
	}
}

// Overview returns the cached snapshot, recomputing it on a miss.
func (e *Engine) Overview(ctx context.Context) (types.AnalyticsOverview, error) {
	if cached, ok := e.cache.Get(overviewKey); ok {
		return cached.(types.AnalyticsOverview), nil
	}
	return e.refresh(ctx)
}

// refresh recomputes the snapshot and stores it in the cache.
func (e *Engine) refresh(ctx context.Context) (types.AnalyticsOverview, error) {
	policies, err := e.store.ListPolicies(ctx)
	if err != nil {
		return types.AnalyticsOverview{}, err
	}
	complaints, err := e.store.ListComplaints(ctx)
	if err != nil {
		return types.AnalyticsOverview{}, err
	}
	proposals, err := e.store.ListProposals(ctx)
	if err != nil {
		return types.AnalyticsOverview{}, err
	}
	txs, err := e.store.ListTransactions(ctx, 0)
	if err != nil {
		return types.AnalyticsOverview{}, err
	}

	overview := types.AnalyticsOverview{
		TotalPolicies:     uint64(len(policies)),
		TotalComplaints:   uint64(len(complaints)),
		TotalProposals:    uint64(len(proposals)),
		TotalTransactions: uint64(len(txs)),
		GeneratedAt:       time.Now().UnixNano(),
	}

	allocated := types.NewBigInt(0)
	released := types.NewBigInt(0)
	for i := range policies {
		if policies[i].Status == types.PolicyActive {
			overview.ActivePolicies++
		}
		allocated = allocated.Add(policies[i].FundAllocation)
		released = released.Add(policies[i].FundReleased)
	}
	overview.TotalFundsAllocated = allocated
	overview.TotalFundsReleased = released

	for i := range complaints {
		if complaints[i].Status == types.ComplaintResolved {
			overview.ResolvedComplaints++
		}
	}
	if overview.TotalComplaints > 0 {
		overview.ResolutionRate = float64(overview.ResolvedComplaints) / float64(overview.TotalComplaints)
	}

	for i := range proposals {
		if proposals[i].Status == types.ProposalActive {
			overview.ActiveProposals++
		}
	}

	e.cache.Set(overviewKey, overview, gocache.DefaultExpiration)
	return overview, nil
}

// Invalidate drops the cached snapshot; called after writes so the next
// read reflects them.
func (e *Engine) Invalidate() {
	e.cache.Delete(overviewKey)
}
