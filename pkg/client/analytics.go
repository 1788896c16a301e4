package client

import (
	"context"

	"github.com/civicledger/civicledger/pkg/types"
)

// AnalyticsService wraps the read-only /analytics endpoints.
type AnalyticsService struct {
	c *Client
}

// GetOverview fetches the aggregate snapshot. Fail-soft: an unreachable
// backend yields a zeroed overview rather than an error.
func (s *AnalyticsService) GetOverview(ctx context.Context) types.AnalyticsOverview {
	var overview types.AnalyticsOverview
	if !s.c.safeGet(ctx, "/analytics/overview", &overview) {
		return types.AnalyticsOverview{}
	}
	return overview
}
