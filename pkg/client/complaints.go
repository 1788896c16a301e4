package client

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicledger/civicledger/pkg/types"
)

// ComplaintService wraps the /complaints endpoints.
type ComplaintService struct {
	c *Client
}

// SubmitComplaintRequest is the body for filing a complaint.
type SubmitComplaintRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Category    string                  `json:"category"`
	Priority    types.ComplaintPriority `json:"priority"`
	PolicyID    string                  `json:"policy_id,omitempty"`
	District    string                  `json:"district"`
	Location    string                  `json:"location"`
	Media       []string                `json:"media,omitempty"`
	CitizenID   string                  `json:"citizen_id"`
}

// GetAll lists all complaints. Fail-soft.
func (s *ComplaintService) GetAll(ctx context.Context) []types.Complaint {
	var complaints []types.Complaint
	if !s.c.safeGet(ctx, "/complaints", &complaints) {
		return []types.Complaint{}
	}
	return complaints
}

// Get fetches one complaint. Fail-soft: nil when unavailable.
func (s *ComplaintService) Get(ctx context.Context, id string) *types.Complaint {
	var complaint types.Complaint
	if !s.c.safeGet(ctx, "/complaints/"+id, &complaint) {
		return nil
	}
	return &complaint
}

// Submit files a new complaint and returns its ID. Fail-hard.
func (s *ComplaintService) Submit(ctx context.Context, req SubmitComplaintRequest) (string, error) {
	var out idResponse
	if err := s.c.do(ctx, http.MethodPost, "/complaints", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SubscribeToUpdates registers cb for pushed complaint collections and
// returns the unsubscribe function.
func (s *ComplaintService) SubscribeToUpdates(cb func([]types.Complaint)) func() {
	ch := s.c.getChannel()
	ch.Emit("subscribe_complaints", nil)
	return ch.Subscribe("complaints_update", func(data json.RawMessage) {
		var complaints []types.Complaint
		if err := json.Unmarshal(data, &complaints); err != nil {
			s.c.logger.Warn("malformed complaints update", zap.Error(err))
			return
		}
		cb(complaints)
	})
}
