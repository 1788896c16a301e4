package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/civicledger/civicledger/pkg/types"
)

// TransactionService wraps the /transactions endpoints.
type TransactionService struct {
	c *Client
}

// RecordTransactionRequest is the body for recording a fund movement.
type RecordTransactionRequest struct {
	PolicyID    string                `json:"policy_id"`
	Type        types.TransactionType `json:"transaction_type"`
	Amount      types.BigInt          `json:"amount"`
	FromAddress string                `json:"from_address"`
	ToAddress   string                `json:"to_address"`
	Metadata    []types.MetadataEntry `json:"metadata,omitempty"`
}

// GetRecent lists the most recent transactions, newest first. Fail-soft.
func (s *TransactionService) GetRecent(ctx context.Context, limit int) []types.FundTransaction {
	path := "/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var txs []types.FundTransaction
	if !s.c.safeGet(ctx, path, &txs) {
		return []types.FundTransaction{}
	}
	return txs
}

// GetByPolicy lists the transactions recorded against a policy. Fail-soft.
func (s *TransactionService) GetByPolicy(ctx context.Context, policyID string) []types.FundTransaction {
	var txs []types.FundTransaction
	if !s.c.safeGet(ctx, "/transactions/policy/"+policyID, &txs) {
		return []types.FundTransaction{}
	}
	return txs
}

// Record registers a transaction and returns its ID. Fail-hard.
func (s *TransactionService) Record(ctx context.Context, req RecordTransactionRequest) (string, error) {
	var out idResponse
	if err := s.c.do(ctx, http.MethodPost, "/transactions", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SubscribeToUpdates registers cb for pushed transaction collections and
// returns the unsubscribe function.
func (s *TransactionService) SubscribeToUpdates(cb func([]types.FundTransaction)) func() {
	ch := s.c.getChannel()
	ch.Emit("subscribe_transactions", nil)
	return ch.Subscribe("transactions_update", func(data json.RawMessage) {
		var txs []types.FundTransaction
		if err := json.Unmarshal(data, &txs); err != nil {
			s.c.logger.Warn("malformed transactions update", zap.Error(err))
			return
		}
		cb(txs)
	})
}
