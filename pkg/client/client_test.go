package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicledger/civicledger/pkg/types"
)

// newStubBackend serves canned responses keyed by method+path.
func newStubBackend(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// deadBackend returns a base URL whose server is already closed, simulating
// an unreachable backend.
func deadBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url + "/api"
}

func TestReadsFailSoft(t *testing.T) {
	ctx := context.Background()

	t.Run("UnreachableBackend", func(t *testing.T) {
		c, err := New(deadBackend(t))
		require.NoError(t, err)

		assert.Empty(t, c.Policies.GetAll(ctx))
		assert.Empty(t, c.Complaints.GetAll(ctx))
		assert.Empty(t, c.Proposals.GetAll(ctx))
		assert.Empty(t, c.Transactions.GetRecent(ctx, 10))
		assert.Nil(t, c.Policies.Get(ctx, "p-1"))

		overview := c.Analytics.GetOverview(ctx)
		assert.Equal(t, types.AnalyticsOverview{}, overview)
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/api/policies": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)

		assert.Empty(t, c.Policies.GetAll(ctx))
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/api/policies": func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)

		assert.Empty(t, c.Policies.GetAll(ctx))
	})
}

func TestReadsDecode(t *testing.T) {
	ctx := context.Background()
	srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
		"/api/policies": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{
				{
					"id":              "p-1",
					"title":           "Road Works",
					"fund_allocation": "500000000000",
					"fund_released":   "0",
					// Tagged-union status shape from the canister-style
					// backend.
					"status":     map[string]any{"Active": nil},
					"created_at": 1700000000000000000,
					"updated_at": 1700000000000000000,
				},
			})
		},
	})
	c, err := New(srv.URL + "/api")
	require.NoError(t, err)

	policies := c.Policies.GetAll(ctx)
	require.Len(t, policies, 1)
	assert.Equal(t, "p-1", policies[0].ID)
	assert.Equal(t, types.PolicyActive, policies[0].Status)
	assert.Equal(t, "500000000000", policies[0].FundAllocation.String())
}

func TestWritesFailHard(t *testing.T) {
	ctx := context.Background()

	t.Run("UnreachableBackend", func(t *testing.T) {
		c, err := New(deadBackend(t))
		require.NoError(t, err)

		assert.Error(t, c.Policies.Activate(ctx, "p-1"))

		_, err = c.Policies.Create(ctx, CreatePolicyRequest{Title: "Test"})
		assert.Error(t, err)

		err = c.Proposals.CastVote(ctx, "pr-1", CastVoteRequest{
			Voter:       "voter-1",
			VoteType:    types.VoteYes,
			VotingPower: types.NewBigInt(1),
		})
		assert.Error(t, err)
	})

	t.Run("ServerRejectionCarriesMessage", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/api/policies/p-1/activate": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "policy p-1 is Completed"})
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)

		err = c.Policies.Activate(ctx, "p-1")
		require.Error(t, err)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusConflict, reqErr.StatusCode)
		assert.Equal(t, "policy p-1 is Completed", reqErr.Message)
	})

	t.Run("CreateReturnsID", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/api/policies": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				// Big integers must cross the wire as decimal strings.
				assert.Equal(t, "500000000000", body["fund_allocation"])
				writeJSON(w, http.StatusCreated, map[string]string{"id": "p-99"})
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)

		id, err := c.Policies.Create(ctx, CreatePolicyRequest{
			Title:          "Test",
			FundAllocation: types.MustBigInt("500000000000"),
		})
		require.NoError(t, err)
		assert.Equal(t, "p-99", id)
	})
}

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("Healthy", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/health": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)
		assert.True(t, c.CheckHealth(ctx))
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		srv := newStubBackend(t, map[string]func(http.ResponseWriter, *http.Request){
			"/health": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		})
		c, err := New(srv.URL + "/api")
		require.NoError(t, err)
		assert.False(t, c.CheckHealth(ctx))
	})

	t.Run("UnreachableNeverPanics", func(t *testing.T) {
		c, err := New(deadBackend(t))
		require.NoError(t, err)
		assert.False(t, c.CheckHealth(ctx))
	})
}

func TestDefaultBaseURL(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "http://localhost:3001/health", c.healthURL)
	assert.Equal(t, "ws://localhost:3001/ws", c.wsURL)
}
