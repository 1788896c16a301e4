package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicledger/civicledger/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newChannelServer runs a websocket endpoint at /ws that records client
// emits and pushes whatever is sent on the returned channel.
func newChannelServer(t *testing.T, emits chan<- envelope) (*httptest.Server, chan<- envelope) {
	t.Helper()
	push := make(chan envelope, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var env envelope
				if err := conn.ReadJSON(&env); err != nil {
					return
				}
				if emits != nil {
					emits <- env
				}
			}
		}()
		for {
			select {
			case env := <-push:
				if err := conn.WriteJSON(env); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, push
}

func TestChannelSubscribeDispatch(t *testing.T) {
	emits := make(chan envelope, 16)
	srv, push := newChannelServer(t, emits)

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	defer c.Close()

	var got atomic.Int32
	var lastLen atomic.Int32
	unsubscribe := c.Policies.SubscribeToUpdates(func(policies []types.Policy) {
		got.Add(1)
		lastLen.Store(int32(len(policies)))
	})

	// The subscription intent reaches the server.
	select {
	case env := <-emits:
		assert.Equal(t, "subscribe_policies", env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received subscribe_policies")
	}
	assert.True(t, c.ChannelConnected())

	data, err := json.Marshal([]types.Policy{{ID: "p-1"}, {ID: "p-2"}})
	require.NoError(t, err)
	push <- envelope{Event: "policies_update", Data: data}

	require.Eventually(t, func() bool { return got.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), lastLen.Load())

	// Events for other names never reach this listener.
	push <- envelope{Event: "complaints_update", Data: []byte(`[]`)}

	// After unsubscribing, further pushes are not delivered.
	unsubscribe()
	push <- envelope{Event: "policies_update", Data: data}
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), got.Load())
}

func TestChannelMalformedUpdateIgnored(t *testing.T) {
	srv, push := newChannelServer(t, nil)

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	defer c.Close()

	var got atomic.Int32
	defer c.Proposals.SubscribeToUpdates(func([]types.Proposal) { got.Add(1) })()

	push <- envelope{Event: "proposals_update", Data: []byte(`{"not":"a list"}`)}
	data, _ := json.Marshal([]types.Proposal{{ID: "pr-1"}})
	push <- envelope{Event: "proposals_update", Data: data}

	require.Eventually(t, func() bool { return got.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCloseBeforeSubscribe(t *testing.T) {
	srv, push := newChannelServer(t, nil)

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)

	// Closing first claims the channel slot, so a later subscription must
	// not dial the backend behind a closed client.
	c.Close()

	unsubscribe := c.Policies.SubscribeToUpdates(func([]types.Policy) {
		t.Error("callback must never fire after Close")
	})
	defer unsubscribe()
	assert.False(t, c.ChannelConnected())

	push <- envelope{Event: "policies_update", Data: []byte(`[]`)}
	time.Sleep(200 * time.Millisecond)
}

func TestChannelFallsBackToNoop(t *testing.T) {
	// Nothing listens on this port, so dialing exhausts the bounded
	// retries and the no-op channel takes over.
	c, err := New("http://127.0.0.1:1/api")
	require.NoError(t, err)
	defer c.Close()

	unsubscribe := c.Policies.SubscribeToUpdates(func([]types.Policy) {
		t.Error("callback must never fire on a no-op channel")
	})
	assert.NotNil(t, unsubscribe)
	unsubscribe()

	assert.False(t, c.ChannelConnected())

	// Emit on the no-op channel is safe.
	c.getChannel().Emit("subscribe_policies", nil)
}
