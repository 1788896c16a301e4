package client

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	dialAttempts = 3
	dialBackoff  = 500 * time.Millisecond

	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Channel is the duplex push connection used for server-initiated update
// notifications. Implementations are safe for concurrent use.
type Channel interface {
	// Emit sends a client event (e.g. "subscribe_policies") to the server.
	Emit(event string, payload any)
	// Subscribe registers fn for a named server event and returns the
	// function that removes exactly this registration.
	Subscribe(event string, fn func(json.RawMessage)) func()
	// Connected reports whether a live connection is currently held.
	Connected() bool
	// Close tears the connection down.
	Close()
}

// noopChannel stands in when the real channel cannot be initialized.
// Every operation is a safe no-op, so callers never null-check.
type noopChannel struct{}

func (noopChannel) Emit(string, any) {}

func (noopChannel) Subscribe(string, func(json.RawMessage)) func() { return func() {} }

func (noopChannel) Connected() bool { return false }

func (noopChannel) Close() {}

// envelope is the wire frame in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// wsChannel is the live websocket-backed channel.
type wsChannel struct {
	url    string
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	listeners map[string]map[int]func(json.RawMessage)
	emitted   map[string]json.RawMessage // subscription events to replay after reconnect
	nextID    int
	closed    bool

	connected atomic.Bool
}

// dialChannel establishes the push channel with a bounded retry policy.
func dialChannel(url string, logger *zap.Logger) (*wsChannel, error) {
	conn, err := dialWithRetry(url)
	if err != nil {
		return nil, err
	}

	ch := &wsChannel{
		url:       url,
		logger:    logger,
		conn:      conn,
		listeners: make(map[string]map[int]func(json.RawMessage)),
		emitted:   make(map[string]json.RawMessage),
	}
	ch.connected.Store(true)
	go ch.readLoop(conn)
	return ch, nil
}

func dialWithRetry(url string) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(dialBackoff)
		}
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (ch *wsChannel) Emit(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			ch.logger.Warn("emit payload not serializable", zap.String("event", event), zap.Error(err))
			return
		}
		data = b
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.emitted[event] = data
	ch.writeLocked(envelope{Event: event, Data: data})
}

func (ch *wsChannel) writeLocked(env envelope) {
	if ch.conn == nil {
		return
	}
	ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ch.conn.WriteJSON(env); err != nil {
		ch.logger.Warn("push channel write failed", zap.String("event", env.Event), zap.Error(err))
	}
}

func (ch *wsChannel) Subscribe(event string, fn func(json.RawMessage)) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.listeners[event] == nil {
		ch.listeners[event] = make(map[int]func(json.RawMessage))
	}
	id := ch.nextID
	ch.nextID++
	ch.listeners[event][id] = fn

	return func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		delete(ch.listeners[event], id)
	}
}

func (ch *wsChannel) Connected() bool {
	return ch.connected.Load()
}

func (ch *wsChannel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	ch.connected.Store(false)
	if ch.conn != nil {
		ch.conn.Close()
		ch.conn = nil
	}
}

// readLoop dispatches server events to registered listeners. On a read
// failure it attempts one bounded reconnect cycle, replaying the
// subscription events emitted so far; if that fails the channel stays
// disconnected for the rest of its life.
func (ch *wsChannel) readLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			ch.connected.Store(false)
			if ch.reconnect() {
				return
			}
			ch.logger.Warn("push channel closed", zap.Error(err))
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		ch.dispatch(env)
	}
}

func (ch *wsChannel) dispatch(env envelope) {
	ch.mu.Lock()
	fns := make([]func(json.RawMessage), 0, len(ch.listeners[env.Event]))
	for _, fn := range ch.listeners[env.Event] {
		fns = append(fns, fn)
	}
	ch.mu.Unlock()

	for _, fn := range fns {
		fn(env.Data)
	}
}

// reconnect re-dials and replays subscriptions. Returns true when a new
// read loop has taken over.
func (ch *wsChannel) reconnect() bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return false
	}
	ch.mu.Unlock()

	conn, err := dialWithRetry(ch.url)
	if err != nil {
		return false
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		conn.Close()
		return false
	}
	if ch.conn != nil {
		ch.conn.Close()
	}
	ch.conn = conn
	ch.connected.Store(true)
	for event, data := range ch.emitted {
		ch.writeLocked(envelope{Event: event, Data: data})
	}
	ch.mu.Unlock()

	go ch.readLoop(conn)
	return true
}
