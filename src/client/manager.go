package client

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"market-stream/src/logger"
	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// SocketManager - resilient client for the gateway WebSocket
//
// The manager owns the connection lifecycle: dial, authenticate, heartbeat,
// and reconnect with a fixed interval. The desired subscription set lives
// here, not on the server, so it survives reconnects: after every successful
// authentication the full set is re-sent once.
// -----------------------------------------------------------------------------

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusAuthenticated
)

const (
	DefaultReconnectInterval = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultEventBuffer       = 256
)

var (
	ErrTokenRequired = errors.New("client: token is required")
	ErrNotConnected  = errors.New("client: not connected")
	ErrNotAuthorized = errors.New("client: not authenticated")
)

// -----------------------------------------------------------------------------

type Config struct {
	URL               string
	Token             string
	AutoReconnect     bool
	ReconnectInterval time.Duration
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	EventBuffer       int
}

func (c *Config) applyDefaults() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
}

// -----------------------------------------------------------------------------

// Order is a client-side order request.
type Order struct {
	Symbol    string
	Side      string
	OrderType string
	Quantity  float64
	Price     float64
}

// -----------------------------------------------------------------------------

type SocketManager struct {
	cfg    Config
	logger *logger.Logger
	events chan Event

	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	desired        map[string]struct{}
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	userClosed     bool
	gen            int // invalidates stale read loops
}

// -----------------------------------------------------------------------------

func NewSocketManager(cfg Config, log *logger.Logger) *SocketManager {
	cfg.applyDefaults()
	return &SocketManager{
		cfg:     cfg,
		logger:  log,
		events:  make(chan Event, cfg.EventBuffer),
		desired: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Events returns the channel the manager publishes on. The channel is never
// closed; events are dropped (with a warning) if the consumer falls behind.
func (m *SocketManager) Events() <-chan Event {
	return m.events
}

func (m *SocketManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// -----------------------------------------------------------------------------

// Connect dials the gateway and sends the auth message. It fails fast when
// no token is configured. A dial failure schedules a retry when
// AutoReconnect is on, and is still returned to the caller.
func (m *SocketManager) Connect() error {
	return m.connect(true)
}

// connect is the shared dial path. Only a user-initiated Connect clears the
// userClosed flag; the reconnect timer must never resurrect a manager the
// user shut down.
func (m *SocketManager) connect(userInitiated bool) error {
	if m.cfg.Token == "" {
		return ErrTokenRequired
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	if userInitiated {
		m.userClosed = false
	} else if m.userClosed {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.status = StatusConnecting
	m.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.DialTimeout}
	conn, _, err := dialer.Dial(m.cfg.URL, nil)
	if err != nil {
		m.mu.Lock()
		m.status = StatusDisconnected
		m.mu.Unlock()
		m.logger.Warning("Dial %s failed: %v", m.cfg.URL, err)
		m.scheduleReconnect()
		return err
	}

	m.mu.Lock()
	if !userInitiated && m.userClosed {
		// Disconnect won the race while the dial was in flight
		m.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.status = StatusConnected
	m.mu.Unlock()

	m.emit(Event{Kind: EventConnected, Timestamp: time.Now().UnixMilli()})

	if err := m.write(models.MClientMessage{Type: models.MsgAuth, Token: m.cfg.Token}); err != nil {
		m.logger.Warning("Failed to send auth: %v", err)
	}

	go m.readLoop(conn, gen)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection and cancels any pending reconnect. The
// desired subscription set is cleared: a later Connect starts fresh.
func (m *SocketManager) Disconnect() {
	m.mu.Lock()
	m.userClosed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopHeartbeatLocked()
	conn := m.conn
	m.conn = nil
	m.gen++
	m.status = StatusDisconnected
	m.desired = make(map[string]struct{})
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		m.emit(Event{Kind: EventDisconnected, Timestamp: time.Now().UnixMilli()})
	}
}

// -----------------------------------------------------------------------------
// Subscriptions and orders
// -----------------------------------------------------------------------------

// Subscribe adds symbols to the desired set and, when authenticated, sends
// the subscription immediately. Offline additions are sent on the next
// successful authentication.
func (m *SocketManager) Subscribe(symbols ...string) error {
	normalized := normalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil
	}

	m.mu.Lock()
	for _, symbol := range normalized {
		m.desired[symbol] = struct{}{}
	}
	live := m.status == StatusAuthenticated && m.conn != nil
	m.mu.Unlock()

	if !live {
		return nil
	}
	return m.write(models.MClientMessage{Type: models.MsgSubscribe, Symbols: normalized})
}

// -----------------------------------------------------------------------------

func (m *SocketManager) Unsubscribe(symbols ...string) error {
	normalized := normalizeSymbols(symbols)
	if len(normalized) == 0 {
		return nil
	}

	m.mu.Lock()
	for _, symbol := range normalized {
		delete(m.desired, symbol)
	}
	live := m.status == StatusAuthenticated && m.conn != nil
	m.mu.Unlock()

	if !live {
		return nil
	}
	return m.write(models.MClientMessage{Type: models.MsgUnsubscribe, Symbols: normalized})
}

// -----------------------------------------------------------------------------

func (m *SocketManager) PlaceOrder(order Order) error {
	m.mu.Lock()
	live := m.status == StatusAuthenticated && m.conn != nil
	m.mu.Unlock()
	if !live {
		return ErrNotAuthorized
	}

	return m.write(models.MClientMessage{
		Type:      models.MsgPlaceOrder,
		Symbol:    strings.ToUpper(strings.TrimSpace(order.Symbol)),
		Side:      order.Side,
		OrderType: order.OrderType,
		Quantity:  order.Quantity,
		Price:     order.Price,
	})
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// write serializes one message to the live connection. The lock also
// serializes concurrent writers (gorilla connections allow one writer). The
// deadline bounds how long a stalled peer can hold the lock hostage.
func (m *SocketManager) write(msg models.MClientMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ErrNotConnected
	}
	m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return m.conn.WriteJSON(msg)
}

// -----------------------------------------------------------------------------

func (m *SocketManager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, gen, err)
			return
		}

		var msg models.MServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			m.logger.Warning("Undecodable server message: %v", err)
			continue
		}
		m.handleServerMessage(msg, gen)
	}
}

// -----------------------------------------------------------------------------

func (m *SocketManager) handleServerMessage(msg models.MServerMessage, gen int) {
	switch msg.Type {
	case models.MsgConnectionEstablished:
		m.logger.Debug("Session %s established (max subscriptions %d)", msg.SessionID, msg.MaxSubscriptions)

	case models.MsgAuthSuccess:
		m.onAuthSuccess(msg, gen)

	case models.MsgSubscribed:
		m.emit(Event{Kind: EventSubscribed, Symbols: msg.Symbols, Timestamp: time.Now().UnixMilli()})

	case models.MsgUnsubscribed:
		m.emit(Event{Kind: EventUnsubscribed, Symbols: msg.Symbols, Timestamp: time.Now().UnixMilli()})

	case models.MsgPriceUpdate:
		m.emit(Event{
			Kind: EventPriceUpdate,
			Tick: &models.MPriceTick{
				Symbol:        msg.Symbol,
				Price:         msg.Price,
				Change:        msg.Change,
				ChangePercent: msg.ChangePercent,
				Volume:        msg.Volume,
				Bid:           msg.Bid,
				Ask:           msg.Ask,
				Timestamp:     msg.Timestamp,
			},
			Timestamp: msg.Timestamp,
		})

	case models.MsgOrderExecuted:
		m.emit(Event{
			Kind: EventOrderExecuted,
			Execution: &models.MOrderExecution{
				OrderID:   msg.OrderID,
				Symbol:    msg.Symbol,
				Status:    msg.Status,
				Quantity:  msg.Quantity,
				Price:     msg.Price,
				Timestamp: msg.Timestamp,
			},
			Timestamp: msg.Timestamp,
		})

	case models.MsgMarketAlert:
		m.emit(Event{
			Kind: EventMarketAlert,
			Alert: &models.MMarketAlert{
				Symbol:    msg.Symbol,
				Severity:  msg.Severity,
				Title:     msg.Title,
				Message:   msg.Message,
				Timestamp: msg.Timestamp,
			},
			Timestamp: msg.Timestamp,
		})

	case models.MsgPong:
		m.emit(Event{Kind: EventPong, Timestamp: msg.Timestamp})

	case models.MsgError:
		m.emit(Event{Kind: EventError, Code: msg.Code, Message: msg.Message, Timestamp: time.Now().UnixMilli()})

	default:
		m.logger.Debug("Ignoring unknown server message type %q", msg.Type)
	}
}

// -----------------------------------------------------------------------------

// onAuthSuccess flips the status, starts the heartbeat, and replays the
// desired subscription set exactly once for this connection. A stale gen
// means Disconnect or a newer dial superseded this connection while the
// auth_success was in flight; such a message must not resurrect the manager.
func (m *SocketManager) onAuthSuccess(msg models.MServerMessage, gen int) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.status = StatusAuthenticated
	replay := make([]string, 0, len(m.desired))
	for symbol := range m.desired {
		replay = append(replay, symbol)
	}
	m.mu.Unlock()

	sort.Strings(replay)
	m.startHeartbeat()
	m.emit(Event{Kind: EventAuthenticated, UserID: msg.UserID, Timestamp: time.Now().UnixMilli()})

	if len(replay) > 0 {
		if err := m.write(models.MClientMessage{Type: models.MsgSubscribe, Symbols: replay}); err != nil {
			m.logger.Warning("Failed to replay subscriptions: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *SocketManager) handleDisconnect(conn *websocket.Conn, gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		// A newer connection (or an explicit Disconnect) superseded this
		// reader; nothing to report.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.status = StatusDisconnected
	m.stopHeartbeatLocked()
	closed := m.userClosed
	m.mu.Unlock()

	conn.Close()
	m.emit(Event{Kind: EventDisconnected, Err: cause, Timestamp: time.Now().UnixMilli()})

	if !closed {
		m.scheduleReconnect()
	}
}

// -----------------------------------------------------------------------------

// scheduleReconnect arms one retry after the fixed interval. Connect itself
// re-arms on dial failure, so retries continue until Disconnect.
func (m *SocketManager) scheduleReconnect() {
	if !m.cfg.AutoReconnect {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userClosed || m.reconnectTimer != nil {
		return
	}

	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		closed := m.userClosed
		m.mu.Unlock()
		if closed {
			return
		}
		if err := m.connect(false); err != nil {
			m.logger.Debug("Reconnect attempt failed: %v", err)
		}
	})
}

// -----------------------------------------------------------------------------

func (m *SocketManager) startHeartbeat() {
	m.mu.Lock()
	if m.heartbeatStop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.heartbeatStop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := m.write(models.MClientMessage{Type: models.MsgPing}); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopHeartbeatLocked must be called with mu held.
func (m *SocketManager) stopHeartbeatLocked() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

// -----------------------------------------------------------------------------

// emit never blocks the read loop; a full consumer drops the event.
func (m *SocketManager) emit(event Event) {
	select {
	case m.events <- event:
	default:
		m.logger.Warning("Event buffer full, dropping %s event", event.Kind)
	}
}

// -----------------------------------------------------------------------------

func normalizeSymbols(symbols []string) []string {
	result := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		normalized := strings.ToUpper(strings.TrimSpace(symbol))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
