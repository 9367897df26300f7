package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// -----------------------------------------------------------------------------
// Session Structure
//
// One Session per client socket: Unauthenticated -> Authenticated -> Closed.
// All state except the atomics is owned by the readPump goroutine; the
// generator only ever touches a session through Deliver/Drop.
// -----------------------------------------------------------------------------

type Session struct {
	id   string
	srv  *GatewayServer
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	authenticated int32 // atomic; read by the auth timeout timer
	userID        int64

	subs         map[string]struct{} // readPump-owned
	lastActivity int64               // atomic, unix millis

	authTimer *time.Timer
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

func newSession(srv *GatewayServer, conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.New().String(),
		srv:  srv,
		conn: conn,
		// Buffered channel so broadcast never blocks on this session
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		subs:         make(map[string]struct{}),
		lastActivity: time.Now().UnixMilli(),
	}
}

// -----------------------------------------------------------------------------
// registry.Subscriber implementation
// -----------------------------------------------------------------------------

func (s *Session) ID() string {
	return s.id
}

// Deliver queues a payload without blocking. A closing session reports true:
// the tick in flight is simply dropped, not a backpressure signal.
func (s *Session) Deliver(payload []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) Drop() {
	s.Close()
}

// -----------------------------------------------------------------------------

func (s *Session) isAuthenticated() bool {
	return atomic.LoadInt32(&s.authenticated) == 1
}

// -----------------------------------------------------------------------------

// Close tears the session down exactly once: registry cleanup first so no
// further ticks are routed here, then presence/audit. The socket itself is
// closed by writePump after it drains the send queue, so a queued error
// frame still reaches the client ahead of the close frame.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		if s.authTimer != nil {
			s.authTimer.Stop()
		}

		s.srv.Deps.Registry.RemoveSession(s.id)

		if s.isAuthenticated() && s.srv.Deps.Presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			s.srv.Deps.Presence.MarkOffline(ctx, s.userID)
			cancel()
		}

		s.srv.logEvent(s, models.EventDisconnect, "")
		s.srv.removeSession(s)

		s.srv.Logger.Debug("Session %s closed", s.id)
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Acts as the watchdog for the connection
// -----------------------------------------------------------------------------

func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.srv.Logger.Info("Session %s read error: %v", s.id, err)
			}
			return
		}

		atomic.StoreInt64(&s.lastActivity, time.Now().UnixMilli())

		if fatal := s.handleMessage(message); fatal {
			return
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// Sole owner of conn.Close: closing the conn here also unblocks readPump.
// -----------------------------------------------------------------------------

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.srv.Logger.Debug("Session %s write error: %v", s.id, err)
				s.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			// Flush whatever is still queued (the auth-failure error must
			// reach the client before the close frame)
			s.drainSend()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (s *Session) drainSend() {
	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Message dispatch
// -----------------------------------------------------------------------------

// handleMessage routes one client message. The returned flag tells readPump
// to stop the session (fatal protocol situations only).
func (s *Session) handleMessage(raw []byte) bool {
	var msg models.MClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendError(models.ErrCodeError, "Invalid JSON format")
		return false
	}

	switch msg.Type {
	case models.MsgAuth:
		return s.handleAuth(msg)

	case models.MsgSubscribe:
		s.handleSubscribe(msg)

	case models.MsgUnsubscribe:
		s.handleUnsubscribe(msg)

	case models.MsgPlaceOrder:
		s.handlePlaceOrder(msg)

	case models.MsgPing:
		s.handlePing()

	default:
		s.sendError(models.ErrCodeError, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}

	return false
}

// -----------------------------------------------------------------------------

// handleAuth validates the token through the verifier. Failure is fatal to
// this connection: the error message is flushed, then the socket closes.
func (s *Session) handleAuth(msg models.MClientMessage) bool {
	if s.isAuthenticated() {
		s.sendError(models.ErrCodeError, "Already authenticated")
		return false
	}

	if msg.Token == "" {
		s.sendError(models.ErrCodeAuthFailed, "Token required for authentication")
		return false
	}

	userID, err := s.srv.Deps.Verifier.Verify(msg.Token)
	if err != nil {
		s.srv.Logger.Info("Session %s authentication failed", s.id)
		s.sendError(models.ErrCodeAuthFailed, "Invalid token")
		return true
	}

	s.userID = userID
	atomic.StoreInt32(&s.authenticated, 1)
	if s.authTimer != nil {
		s.authTimer.Stop()
	}

	if s.srv.Deps.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.srv.Deps.Presence.MarkOnline(ctx, userID)
		cancel()
	}
	s.srv.logEvent(s, models.EventAuthenticate, "")

	s.sendJSON(models.MAuthSuccessMessage{
		Type:    models.MsgAuthSuccess,
		UserID:  userID,
		Message: "Authenticated successfully",
	})

	s.srv.Logger.Info("Session %s authenticated as user %d", s.id, userID)
	return false
}

// -----------------------------------------------------------------------------

func (s *Session) requireAuth() bool {
	if !s.isAuthenticated() {
		s.sendError(models.ErrCodeAuthRequired, "Authentication required")
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

func (s *Session) handleSubscribe(msg models.MClientMessage) {
	if !s.requireAuth() {
		return
	}

	symbols := normalizeSymbols(msg.Symbols)
	if len(symbols) == 0 {
		s.sendError(models.ErrCodeValidation, "No symbols provided")
		return
	}

	// Subscription cap counts only symbols new to this session
	added := 0
	for _, symbol := range symbols {
		if _, ok := s.subs[symbol]; !ok {
			added++
		}
	}
	maxSubs := s.srv.Config.Simulator.MaxSubscriptions
	if len(s.subs)+added > maxSubs {
		s.sendError(models.ErrCodeValidation, fmt.Sprintf("Subscription limit exceeded (%d)", maxSubs))
		return
	}

	for _, symbol := range symbols {
		s.subs[symbol] = struct{}{}
	}
	s.srv.Deps.Registry.Subscribe(s, symbols)
	s.srv.logEvent(s, models.EventSubscribe, strings.Join(symbols, ","))

	s.sendJSON(models.MSubscribedMessage{
		Type:    models.MsgSubscribed,
		Symbols: symbols,
		Count:   len(symbols),
	})
}

// -----------------------------------------------------------------------------

func (s *Session) handleUnsubscribe(msg models.MClientMessage) {
	if !s.requireAuth() {
		return
	}

	symbols := normalizeSymbols(msg.Symbols)
	if len(symbols) == 0 {
		s.sendError(models.ErrCodeValidation, "No symbols provided")
		return
	}

	for _, symbol := range symbols {
		delete(s.subs, symbol)
	}
	s.srv.Deps.Registry.Unsubscribe(s, symbols)
	s.srv.logEvent(s, models.EventUnsubscribe, strings.Join(symbols, ","))

	s.sendJSON(models.MUnsubscribedMessage{
		Type:    models.MsgUnsubscribed,
		Symbols: symbols,
	})
}

// -----------------------------------------------------------------------------

func (s *Session) handlePlaceOrder(msg models.MClientMessage) {
	if !s.requireAuth() {
		return
	}

	order, err := s.validateOrder(msg)
	if err != nil {
		s.sendError(models.ErrCodeValidation, err.Error())
		return
	}

	result, err := s.srv.Deps.Orders.Submit(order)
	if err != nil {
		s.sendError(models.ErrCodeValidation, err.Error())
		return
	}
	s.srv.logEvent(s, models.EventPlaceOrder, order.Symbol)

	// Fire-and-forget: the execution result arrives whenever the exchange
	// resolves it; a session that closed meanwhile just misses it.
	go func() {
		select {
		case exec := <-result:
			s.sendJSON(models.MOrderExecutedMessage{
				Type:      models.MsgOrderExecuted,
				OrderID:   exec.OrderID,
				Symbol:    exec.Symbol,
				Status:    exec.Status,
				Quantity:  exec.Quantity,
				Price:     exec.Price,
				Timestamp: exec.Timestamp,
			})
		case <-s.done:
		}
	}()
}

// -----------------------------------------------------------------------------

func (s *Session) validateOrder(msg models.MClientMessage) (models.MOrder, error) {
	symbol := strings.ToUpper(strings.TrimSpace(msg.Symbol))
	if symbol == "" {
		return models.MOrder{}, fmt.Errorf("Missing required order fields")
	}

	side := strings.ToLower(msg.Side)
	if side != models.SideBuy && side != models.SideSell {
		return models.MOrder{}, fmt.Errorf("Invalid order side")
	}

	orderType := strings.ToLower(msg.OrderType)
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}
	if orderType != models.OrderTypeMarket && orderType != models.OrderTypeLimit {
		return models.MOrder{}, fmt.Errorf("Invalid order type")
	}

	if msg.Quantity <= 0 {
		return models.MOrder{}, fmt.Errorf("Quantity must be positive")
	}

	if orderType == models.OrderTypeLimit && msg.Price <= 0 {
		return models.MOrder{}, fmt.Errorf("Price required for limit orders")
	}
	if msg.Price < 0 {
		return models.MOrder{}, fmt.Errorf("Price must be positive")
	}

	return models.MOrder{
		UserID:    s.userID,
		Symbol:    symbol,
		Side:      side,
		OrderType: orderType,
		Quantity:  msg.Quantity,
		Price:     msg.Price,
	}, nil
}

// -----------------------------------------------------------------------------

func (s *Session) handlePing() {
	if !s.requireAuth() {
		return
	}

	// Liveness only; also refreshes the presence TTL
	if s.srv.Deps.Presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.srv.Deps.Presence.MarkOnline(ctx, s.userID)
		cancel()
	}

	s.sendJSON(models.MPongMessage{
		Type:      models.MsgPong,
		Timestamp: time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------
// Send helpers
// -----------------------------------------------------------------------------

func (s *Session) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.srv.Logger.Error("Session %s marshal error: %v", s.id, err)
		return
	}
	if !s.Deliver(payload) {
		s.srv.Logger.Warning("Session %s reply dropped (send buffer full)", s.id)
	}
}

// -----------------------------------------------------------------------------

func (s *Session) sendError(code string, message string) {
	s.sendJSON(models.MErrorMessage{
		Type:    models.MsgError,
		Code:    code,
		Message: message,
	})
}

// -----------------------------------------------------------------------------

// normalizeSymbols upper-cases, trims and dedupes while keeping order.
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
