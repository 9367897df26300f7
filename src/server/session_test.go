package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-stream/src/auth"
	"market-stream/src/config"
	"market-stream/src/interfaces"
	"market-stream/src/logger"
	"market-stream/src/models"
	"market-stream/src/registry"
	"market-stream/src/utils"
)

const testSecret = "test-secret"

// stubOrders returns a canned execution for every submitted order.
type stubOrders struct {
	mu        sync.Mutex
	submitted []models.MOrder
	exec      models.MOrderExecution
}

func (s *stubOrders) Submit(order models.MOrder) (<-chan models.MOrderExecution, error) {
	s.mu.Lock()
	s.submitted = append(s.submitted, order)
	s.mu.Unlock()
	result := make(chan models.MOrderExecution, 1)
	exec := s.exec
	exec.Symbol = order.Symbol
	exec.Quantity = order.Quantity
	result <- exec
	return result, nil
}

func (s *stubOrders) orders() []models.MOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MOrder(nil), s.submitted...)
}

var _ interfaces.IOrderSubmitter = (*stubOrders)(nil)

// -----------------------------------------------------------------------------
// Harness
// -----------------------------------------------------------------------------

type gatewayFixture struct {
	srv    *GatewayServer
	http   *httptest.Server
	orders *stubOrders
	wsURL  string
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	return newGatewayFixtureWithAuthTimeout(t, 5)
}

func newGatewayFixtureWithAuthTimeout(t *testing.T, timeoutSeconds int) *gatewayFixture {
	t.Helper()

	cfg := &config.Config{MConfig: &models.MConfig{
		Name: "test-gateway",
		Auth: models.MAuthConfig{JWTSecret: testSecret, AuthTimeoutSeconds: timeoutSeconds},
		Simulator: models.MSimulatorConfig{
			UpdateIntervalSeconds: 2,
			MaxSubscriptions:      3,
			HistoryDepth:          10,
		},
		Instruments: []models.MInstrument{
			{Symbol: "AAPL", Class: models.ClassStock, BasePrice: 150},
			{Symbol: "MSFT", Class: models.ClassStock, BasePrice: 380},
		},
	}}

	orders := &stubOrders{exec: models.MOrderExecution{
		ExecutionID: "exec_abc",
		OrderID:     "ord_abc",
		Status:      models.StatusFilled,
		Price:       150.5,
		Timestamp:   time.Now().UnixMilli(),
	}}

	srv := NewGatewayServer(cfg, logger.NewLogger("error", "test"), Deps{
		Registry: registry.NewRegistry(),
		Verifier: auth.NewHMACVerifier(testSecret),
		Orders:   orders,
		History:  utils.NewHistoryCache(10),
		Market:   utils.NewMarketSession(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
	})

	return &gatewayFixture{
		srv:    srv,
		http:   ts,
		orders: orders,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func signedToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func send(t *testing.T, conn *websocket.Conn, msg models.MClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) models.MServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg models.MServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

// authenticate dials, consumes the greeting and completes the auth handshake.
func (f *gatewayFixture) authenticate(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	conn := f.dial(t)

	greeting := read(t, conn)
	require.Equal(t, models.MsgConnectionEstablished, greeting.Type)

	send(t, conn, models.MClientMessage{Type: models.MsgAuth, Token: signedToken(t, userID)})
	reply := read(t, conn)
	require.Equal(t, models.MsgAuthSuccess, reply.Type)
	return conn
}

// -----------------------------------------------------------------------------
// WebSocket protocol
// -----------------------------------------------------------------------------

func TestSession_Greeting(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	greeting := read(t, conn)
	assert.Equal(t, models.MsgConnectionEstablished, greeting.Type)
	assert.NotEmpty(t, greeting.SessionID)
	assert.Equal(t, 3, greeting.MaxSubscriptions)
}

func TestSession_AuthSuccess(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)
	read(t, conn) // greeting

	send(t, conn, models.MClientMessage{Type: models.MsgAuth, Token: signedToken(t, 42)})

	reply := read(t, conn)
	assert.Equal(t, models.MsgAuthSuccess, reply.Type)
	assert.Equal(t, int64(42), reply.UserID)
}

func TestSession_AuthFailureClosesSocket(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)
	read(t, conn) // greeting

	send(t, conn, models.MClientMessage{Type: models.MsgAuth, Token: "garbage"})

	reply := read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)
	assert.Equal(t, models.ErrCodeAuthFailed, reply.Code)

	// Socket must be closed after the error
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestSession_PreAuthSubscribeRejectedButOpen(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)
	read(t, conn) // greeting

	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"AAPL"}})

	reply := read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)
	assert.Equal(t, models.ErrCodeAuthRequired, reply.Code)

	// Connection stays usable: auth still works afterwards
	send(t, conn, models.MClientMessage{Type: models.MsgAuth, Token: signedToken(t, 7)})
	assert.Equal(t, models.MsgAuthSuccess, read(t, conn).Type)
}

func TestSession_SubscribeNormalizesAndDedupes(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"aapl", "AAPL", " msft "}})

	reply := read(t, conn)
	require.Equal(t, models.MsgSubscribed, reply.Type)
	assert.Equal(t, []string{"AAPL", "MSFT"}, reply.Symbols)
	assert.Equal(t, 2, reply.Count)
}

func TestSession_SubscribeCapEnforced(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"A", "B", "C", "D"}})

	reply := read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)
	assert.Equal(t, models.ErrCodeValidation, reply.Code)

	// Resubscribing already-held symbols does not count against the cap
	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"A", "B", "C"}})
	require.Equal(t, models.MsgSubscribed, read(t, conn).Type)

	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"A", "B"}})
	assert.Equal(t, models.MsgSubscribed, read(t, conn).Type)
}

func TestSession_Unsubscribe(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	send(t, conn, models.MClientMessage{Type: models.MsgSubscribe, Symbols: []string{"AAPL", "MSFT"}})
	require.Equal(t, models.MsgSubscribed, read(t, conn).Type)

	send(t, conn, models.MClientMessage{Type: models.MsgUnsubscribe, Symbols: []string{"AAPL", "TSLA"}})

	reply := read(t, conn)
	assert.Equal(t, models.MsgUnsubscribed, reply.Type)
	assert.Equal(t, []string{"AAPL", "TSLA"}, reply.Symbols)
}

func TestSession_InvalidOrderRejected(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	tests := []struct {
		name string
		msg  models.MClientMessage
	}{
		{"zero quantity", models.MClientMessage{Type: models.MsgPlaceOrder, Symbol: "AAPL", Side: "buy", Quantity: 0}},
		{"bad side", models.MClientMessage{Type: models.MsgPlaceOrder, Symbol: "AAPL", Side: "hold", Quantity: 1}},
		{"limit without price", models.MClientMessage{Type: models.MsgPlaceOrder, Symbol: "AAPL", Side: "buy", OrderType: "limit", Quantity: 1}},
		{"missing symbol", models.MClientMessage{Type: models.MsgPlaceOrder, Side: "buy", Quantity: 1}},
	}

	for _, tt := range tests {
		send(t, conn, tt.msg)
		reply := read(t, conn)
		assert.Equal(t, models.MsgError, reply.Type, tt.name)
		assert.Equal(t, models.ErrCodeValidation, reply.Code, tt.name)
	}
	assert.Empty(t, f.orders.orders())
}

func TestSession_OrderExecuted(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	send(t, conn, models.MClientMessage{
		Type:     models.MsgPlaceOrder,
		Symbol:   "aapl",
		Side:     "buy",
		Quantity: 10,
	})

	reply := read(t, conn)
	require.Equal(t, models.MsgOrderExecuted, reply.Type)
	assert.Equal(t, "ord_abc", reply.OrderID)
	assert.Equal(t, "AAPL", reply.Symbol)
	assert.Equal(t, models.StatusFilled, reply.Status)
	assert.Equal(t, 10.0, reply.Quantity)

	placed := f.orders.orders()
	require.Len(t, placed, 1)
	assert.Equal(t, int64(42), placed[0].UserID)
	assert.Equal(t, models.OrderTypeMarket, placed[0].OrderType)
}

func TestSession_PingPong(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	send(t, conn, models.MClientMessage{Type: models.MsgPing})

	reply := read(t, conn)
	assert.Equal(t, models.MsgPong, reply.Type)
	assert.NotZero(t, reply.Timestamp)
}

func TestSession_PreAuthPingRejected(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)
	read(t, conn) // greeting

	send(t, conn, models.MClientMessage{Type: models.MsgPing})

	reply := read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)
	assert.Equal(t, models.ErrCodeAuthRequired, reply.Code)

	// Connection stays open; authentication still possible
	send(t, conn, models.MClientMessage{Type: models.MsgAuth, Token: signedToken(t, 7)})
	assert.Equal(t, models.MsgAuthSuccess, read(t, conn).Type)
}

func TestSession_AuthTimeoutClosesWithError(t *testing.T) {
	f := newGatewayFixtureWithAuthTimeout(t, 1)
	conn := f.dial(t)
	read(t, conn) // greeting

	// Stay silent past the timeout: the error frame must arrive before the
	// close frame
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var reply models.MServerMessage
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.Equal(t, models.MsgError, reply.Type)
	assert.Equal(t, models.ErrCodeAuthRequired, reply.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure) ||
		websocket.IsUnexpectedCloseError(err), "expected a close frame, got %v", err)
}

func TestSession_UnknownTypeKeepsConnection(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.authenticate(t, 42)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	reply := read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	reply = read(t, conn)
	assert.Equal(t, models.MsgError, reply.Type)

	// Still alive
	send(t, conn, models.MClientMessage{Type: models.MsgPing})
	assert.Equal(t, models.MsgPong, read(t, conn).Type)
}

// -----------------------------------------------------------------------------
// REST surface
// -----------------------------------------------------------------------------

func TestREST_Health(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.http.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestREST_Instruments(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.http.URL + "/api/instruments")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Instruments []models.MInstrument `json:"instruments"`
		Count       int                  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "AAPL", body.Instruments[0].Symbol)
}

func TestREST_MarketStatus(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.http.URL + "/api/market/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["crypto_open"])
	assert.Contains(t, body, "equities_open")
	assert.Contains(t, body, "subscriptions")
}

func TestREST_HistoryUnknownSymbol(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.http.URL + "/api/market/history/NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestREST_HistoryKnownSymbol(t *testing.T) {
	f := newGatewayFixture(t)
	f.srv.Deps.History.Append(models.MPriceTick{Symbol: "AAPL", Price: 151, Timestamp: 1})

	resp, err := http.Get(f.http.URL + "/api/market/history/aapl?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Symbol string              `json:"symbol"`
		Ticks  []models.MPriceTick `json:"ticks"`
		Count  int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "AAPL", body.Symbol)
	assert.Equal(t, 1, body.Count)
}
