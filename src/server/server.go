package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"market-stream/src/config"
	"market-stream/src/interfaces"
	"market-stream/src/logger"
	"market-stream/src/models"
	"market-stream/src/presence"
	"market-stream/src/registry"
	"market-stream/src/utils"
)

// -----------------------------------------------------------------------------
// Server Structure
// -----------------------------------------------------------------------------

// Deps bundles the collaborators a GatewayServer needs. DB and Presence may
// be nil (persistence and presence tracking are optional).
type Deps struct {
	Registry *registry.Registry
	Verifier interfaces.ITokenVerifier
	Orders   interfaces.IOrderSubmitter
	DB       interfaces.IDatabase
	Presence *presence.Tracker
	History  *utils.HistoryCache
	Market   *utils.MarketSession
}

type GatewayServer struct {
	Config *config.Config
	Logger *logger.Logger
	Deps   Deps

	engine   *gin.Engine
	mu       sync.RWMutex
	sessions map[string]*Session
	started  time.Time
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// -----------------------------------------------------------------------------

func NewGatewayServer(cfg *config.Config, log *logger.Logger, deps Deps) *GatewayServer {
	gin.SetMode(gin.ReleaseMode)

	s := &GatewayServer{
		Config:   cfg,
		Logger:   log,
		Deps:     deps,
		engine:   gin.New(),
		sessions: make(map[string]*Session),
		started:  time.Now(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())
	s.setupRoutes()

	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) setupRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.getHealth)
		api.GET("/instruments", s.getInstruments)
		api.GET("/market/status", s.getMarketStatus)
		api.GET("/market/latest", s.getLatest)
		api.GET("/market/history/:symbol", s.getHistory)
	}

	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------

// Start blocks serving HTTP until the listener fails.
func (s *GatewayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Gateway listening on %s", addr)
	return s.engine.Run(addr)
}

// Handler exposes the router, mainly for tests driving httptest.Server.
func (s *GatewayServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Stop closes every live session. The HTTP listener itself is torn down by
// process exit; sessions are what hold client-visible state.
func (s *GatewayServer) Stop() {
	s.mu.RLock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.RUnlock()

	for _, sess := range open {
		sess.Close()
	}
	s.Logger.Info("Gateway stopped, %d sessions closed", len(open))
}

// -----------------------------------------------------------------------------
// Session registry
// -----------------------------------------------------------------------------

func (s *GatewayServer) addSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *GatewayServer) removeSession(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

func (s *GatewayServer) sessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// -----------------------------------------------------------------------------

// logEvent records a connection lifecycle event when persistence is wired.
func (s *GatewayServer) logEvent(sess *Session, eventType string, detail string) {
	if s.Deps.DB == nil {
		return
	}
	event := models.MConnectionEvent{
		SessionID: sess.id,
		UserID:    sess.userID,
		EventType: eventType,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.Deps.DB.SaveConnectionEvent(event); err != nil {
		s.Logger.Warning("Failed to save connection event: %v", err)
	}
}

// -----------------------------------------------------------------------------
// WebSocket endpoint
// -----------------------------------------------------------------------------

func (s *GatewayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("WebSocket upgrade failed: %v", err)
		return
	}

	sess := newSession(s, conn)
	s.addSession(sess)
	s.logEvent(sess, models.EventConnect, c.ClientIP())
	s.Logger.Info("Session %s connected from %s", sess.id, c.ClientIP())

	sess.sendJSON(models.MConnectionEstablished{
		Type:             models.MsgConnectionEstablished,
		SessionID:        sess.id,
		MaxSubscriptions: s.Config.Simulator.MaxSubscriptions,
		Message:          "Authenticate within the timeout to begin streaming",
	})

	authTimeout := time.Duration(s.Config.Auth.AuthTimeoutSeconds) * time.Second
	sess.authTimer = time.AfterFunc(authTimeout, func() {
		if !sess.isAuthenticated() {
			sess.sendError(models.ErrCodeAuthRequired, "Authentication timeout")
			sess.Close()
		}
	})

	go sess.writePump()
	sess.readPump()
}

// -----------------------------------------------------------------------------
// REST handlers
// -----------------------------------------------------------------------------

func (s *GatewayServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"name":           s.Config.Name,
		"connections":    s.sessionCount(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instruments": s.Config.Instruments,
		"count":       len(s.Config.Instruments),
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getMarketStatus(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"equities_open": s.Deps.Market.IsOpen(models.ClassStock, now),
		"crypto_open":   true,
		"subscriptions": s.Deps.Registry.Counts(),
		"server_time":   now.UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getLatest(c *gin.Context) {
	snapshot := s.Deps.History.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ticks": snapshot,
		"count": len(snapshot),
	})
}

// -----------------------------------------------------------------------------

func (s *GatewayServer) getHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	known := false
	for _, inst := range s.Config.Instruments {
		if inst.Symbol == symbol {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown symbol: %s", symbol)})
		return
	}

	ticks := s.Deps.History.Latest(symbol, limit)
	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"ticks":  ticks,
		"count":  len(ticks),
	})
}
