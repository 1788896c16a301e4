// Package server assembles the HTTP/WebSocket surface: REST under /api,
// the push channel at /ws, liveness at /health and prometheus metrics at
// /metrics, all on one port.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicledger/civicledger/internal/analytics"
	"github.com/civicledger/civicledger/internal/config"
	"github.com/civicledger/civicledger/internal/handlers"
	"github.com/civicledger/civicledger/internal/realtime"
	"github.com/civicledger/civicledger/internal/store"
)

// Server owns the store, the realtime hub, the analytics engine and the
// HTTP listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store     store.Store
	hub       *realtime.Hub
	analytics *analytics.Engine
	http      *http.Server

	cancelHub context.CancelFunc
}

// New assembles a server from configuration. With defaults alone it serves
// the seeded in-memory store on localhost:3001.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
	}

	hub := realtime.NewHub(rdb, logger)
	clientGauge = func() float64 { return float64(hub.ConnectedClients()) }

	engine := analytics.NewEngine(st, time.Duration(cfg.Analytics.CacheTTLSeconds)*time.Second, logger)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		hub:       hub,
		analytics: engine,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return s, nil
}

// newStore selects the configured store backend and seeds the demo data
// when appropriate.
func newStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Database.DSN != "" {
		logger.Info("using postgres store")
		return store.NewGormStore(cfg.Database.DSN)
	}

	logger.Info("using in-memory store")
	st := store.NewMemoryStore()
	if cfg.Seed.Enabled {
		if err := store.Seed(context.Background(), st); err != nil {
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		logger.Info("demo dataset seeded")
	}
	return st, nil
}

// router builds the gin engine with the full REST surface.
func (s *Server) router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(metricsMiddleware())
	r.Use(corsMiddleware())

	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.hub.HandleWebSocket)

	policyHandler := handlers.NewPolicyHandler(s.store, s.hub, s.analytics, s.logger)
	complaintHandler := handlers.NewComplaintHandler(s.store, s.hub, s.analytics, s.logger)
	proposalHandler := handlers.NewProposalHandler(s.store, s.hub, s.analytics, s.logger)
	transactionHandler := handlers.NewTransactionHandler(s.store, s.hub, s.analytics, s.logger)
	analyticsHandler := handlers.NewAnalyticsHandler(s.analytics, s.logger)

	api := r.Group("/api")
	{
		api.GET("/policies", policyHandler.List)
		api.POST("/policies", policyHandler.Create)
		api.GET("/policies/:id", policyHandler.Get)
		api.PUT("/policies/:id/activate", policyHandler.Activate)
		api.POST("/policies/:id/release-funds", policyHandler.ReleaseFunds)

		api.GET("/complaints", complaintHandler.List)
		api.POST("/complaints", complaintHandler.Submit)
		api.GET("/complaints/:id", complaintHandler.Get)

		api.GET("/proposals", proposalHandler.List)
		api.POST("/proposals", proposalHandler.Create)
		api.GET("/proposals/:id", proposalHandler.Get)
		api.POST("/proposals/:id/vote", proposalHandler.Vote)

		api.GET("/transactions", transactionHandler.ListRecent)
		api.POST("/transactions", transactionHandler.Record)
		api.GET("/transactions/policy/:id", transactionHandler.ListForPolicy)

		api.GET("/analytics/overview", analyticsHandler.Overview)
	}

	return r
}

// Handler exposes the assembled routes for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the hub, the analytics scheduler and the HTTP listener. It
// blocks until the listener stops.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelHub = cancel
	go s.hub.Run(ctx)
	go s.hub.SubscribeToRedis(ctx)

	if err := s.analytics.StartScheduler(s.cfg.Analytics.RefreshSchedule); err != nil {
		cancel()
		return fmt.Errorf("failed to start analytics scheduler: %w", err)
	}

	s.logger.Info("listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener, the scheduler and the hub, then closes the
// store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.analytics.StopScheduler()
	if s.cancelHub != nil {
		s.cancelHub()
	}
	err := s.http.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// requestLogger logs each request with latency and status.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// corsMiddleware allows browser dashboards on any origin to call the demo
// backend.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
