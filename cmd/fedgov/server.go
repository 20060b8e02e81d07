package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/api/handlers"
	"github.com/fedgovio/fedgov/config"
	"github.com/fedgovio/fedgov/governance"
	"github.com/fedgovio/fedgov/internal/cache"
	"github.com/fedgovio/fedgov/internal/metrics"
	"github.com/fedgovio/fedgov/internal/server"
	"github.com/fedgovio/fedgov/internal/store"
	"github.com/fedgovio/fedgov/internal/telemetry"
	"github.com/fedgovio/fedgov/training"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server wires the governance service, the training manager and the HTTP
// surface together.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	store           *store.Store
	cacheManager    *cache.Manager
	otelProviders   *telemetry.Providers
	governance      *governance.Service
	trainingManager *training.Manager

	healthHandler   *handlers.HealthHandler
	groupHandler    *handlers.GroupHandler
	strategyHandler *handlers.StrategyHandler
	resourceHandler *handlers.ResourceHandler
	proposalHandler *handlers.ProposalHandler
	trainingHandler *handlers.TrainingHandler

	metricsCollector  *metrics.Collector
	rateLimiterCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 Startup
// =============================================================================

// Start brings up all components in dependency order.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("fedgov", s.logger)

	otelProviders, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otelProviders = otelProviders

	if err := s.initServices(); err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// initServices builds the store, cache, governance service, training
// manager and the HTTP handlers.
func (s *Server) initServices() error {
	st, err := store.Open(s.cfg.Database, s.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = st

	if s.cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		if s.cfg.Redis.PoolSize > 0 {
			cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		}
		if s.cfg.Redis.MinIdleConns > 0 {
			cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns
		}
		if s.cfg.Redis.TTL > 0 {
			cacheCfg.DefaultTTL = s.cfg.Redis.TTL
		}
		manager, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("cache unavailable, running without it", zap.Error(err))
		} else {
			s.cacheManager = manager
		}
	}

	s.governance = governance.NewService(st, governance.NewLogRecorder(s.logger), s.logger).
		WithMetrics(s.metricsCollector)
	if s.cacheManager != nil {
		s.governance = s.governance.WithCache(s.cacheManager, s.cfg.Redis.TTL)
	}

	launcher := training.NewExecLauncher(s.cfg.Training.WorkerCommand, nil, s.logger)
	s.trainingManager = training.NewManager(s.governance, launcher, s.cfg.Training, s.logger).
		WithMetrics(s.metricsCollector)
	s.governance = s.governance.WithNotifier(s.trainingManager)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", s.store.Ping))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis", s.cacheManager.Ping))
	}

	s.groupHandler = handlers.NewGroupHandler(s.governance, s.logger)
	s.strategyHandler = handlers.NewStrategyHandler(s.governance, s.logger)
	s.resourceHandler = handlers.NewResourceHandler(s.governance, s.logger)
	s.proposalHandler = handlers.NewProposalHandler(s.governance, s.logger)
	s.trainingHandler = handlers.NewTrainingHandler(s.governance, s.trainingManager, s.logger)

	s.logger.Info("Services initialized",
		zap.Bool("cache_enabled", s.cacheManager != nil),
		zap.String("worker_command", s.cfg.Training.WorkerCommand))
	return nil
}

// =============================================================================
// 🌐 HTTP server
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// Probes and build info.
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Groups.
	mux.HandleFunc("POST /groups", s.groupHandler.HandleCreate)
	mux.HandleFunc("GET /groups", s.groupHandler.HandleList)
	mux.HandleFunc("GET /groups/{id}", s.groupHandler.HandleGet)
	mux.HandleFunc("POST /groups/{id}/members", s.groupHandler.HandleAddMember)

	// Strategies and vote counting.
	mux.HandleFunc("POST /strategies", s.strategyHandler.HandleCreate)
	mux.HandleFunc("GET /strategies", s.strategyHandler.HandleList)
	mux.HandleFunc("GET /strategies/{id}", s.strategyHandler.HandleGet)
	mux.HandleFunc("POST /strategies/{id}/count_votes_configuration_proposals",
		s.strategyHandler.HandleCountConfigurationVotes)
	mux.HandleFunc("POST /strategies/{id}/count_votes_qr/{proposalId}",
		s.strategyHandler.HandleCountQualityRequirementVotes)
	mux.HandleFunc("GET /strategies/{id}/quality_requirements",
		s.resourceHandler.HandleListQualityRequirements)

	// Datasets, models and tally products.
	mux.HandleFunc("POST /datasets", s.resourceHandler.HandleCreateDataset)
	mux.HandleFunc("GET /datasets/{id}", s.resourceHandler.HandleGetDataset)
	mux.HandleFunc("POST /ml_models", s.resourceHandler.HandleCreateMLModel)
	mux.HandleFunc("GET /ml_models/{id}", s.resourceHandler.HandleGetMLModel)
	mux.HandleFunc("GET /configurations/{id}", s.resourceHandler.HandleGetConfiguration)
	mux.HandleFunc("GET /quality_requirements/{id}", s.resourceHandler.HandleGetQualityRequirement)

	// Proposals and votes.
	mux.HandleFunc("POST /proposals/configurations", s.proposalHandler.HandleCreateConfiguration)
	mux.HandleFunc("POST /proposals/quality_requirements", s.proposalHandler.HandleCreateQualityRequirement)
	mux.HandleFunc("GET /proposals", s.proposalHandler.HandleList)
	mux.HandleFunc("GET /proposals/{id}", s.proposalHandler.HandleGet)
	mux.HandleFunc("DELETE /proposals/{id}", s.proposalHandler.HandleDelete)
	mux.HandleFunc("POST /proposals/{id}/votes", s.proposalHandler.HandleVote)
	mux.HandleFunc("DELETE /proposals/{id}/votes/{member}", s.proposalHandler.HandleRemoveVote)

	// Training sessions: registry plus the websocket endpoints.
	mux.HandleFunc("POST /training_sessions", s.trainingHandler.HandleCreate)
	mux.HandleFunc("GET /training_sessions", s.trainingHandler.HandleList)
	mux.HandleFunc("GET /training_sessions/{id}", s.trainingHandler.HandleGet)
	mux.HandleFunc("GET /join_training/{configuration_id}", s.trainingManager.HandleJoin)
	mux.HandleFunc("GET /register_dataset/{configuration_id}", s.trainingManager.HandleRegisterDataset)

	// Middleware chain. Probes stay reachable without credentials.
	skipAuthPaths := []string{"/health", "/ready", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
	}
	if s.cfg.Telemetry.Enabled {
		chain = append(chain, OTelTracing())
	}
	chain = append(chain, CORS(s.cfg.Server.CORSOrigin))
	if s.cfg.Server.RateLimit > 0 {
		chain = append(chain,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimit, s.cfg.Server.RateBurst, s.logger))
	}
	chain = append(chain, MemberAuth(s.cfg.Auth, skipAuthPaths, s.logger))
	handler := Chain(mux, chain...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile); err != nil {
			return err
		}
	} else if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 Shutdown
// =============================================================================

// WaitForShutdown blocks until a termination signal, then winds down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops everything in reverse dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// Closing active sessions first gives participants the shutdown close
	// frame before the listeners go away.
	if s.trainingManager != nil {
		if err := s.trainingManager.Shutdown(ctx); err != nil {
			s.logger.Error("Training manager shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Store shutdown error", zap.Error(err))
		}
	}
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
