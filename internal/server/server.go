// Package server wires configuration, storage, chain probes, and the HTTP
// routes into a runnable service.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ayushns01/walletrix/internal/addressbook"
	"github.com/ayushns01/walletrix/internal/asset"
	"github.com/ayushns01/walletrix/internal/chainaddr"
	"github.com/ayushns01/walletrix/internal/circuitbreaker"
	"github.com/ayushns01/walletrix/internal/config"
	"github.com/ayushns01/walletrix/internal/evaluator"
	"github.com/ayushns01/walletrix/internal/health"
	"github.com/ayushns01/walletrix/internal/history"
	"github.com/ayushns01/walletrix/internal/idgen"
	"github.com/ayushns01/walletrix/internal/logging"
	"github.com/ayushns01/walletrix/internal/metrics"
	"github.com/ayushns01/walletrix/internal/probe"
	"github.com/ayushns01/walletrix/internal/ratelimit"
	"github.com/ayushns01/walletrix/internal/reputation"
	"github.com/ayushns01/walletrix/internal/retry"
	"github.com/ayushns01/walletrix/internal/security"
	"github.com/ayushns01/walletrix/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg        *config.Config
	reputation reputation.Store
	reportLog  reputation.ReportLog
	book       addressbook.Reader
	history    *history.Oracle
	probes     map[chainaddr.ChainKind]probe.Client
	runner     *evaluator.Runner
	ingestor   *reputation.Ingestor
	assets     *asset.Registry

	checks        *health.Registry
	rateLimiter   *ratelimit.Limiter
	reportLimiter *ratelimit.Limiter

	db        *sql.DB           // nil if using in-memory
	ethClient *ethclient.Client // nil when the EVM probe is injected or disabled
	router    *gin.Engine
	httpSrv   *http.Server
	logger    *slog.Logger

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProbe injects a chain client (for testing), bypassing RPC dialing for
// that chain.
func WithProbe(kind chainaddr.ChainKind, client probe.Client) Option {
	return func(s *Server) {
		if s.probes == nil {
			s.probes = make(map[chainaddr.ChainKind]probe.Client)
		}
		s.probes[kind] = client
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		checks: health.NewRegistry(),
		assets: asset.DefaultRegistry(),
	}

	// Apply options first (may set probes/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// The database may still be coming up alongside us.
		if err := retry.Do(ctx, 5, 500*time.Millisecond, func() error {
			return db.PingContext(ctx)
		}); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.reputation = reputation.NewPostgresStore(db)
		s.reportLog = reputation.NewPostgresReportLog(db)
		s.book = addressbook.NewPostgresReader(db)
		s.history = s.newOracle(history.NewPostgresReader(db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		s.checks.Register("database", func(ctx context.Context) health.Status {
			st := health.Status{Name: "database", Healthy: true}
			if err := db.PingContext(ctx); err != nil {
				st.Healthy = false
				st.Detail = err.Error()
			}
			return st
		})
		go metrics.StartDBStatsCollector(ctx, db, 15*time.Second)
	} else {
		s.reputation = reputation.NewMemoryStore()
		s.reportLog = reputation.NewMemoryReportLog()
		s.book = addressbook.NewMemoryReader()
		s.history = s.newOracle(history.NewMemoryReader())
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Chain probes, unless injected via options
	if s.probes == nil {
		s.probes = make(map[chainaddr.ChainKind]probe.Client)
		breaker := circuitbreaker.New(cfg.ProbeBreakerMax, 30*time.Second)

		if cfg.EVMRPCURL != "" {
			client, err := ethclient.Dial(cfg.EVMRPCURL)
			if err != nil {
				s.logger.Warn("failed to dial EVM RPC, chain checks will be skipped",
					"error", err)
			} else {
				evmOpts := []probe.EVMOption{probe.WithSpikeThreshold(cfg.FeeSpikeGwei)}
				if cfg.USDCContract != "" {
					evmOpts = append(evmOpts, probe.WithToken("USDC", cfg.USDCContract))
				}
				evm, err := probe.NewEVMProbe(client, evmOpts...)
				if err != nil {
					client.Close()
					return nil, fmt.Errorf("failed to create EVM probe: %w", err)
				}
				s.ethClient = client
				s.probes[chainaddr.ChainEVM] = probe.NewGuarded(evm, breaker, "evm-rpc")
				s.logger.Info("EVM probe configured",
					"rpc", cfg.EVMRPCURL,
					"chain_id", cfg.ChainID,
				)
			}
		}

		if cfg.BTCExplorerURL != "" {
			btc := probe.NewBitcoinProbe(
				probe.NewEsploraClient(cfg.BTCExplorerURL),
				probe.WithFeeRateSpike(cfg.BTCFeeSpikeSat),
			)
			s.probes[chainaddr.ChainBitcoin] = probe.NewGuarded(btc, breaker, "btc-explorer")
			s.logger.Info("Bitcoin probe configured", "explorer", cfg.BTCExplorerURL)
		}
	}

	if s.ethClient != nil {
		client := s.ethClient
		s.checks.Register("evm_rpc", func(ctx context.Context) health.Status {
			st := health.Status{Name: "evm_rpc", Healthy: true}
			if _, err := client.ChainID(ctx); err != nil {
				st.Healthy = false
				st.Detail = err.Error()
			}
			return st
		})
	}

	s.runner = evaluator.NewRunner(s.reputation, s.book, s.history, s.probes,
		evaluator.WithPerCheckTimeout(time.Duration(cfg.PerCheckTimeoutMs)*time.Millisecond),
		evaluator.WithOverallTimeout(time.Duration(cfg.OverallTimeoutMs)*time.Millisecond),
		evaluator.WithBalanceBuffer(cfg.BalanceBufferPct),
		evaluator.WithDustThreshold(cfg.BTCDustSat),
	)

	s.ingestor = reputation.NewIngestor(s.reputation, s.reportLog,
		reputation.WithDedupeWindow(time.Duration(cfg.ReportDedupeWindowHours)*time.Hour),
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) newOracle(reader history.Reader) *history.Oracle {
	return history.NewOracle(reader,
		history.WithWindow(time.Duration(s.cfg.HistoryWindowDays)*24*time.Hour),
		history.WithSampleCount(int(s.cfg.HistorySampleCount)),
	)
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (the wallet app frontends call this service directly)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req_")
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// Transaction evaluation
	evaluator.NewHandler(s.runner, s.assets).RegisterRoutes(v1)

	// Community reputation: reads are cheap, report submissions get their
	// own tighter limiter so a burst of reports cannot drown the reads.
	s.reportLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.ReportRateLimitRPM,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})
	reputation.NewHandler(s.ingestor, s.reputation).
		RegisterRoutes(v1, s.reportLimiter.Middleware())
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	chains := make([]string, 0, len(s.probes))
	for kind := range s.probes {
		chains = append(chains, string(kind))
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        "Walletrix",
		"description": "Pre-flight transaction risk evaluation for custodial wallets",
		"version":     "0.1.0",
		"chains":      chains,
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop rate limiter cleanup goroutines
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.reportLimiter != nil {
		s.reportLimiter.Stop()
	}

	// Close the EVM RPC connection
	if s.ethClient != nil {
		s.ethClient.Close()
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
