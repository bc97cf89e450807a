// Package api serves the dashboard data contract over HTTP: cohort
// generation, flattened tables, epidemiology and market series, health,
// metrics, and a websocket stream of generation progress.
package api

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/cache"
	"github.com/onco-rwe-platform/internal/database"
	"github.com/onco-rwe-platform/internal/dataset"
	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/epi"
	"github.com/onco-rwe-platform/internal/market"
	"github.com/onco-rwe-platform/internal/middleware"
)

// CohortStore persists generated cohorts durably. Satisfied by
// repository.CohortRepository; nil disables warehouse writes.
type CohortStore interface {
	Save(ctx context.Context, cohort *domain.Cohort) error
	SaveClaims(ctx context.Context, runID string, claims []dataset.ClaimRow) error
}

// Server is the HTTP server for the dashboard API
type Server struct {
	cfg    *domain.Config
	log    *logrus.Logger
	router *gin.Engine
	server *http.Server

	cohorts   *cache.CohortCache
	db        *database.DB         // nil when the warehouse is disabled
	warehouse CohortStore          // nil when the warehouse is disabled
	redis     *cache.HealthChecker // nil when Redis health probing is off

	epiRecords []domain.PrevalenceRecord
	salesRows  []domain.SalesRecord

	metrics *Metrics
	hub     *Hub
}

// Options carries the server's wired dependencies.
type Options struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Cohorts   *cache.CohortCache
	DB        *database.DB
	Warehouse CohortStore
	Redis     *cache.HealthChecker
}

// NewServer builds the router and pre-generates the epidemiology and market
// datasets for the configured windows.
func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Static datasets are sampled once per process from the cohort seed
	// namespace so dashboards see stable series between requests.
	epiRng := rand.New(rand.NewSource(int64(cfg.Epi.StartYear)))
	epiRecords := epi.Generate(epiRng, cfg.Epi.StartYear, cfg.Epi.EndYear)

	salesRng := rand.New(rand.NewSource(int64(cfg.Epi.StartYear) + 1))
	salesRows, err := market.Generate(salesRng, cfg.Market.StartMonth, cfg.Market.EndMonth)
	if err != nil {
		return nil, fmt.Errorf("building market dataset: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(corsMiddleware())

	s := &Server{
		cfg:        cfg,
		log:        opts.Logger,
		router:     router,
		cohorts:    opts.Cohorts,
		db:         opts.DB,
		warehouse:  opts.Warehouse,
		redis:      opts.Redis,
		epiRecords: epiRecords,
		salesRows:  salesRows,
		metrics:    NewMetrics(),
		hub:        NewHub(opts.Logger),
	}

	s.setupRoutes()
	return s, nil
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	s.router.GET("/ws/cohorts", s.handleCohortStream)

	limiter := middleware.NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst)

	// The timeout stays off the websocket route, which is long-lived.
	// A non-positive value disables it.
	v1 := s.router.Group("/api/v1")
	v1.Use(limiter.Handler())
	if s.cfg.Server.RequestTimeout > 0 {
		v1.Use(middleware.RequestTimeout(s.cfg.Server.RequestTimeout))
	}
	{
		v1.POST("/cohorts", s.handleGenerateCohort)
		v1.GET("/cohorts/:id/tables/:name", s.handleCohortTable)
		v1.GET("/epi/prevalence", s.handleEpiSeries(epi.MetricPrevalence))
		v1.GET("/epi/incidence", s.handleEpiSeries(epi.MetricIncidence))
		v1.GET("/epi/mortality", s.handleEpiSeries(epi.MetricMortality))
		v1.GET("/market/sales", s.handleMarketSales)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
