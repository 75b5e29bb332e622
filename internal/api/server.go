// Package api exposes the eligibility engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/middleware"
	"github.com/trial-eligibility-engine/internal/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	shutdownTimeout = 30 * time.Second
)

// Version is reported by the health endpoint.
var Version = "dev"

// Server represents the HTTP server
type Server struct {
	cfg     domain.ServerConfig
	service *service.EligibilityService
	model   *doid.Model
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance. model may be nil, in which
// case the ontology endpoints are not registered.
func NewServer(cfg domain.ServerConfig, svc *service.EligibilityService, model *doid.Model, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Set Gin mode based on log level
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))

	s := &Server{
		cfg:     cfg,
		service: svc,
		model:   model,
		logger:  logger,
		router:  router,
	}
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/rules", s.handleListRules)
		v1.POST("/rules/:name/evaluate", s.handleEvaluateRule)
		v1.POST("/evaluations", s.handleEvaluate)
		v1.GET("/patients/:id/outcomes", s.handleListOutcomes)
		if s.model != nil {
			v1.GET("/ontology/doids/:code", s.handleGetDoid)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"rules":     len(s.service.Rules()),
	})
}

func (s *Server) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.service.Rules()})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var record domain.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.AbortWithError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	report, err := s.service.EvaluateAll(c.Request.Context(), record)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleEvaluateRule(c *gin.Context) {
	var record domain.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.AbortWithError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}
	if err := record.Validate(); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	result, err := s.service.EvaluateRule(c.Request.Context(), c.Param("name"), record)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListOutcomes(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	outcomes, err := s.service.Outcomes(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id": c.Param("id"),
		"outcomes":   outcomes,
		"limit":      limit,
		"offset":     offset,
	})
}

func (s *Server) handleGetDoid(c *gin.Context) {
	code := c.Param("code")
	term, ok := s.model.Term(code)
	if !ok {
		middleware.AbortWithError(c, fmt.Errorf("%w: doid %s", domain.ErrNotFound, code))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"doid":      code,
		"term":      term,
		"parents":   s.model.Graph().Parents(code),
		"ancestors": s.model.Ancestors(code).Sorted(),
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer", raw)
	}
	return v, nil
}
