// Package httpapi exposes learning snapshots, refreshes and live scoring over
// HTTP, together with health and Prometheus endpoints.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/v1/venues/:id/learning
//	POST /api/v1/venues/:id/refresh
//	POST /api/v1/venues/:id/score    (body: a Reading)
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
	"github.com/rewired-gh/venuepulse/internal/readingapi"
)

// Service is the learning backend the API serves.
type Service interface {
	Snapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error)
	Refresh(ctx context.Context, venueID string) (*models.LearningSnapshot, error)
	Score(ctx context.Context, venueID string, r models.Reading) (models.ScoreResult, error)
}

// Server is the HTTP API server.
type Server struct {
	echo *echo.Echo
	svc  Service
}

// New creates a Server. A nil gatherer disables /metrics.
func New(svc Service, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	s := &Server{echo: e, svc: svc}

	e.GET("/healthz", s.handleHealth)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api/v1/venues/:id")
	api.GET("/learning", s.handleLearning)
	api.POST("/refresh", s.handleRefresh)
	api.POST("/score", s.handleScore)

	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	logger.Info("HTTP API listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLearning(c echo.Context) error {
	snap, err := s.svc.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleRefresh(c echo.Context) error {
	snap, err := s.svc.Refresh(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleScore(c echo.Context) error {
	venueID := c.Param("id")

	var r models.Reading
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid reading: "+err.Error())
	}
	if r.VenueID != "" && r.VenueID != venueID {
		return echo.NewHTTPError(http.StatusBadRequest, "Reading belongs to venue "+r.VenueID)
	}

	// Scoring without a snapshot yields the neutral baseline, which is
	// still a valid answer.
	result, err := s.svc.Score(c.Request().Context(), venueID, r)
	if err != nil {
		logger.Warn("Score %s: serving baseline: %v", venueID, err)
	}
	return c.JSON(http.StatusOK, result)
}

func errorResponse(err error) error {
	switch {
	case errors.Is(err, readingapi.ErrTransport):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
