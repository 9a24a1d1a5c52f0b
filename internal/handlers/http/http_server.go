package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/app/dto"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/metrics"
)

const (
	msgCoinRequired  = "coin parameter is required"
	msgNoData        = "No data found for the specified coin"
	msgInternalError = "Internal server error"
)

// Server represents an HTTP server with all routes configured
type Server struct {
	stats       useCases.StatsQuery
	broadcaster useCases.Broadcaster
	clock       clock.Clock
	log         *slog.Logger
	router      *gin.Engine
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes. broadcaster
// may be nil, in which case /ws is not mounted.
func NewServer(addr string, stats useCases.StatsQuery, broadcaster useCases.Broadcaster, zapLogger *zap.Logger, log *slog.Logger, clk clock.Clock) *Server {
	router := gin.New()
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(ginzap.CustomRecoveryWithZap(zapLogger, true, func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternalError})
	}))
	router.Use(countRequests)

	s := &Server{
		stats:       stats,
		broadcaster: broadcaster,
		clock:       clk,
		log:         log.With(slog.String("component", "http")),
		router:      router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.registerRoutes()
	return s
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.router.GET("/stats", s.handleStats)
	s.router.GET("/deviation", s.handleDeviation)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.broadcaster != nil {
		s.router.GET("/ws", gin.WrapF(s.broadcaster.Handler()))
	}
}

func countRequests(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

func (s *Server) handleStats(c *gin.Context) {
	coin := c.Query("coin")
	stat, err := s.stats.Latest(c.Request.Context(), coin)
	if err != nil {
		s.writeError(c, "stats", coin, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatsFromModel(stat))
}

func (s *Server) handleDeviation(c *gin.Context) {
	coin := c.Query("coin")
	dev, err := s.stats.Deviation(c.Request.Context(), coin)
	if err != nil {
		s.writeError(c, "deviation", coin, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeviationResponse{Deviation: dev})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "OK", Timestamp: s.clock.Now().UTC()})
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and answered with a generic body.
func (s *Server) writeError(c *gin.Context, op, coin string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgCoinRequired})
	case errors.Is(err, model.ErrNoData):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msgNoData})
	default:
		s.log.Error("query failed", slog.String("op", op), slog.String("coin", coin), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternalError})
	}
}

// Handler returns the router for testing purposes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
