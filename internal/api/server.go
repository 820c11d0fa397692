// Package api exposes the pricing and strategy engine over HTTP for UI
// layers. Every response except /health uses the {code, msg, data} envelope.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"options-lab/internal/config"
	"options-lab/internal/validation"
)

var registerOnce sync.Once

// registerBinding installs the validation package's tags on gin's validator.
func registerBinding() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			validation.Register(v)
		}
	})
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler, logger zerolog.Logger, requestTimeout time.Duration) *gin.Engine {
	registerBinding()

	r := gin.New()
	r.Use(RequestID(logger), AccessLog(), Recovery(), Timeout(requestTimeout))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/option/price", h.OptionPrice)
		v1.POST("/option/payoff", h.OptionPayoff)
		v1.POST("/option/grid", h.OptionGrid)
		v1.POST("/strategy/analyze", h.AnalyzeStrategy)

		v1.GET("/strategies", h.ListStrategies)
		v1.GET("/strategies/:id", h.GetStrategy)
		v1.POST("/strategies/:id/preview", h.PreviewStrategy)
		v1.POST("/strategies/scan", h.ScanStrategies)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Envelope{Code: http.StatusNotFound, Msg: "route not found"})
	})
	return r
}

// Server runs the router on an http.Server with graceful shutdown.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a Server listening on cfg.Addr.
func NewServer(handler http.Handler, cfg config.ServerConfig, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves until ctx is cancelled, then shuts down, giving in-flight
// requests five seconds to finish.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("API server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
