package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orrn/wishprint/internal/api/handlers"
	"github.com/orrn/wishprint/internal/api/middleware"
	"github.com/orrn/wishprint/internal/config"
)

type Deps struct {
	Tracker  handlers.StatusSource
	Queue    handlers.QueueInspector
	Events   handlers.EventStore
	Counters handlers.CounterStore
	Printer  handlers.PrinterInspector
	Auth     *middleware.AuthMiddleware
}

func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger), middleware.CORS())

	r.GET("/healthz", handlers.Health)

	orders := handlers.NewOrderHandler(deps.Tracker, deps.Events)
	stats := handlers.NewStatsHandler(deps.Tracker, deps.Queue, deps.Counters, deps.Printer)

	protected := r.Group("/")
	if deps.Auth != nil {
		auth := r.Group("/auth")
		auth.POST("/login", deps.Auth.LoginHandler)
		auth.POST("/logout", deps.Auth.LogoutHandler)
		auth.GET("/status", deps.Auth.StatusHandler)

		protected.Use(deps.Auth.RequireAuth())
	}
	protected.GET("/orders", orders.ListOrders)
	protected.GET("/events", orders.ListEvents)
	protected.GET("/stats", stats.GetStats)

	return r
}

type Server struct {
	http   *http.Server
	logger *zap.Logger
}

func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen errors other than a clean shutdown
// are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
