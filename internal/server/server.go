package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chrisdamba/menumanager/internal/api"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/tree"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// MenuService is what the HTTP layer needs from the mutation engine.
type MenuService interface {
	Fetch(ctx context.Context) (*models.Snapshot, error)
	Apply(ctx context.Context, m tree.Mutation) (tree.Result, error)
}

type Server struct {
	svc    MenuService
	cfg    models.ServerConfig
	logger *slog.Logger
	router *gin.Engine
}

func New(svc MenuService, cfg models.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger(logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET(api.PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.cfg.MetricsEnabled {
		s.router.GET(api.PathMetrics, gin.WrapH(promhttp.Handler()))
	}

	s.router.GET(api.PathGetData, s.getData)
	s.router.GET(api.PathSearch, s.searchData)
	s.router.GET(api.PathLocate, s.locateItem)
	s.router.PUT(api.PathUpdateData, s.mutation(tree.OpUpdate, "Data updated"))
	s.router.POST(api.PathAddData, s.mutation(tree.OpAdd, "Data added"))
	s.router.DELETE(api.PathDeleteData, s.mutation(tree.OpDelete, "Data deleted"))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("menu server listening", "addr", s.cfg.Addr, "structured_errors", s.cfg.StructuredErrors)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down menu server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
