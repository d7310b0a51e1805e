// Package api is the engine's minimal read-only HTTP surface: a health
// check and planning-trace lookups, deliberately small — just enough to
// operate the engine, not a general-purpose external API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hausbrain/core/pkg/tracestore"
)

// Server wraps the gin router and its dependencies.
type Server struct {
	router *gin.Engine
	traces *tracestore.Store
	pool   healthPinger
}

// healthPinger is the narrow slice of *pgxpool.Pool the health handler
// needs, so tests can substitute a fake without a live database.
type healthPinger interface {
	Ping(ctx context.Context) error
}

// New builds the router and registers routes. mode is gin's run mode
// ("debug"/"release"/"test"), read from GIN_MODE.
func New(mode string, pool healthPinger, traces *tracestore.Store) *Server {
	gin.SetMode(mode)
	s := &Server{router: gin.Default(), pool: pool, traces: traces}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server, blocking until it exits or ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) routes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/traces/latest", s.latestTraceHandler)
	s.router.GET("/traces/:id", s.traceByIDHandler)
}
