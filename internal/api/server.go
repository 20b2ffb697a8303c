// Package api exposes the timetable service over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kron12345/coreplanx/internal/timetable"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service *timetable.Service
	Port    int
	Out     io.Writer
}

// NewRouter returns a gin engine with every API route registered.
func NewRouter(svc *timetable.Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, svc)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("api: service is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts.Service),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Timetable API listening on http://localhost:%d/api/v1\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
