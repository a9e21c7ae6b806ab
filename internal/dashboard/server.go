// Package dashboard serves the extraction control API: start, pause,
// resume, stop and clear commands, the current state, a server-sent event
// stream of session signals, and archive downloads.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/models"
	"github.com/zulandar/skimmer/internal/session"
)

// Controller is the session surface the API drives.
type Controller interface {
	Start(ctx context.Context, settings session.Settings) error
	Pause() error
	Resume() error
	Stop(ctx context.Context) error
	ClearData(ctx context.Context) error
	State() session.State
	Store() *archive.Store
}

// RunLister lists past runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]models.Run, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Session Controller
	Hub     *events.Hub
	Runs    RunLister
	// Defaults fill the settings of a start request that omits them.
	Defaults session.Settings
	Port     int
	Out      io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Session == nil {
		return fmt.Errorf("dashboard: session is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8765
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("dashboard: shutdown")
		}
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
