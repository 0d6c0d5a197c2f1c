package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/psantana5/costime/internal/app"
	"github.com/psantana5/costime/pkg/api"
	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/ratelimit"
	"github.com/psantana5/costime/pkg/shutdown"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stopwatch over HTTP",
	Long: `Starts an HTTP API sharing one stopwatch between clients:

  POST /sessions/{label}        start, returns {"label","session"}
  POST /sessions/{label}/end    end, body {"session": <ms>}
  POST /steps                   reset the step cursor
  POST /steps/{label}           mark a step
  GET  /timings                 history summaries
  GET  /metrics                 Prometheus metrics
  GET  /health                  liveness`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :9095)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := cfg.NewLogger("serve")
	if err != nil {
		return err
	}
	defer logger.Close()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	costime.SetDefault(a.Stopwatch)

	var opts []api.Option
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics.Handler()))
	}
	if cfg.Serve.RateLimitRPS > 0 {
		limiter := ratelimit.NewLimiter(cfg.Serve.RateLimitRPS, cfg.Serve.RateLimitBurst)
		opts = append(opts, api.WithRateLimit(limiter.Middleware(ratelimit.IPKeyFunc)))
	}

	router := mux.NewRouter()
	router.Use(a.Tracer.Middleware)
	api.NewHandler(a.Stopwatch, a.Store, logger, opts...).RegisterRoutes(router)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	mgr := shutdown.New(10*time.Second, logger)
	mgr.Register("app", a.Close)
	mgr.Register("http", srv.Shutdown)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	shutdownErr := mgr.Wait(ctx)

	select {
	case err := <-errCh:
		return err
	default:
		return shutdownErr
	}
}
