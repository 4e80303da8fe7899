package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ballot/internal/election"
	"github.com/roach88/ballot/internal/handler"
	"github.com/roach88/ballot/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long: `Serve the election operations as JSON over HTTP, with Prometheus metrics
at /metrics and a health check at /healthz. Stops gracefully on SIGINT or
SIGTERM.

Example:
  ballot serve --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default $BALLOT_LISTEN or :8080)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, voteRate := opts.Listen, 5.0
	if cfg := opts.Config; cfg != nil {
		if addr == "" {
			addr = cfg.ListenAddr
		}
		voteRate = cfg.VoteRate
	}
	if addr == "" {
		addr = ":8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := openApp(ctx, opts.RootOptions, election.WithMetrics(metrics.NewCollector(reg)))
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := handler.NewRateLimiter(voteRate, 10*time.Minute)
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Service:     a.svc,
		RateLimiter: limiter,
		Gatherer:    reg,
		Health:      func(ctx context.Context) error { return a.store.DB().PingContext(ctx) },
		Logger:      opts.Logger,
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "server error", err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("server stopped gracefully")
	}
	return nil
}
