package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tally/internal/aggregate"
	"github.com/mmynk/tally/internal/auth"
	"github.com/mmynk/tally/internal/config"
	"github.com/mmynk/tally/internal/jobs"
	"github.com/mmynk/tally/internal/middleware"
	"github.com/mmynk/tally/internal/service"
	"github.com/mmynk/tally/internal/storage/sqlite"
	"github.com/mmynk/tally/internal/trigger"
	"github.com/mmynk/tally/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $CONFIG_FILE)")
	runJobs := flag.Bool("run-jobs", false, "run the recurrence and balance jobs once and exit")
	flag.Parse()

	if err := run(*configPath, *runJobs); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, runJobsOnce bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Setup("")
		return err
	}
	logger := logging.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Database.Path)

	// Triggers must be attached before anything writes.
	dispatcher := trigger.New(context.WithoutCancel(ctx), logger)
	aggregate.New(store, logger).Register(dispatcher)
	store.Subscribe(dispatcher.Publish)

	runner := jobs.NewRunner(store, logger)
	if runJobsOnce {
		_, err := runner.RunOnce(ctx)
		dispatcher.Wait()
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	scheduler, err := jobs.NewScheduler(ctx, runner, cfg.Jobs.Schedule, loc, logger)
	if err != nil {
		return err
	}

	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == config.DefaultJWTSecret {
		logger.Warn("Using the development JWT secret; set JWT_SECRET in production")
	}
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, ttl)

	rpcLogging := middleware.LoggingInterceptor(logger)
	authenticated := connect.WithInterceptors(middleware.RequireAuth(jwtManager), rpcLogging)
	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), rpcLogging)

	mux := http.NewServeMux()
	mux.Handle(service.NewGroupServiceHandler(service.NewGroupService(store, store, logger), authenticated))
	mux.Handle(service.NewLedgerServiceHandler(service.NewLedgerService(store, logger), authenticated))
	mux.Handle(service.NewAuthServiceHandler(
		service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, store, logger),
		public,
	))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// h2c serves HTTP/2 without TLS for gRPC-style clients.
	handler := h2c.NewHandler(middleware.HTTPLogging(logger, middleware.CORS(mux)), &http2.Server{})
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for a running job")
	}
	dispatcher.Wait()
	return nil
}
