package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillmap/api"
	"skillmap/api/middleware"
	"skillmap/api/services"
	"skillmap/pkg/metrics"
	"skillmap/pkg/seed"
	embeddednats "skillmap/pkg/services/embedded-nats"
	"skillmap/pkg/services/workers"
)

var (
	serveSeedFile   string
	serveWorkerPool int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the embedded NATS server and audit worker",
	Example: `  skillmap serve
  skillmap serve --seed db/seed.yaml
  SKILLMAP_SERVER_PORT=9090 skillmap serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveSeedFile, "seed", "", "apply a seed file before serving")
	serveCmd.Flags().IntVar(&serveWorkerPool, "worker-pool", 4, "goroutines per event worker")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	m := metrics.New(a.cfg.Metrics.Prefix)
	checks := map[string]api.HealthCheck{"database": store.Health}

	var (
		pub  services.EventPublisher
		nats *embeddednats.EmbeddedNATS
	)
	if a.cfg.NATS.Enabled {
		nats, err = embeddednats.New(embeddednats.FromConfig(a.cfg.NATS), a.log.Named("nats"))
		if err != nil {
			return fmt.Errorf("failed to create embedded NATS: %w", err)
		}
		if err := nats.Start(ctx); err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		if err := nats.CreateSkillMapStreams(); err != nil {
			return fmt.Errorf("failed to create streams: %w", err)
		}
		pub = nats
		checks["nats"] = func(context.Context) error { return nats.HealthCheck() }
	} else {
		a.log.Warn("NATS disabled, domain events and audit logs are not recorded")
	}

	svc := services.New(store.GetDB(), a.tokens(), pub, m, a.log)

	if serveSeedFile != "" {
		f, err := seed.Load(serveSeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(ctx, svc, f, a.log.Named("seed")); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	var manager *workers.Manager
	if nats != nil {
		manager, err = workers.NewManager(nats, svc.Audit, serveWorkerPool, a.log.Named("workers"), m)
		if err != nil {
			return fmt.Errorf("failed to create worker manager: %w", err)
		}
		if err := manager.Start(); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
	}

	mux := http.NewServeMux()
	handlers := api.NewHandlers(svc, m, version, checks)
	handlers.RegisterRoutes(mux)

	handler := middleware.CORS(a.cfg.Server.CORSOrigin)(
		middleware.RequestLogger(a.log.Named("http"))(
			middleware.Metrics(m, mux)(mux)))

	server := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting SkillMap API server", zap.String("addr", server.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
	case serveErr = <-errCh:
		a.log.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to shutdown server gracefully", zap.Error(err))
	}

	svc.Events.Wait()

	if manager != nil {
		if err := manager.Stop(); err != nil {
			a.log.Warn("failed to stop workers", zap.Error(err))
		}
	}

	if nats != nil {
		if err := nats.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("failed to shutdown NATS", zap.Error(err))
		}
	}

	a.log.Info("server shutdown complete")
	return serveErr
}
