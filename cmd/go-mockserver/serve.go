package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prasenjit/go-mockserver/internal/api"
	"github.com/prasenjit/go-mockserver/internal/config"
	"github.com/prasenjit/go-mockserver/internal/metrics"
	"github.com/prasenjit/go-mockserver/internal/proxy"
	"github.com/prasenjit/go-mockserver/internal/registry"
	"github.com/prasenjit/go-mockserver/internal/requestlog"
	"github.com/prasenjit/go-mockserver/internal/stats"
	"github.com/prasenjit/go-mockserver/internal/storage"
	"github.com/prasenjit/go-mockserver/internal/telemetry"
	"github.com/prasenjit/go-mockserver/internal/template"
	"github.com/prasenjit/go-mockserver/internal/tlsutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Starts the mock server.

The server will:
  - Load registered mocks from the configured storage
  - Expose the admin API under server.apiPrefix (default /api)
  - Expose Prometheus metrics at metrics.path (default /metrics)
  - Answer every other request from the registered mocks

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Override server port")
	serveCmd.Flags().Bool("tls", false, "Enable TLS (overrides config)")

	// Bind flags to viper
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.tls.enabled", serveCmd.Flags().Lookup("tls"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	// Resolve relative storage path to absolute
	if cfg.Storage.Path != "" && !filepath.IsAbs(cfg.Storage.Path) {
		if abs, err := filepath.Abs(cfg.Storage.Path); err == nil {
			cfg.Storage.Path = abs
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage ready", "storage", store.Info())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	reg := registry.New(store, logger)
	reg.OnChange(m.SetMockCount)
	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("failed to load mocks: %w", err)
	}

	var persist requestlog.Appender
	if cfg.Analytics.Persist {
		persist = store
	}
	requests := requestlog.NewService(requestlog.Options{
		MaxRecords: cfg.Analytics.MaxRecords,
		Persist:    persist,
		Logger:     logger,
	})
	defer requests.Close()

	collector := stats.NewCollector()
	generator := template.NewGenerator(
		template.WithSeed(cfg.Templating.Seed),
		template.WithLogger(logger),
	)

	engineOpts := proxy.Options{
		Registry:       reg,
		Generator:      generator,
		Metrics:        m,
		Logger:         logger,
		LogDevRequests: cfg.Logging.DevRequests,
	}
	if cfg.Analytics.Enabled {
		engineOpts.Stats = collector
		engineOpts.Requests = requests
	}
	engine := proxy.NewEngine(engineOpts)

	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Registry:  reg,
		Engine:    engine,
		Generator: generator,
		Stats:     collector,
		Requests:  requests,
		Metrics:   m,
		Store:     store,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Server.TLS.Enabled {
		source := tlsutil.NewSource(cfg.Server.TLS, cfg.CertStorePath(), logger)
		tlsConfig, err := source.ServerConfig()
		if err != nil {
			return fmt.Errorf("failed to get TLS certificate: %w", err)
		}
		server.TLSConfig = tlsConfig
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listen(server, cfg, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if terr := shutdownTracing(shutdownCtx); terr != nil {
			logger.Warn("failed to flush traces", "error", terr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// listen serves until Shutdown is called
func listen(server *http.Server, cfg *config.Config, logger *slog.Logger) error {
	scheme := "http"
	if server.TLSConfig != nil {
		scheme = "https"
	}
	logger.Info("starting mock server",
		"addr", server.Addr,
		"admin", fmt.Sprintf("%s://%s%s", scheme, server.Addr, cfg.Server.APIPrefix),
	)

	var err error
	if server.TLSConfig != nil {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
