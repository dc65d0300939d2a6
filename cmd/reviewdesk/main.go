// Command reviewdesk serves the compliance-review ingestion API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qfcreview/reviewdesk/internal/analysis"
	"github.com/qfcreview/reviewdesk/internal/api"
	"github.com/qfcreview/reviewdesk/internal/archive"
	"github.com/qfcreview/reviewdesk/internal/config"
	"github.com/qfcreview/reviewdesk/internal/dashboard"
	"github.com/qfcreview/reviewdesk/internal/database"
	"github.com/qfcreview/reviewdesk/internal/ingest"
	"github.com/qfcreview/reviewdesk/internal/logger"
	"github.com/qfcreview/reviewdesk/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	generate := flag.Bool("generate-config", false, "write a sample configuration file and exit")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" && !isFlagSet("config") {
		*configPath = v
	}

	if *generate {
		if err := config.GenerateSample(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	backend, err := database.Open(cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()
	log.Info().Str("driver", cfg.Storage.Driver).Msg("Storage ready")

	st := store.New(backend, store.Options{AuditLimit: cfg.Storage.AuditLimit})

	recorders := []ingest.FailureRecorder{st}
	if cfg.Archive.Enabled {
		arc, err := archive.NewMinioArchive(ctx, archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to init failure archive: %w", err)
		}
		recorders = append(recorders, arc)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Failure archive enabled")
	}

	counter := &ingest.Counter{}
	pipeline := ingest.New(st, ingest.Options{Recorders: recorders, Observer: counter.Observe})
	svc := dashboard.NewService(pipeline, st)

	var analyzer api.Analyzer
	if cfg.Analysis.Endpoint != "" {
		analyzer = analysis.NewClient(cfg.Analysis.Endpoint, cfg.Analysis.Timeout)
	} else {
		log.Warn().Msg("No analysis endpoint configured - PDF upload disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(cfg, svc, analyzer, counter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
