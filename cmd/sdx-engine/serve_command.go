package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/alignmentcache"
	"speech-data-explorer/backend/internal/apigateway"
	"speech-data-explorer/backend/internal/auth"
	"speech-data-explorer/backend/internal/config"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/datastore"
	"speech-data-explorer/backend/internal/jobmanagement"
	"speech-data-explorer/backend/internal/logging"
	"speech-data-explorer/backend/internal/objectstore"
	"speech-data-explorer/backend/internal/scoringapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				Development: cfg.Logging.Development,
			})
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if exists {
				logger.Info("configuration loaded", zap.String("path", path))
			} else {
				logger.Info("no configuration file; using defaults and environment")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := datastore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	var archive jobmanagement.ReportArchive
	if cfg.ObjectStore.Enabled {
		mc, err := objectstore.NewMinioClient(objectstore.Options{
			Endpoint:        cfg.ObjectStore.Endpoint,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			Bucket:          cfg.ObjectStore.Bucket,
			UseSSL:          cfg.ObjectStore.UseSSL,
		}, logger.Named("objectstore"))
		if err != nil {
			return err
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			return err
		}
		archive = mc
		logger.Info("report archive enabled", zap.String("bucket", mc.Bucket()))
	}

	var align scorer.AlignFunc
	if cfg.Engine.CacheSize > 0 {
		cache, err := alignmentcache.New(cfg.Engine.CacheSize)
		if err != nil {
			return err
		}
		align = cache.Align
	}

	gin.SetMode(gin.ReleaseMode)
	router := apigateway.SetupRouter(apigateway.Dependencies{
		Auth: auth.NewAuthenticator(auth.Credentials{
			Admin:      auth.AdminUser{Username: cfg.Auth.AdminUsername, Password: cfg.Auth.AdminPassword},
			APIToken:   cfg.Auth.APIToken,
			SessionTTL: time.Duration(cfg.Auth.SessionTTLHours) * time.Hour,
		}, logger.Named("auth")),
		Scoring: scoringapi.NewHandlers(scoringapi.Options{
			CharGranularity:      cfg.CharGranularity(),
			DefaultNormalization: cfg.Engine.Normalization,
			Aligner:              align,
			Logger:               logger.Named("scoring"),
		}),
		Jobs: jobmanagement.NewHandlers(jobmanagement.NewJobService(store, archive, jobmanagement.ServiceOptions{
			Workers:              cfg.Engine.Workers,
			CharGranularity:      cfg.CharGranularity(),
			DefaultNormalization: cfg.Engine.Normalization,
			Aligner:              align,
			MaxUtterances:        cfg.Engine.MaxBatchUtterances,
			Logger:               logger.Named("jobs"),
		}), logger.Named("jobs")),
		Health: store,
		Logger: logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("database", cfg.Database.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
