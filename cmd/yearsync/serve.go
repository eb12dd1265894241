package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MarcoPoloResearchLab/yearsync/internal/auth"
	"github.com/MarcoPoloResearchLab/yearsync/internal/cloudsync"
	"github.com/MarcoPoloResearchLab/yearsync/internal/config"
	"github.com/MarcoPoloResearchLab/yearsync/internal/database"
	"github.com/MarcoPoloResearchLab/yearsync/internal/logging"
	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
	"github.com/MarcoPoloResearchLab/yearsync/internal/remote"
	"github.com/MarcoPoloResearchLab/yearsync/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	stores, err := preferences.NewStores(preferences.StoresConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: preferences.NewUUIDProvider(),
		Logger:     logger.Named("preferences"),
	})
	if err != nil {
		return err
	}

	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grants := auth.NewGrantStore(auth.GrantStoreConfig{Logger: logger.Named("grants")})
	remoteClient, permission, err := buildRemote(signalCtx, appConfig, grants, logger.Named("remote"))
	if err != nil {
		return err
	}

	connectivity := cloudsync.NewConnectivityMonitor(true)
	orchestrator, err := cloudsync.NewOrchestrator(cloudsync.Config{
		Stores:       stores,
		Remote:       remoteClient,
		Permission:   permission,
		Connectivity: connectivity,
		Debounce:     appConfig.SyncDebounce,
		Logger:       logger.Named("cloudsync"),
	})
	if err != nil {
		return err
	}
	if err := orchestrator.Init(signalCtx); err != nil {
		return err
	}
	defer orchestrator.Teardown()

	statusStream := server.NewStatusBroadcaster()
	unsubscribe := orchestrator.OnStatusChange(statusStream.Publish)
	defer unsubscribe()

	dependencies := server.Dependencies{
		Sessions:       sessions,
		Sync:           orchestrator,
		Stores:         stores,
		Connectivity:   connectivity,
		Status:         statusStream,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger.Named("http"),
	}
	if appConfig.RemoteProvider == config.ProviderDrive {
		dependencies.Grants = grants
	}
	handler, err := server.NewHTTPHandler(dependencies)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("remote_provider", appConfig.RemoteProvider),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		outcome := orchestrator.LoadFromCloud(groupCtx)
		logger.Info("startup cloud load finished",
			zap.String("status", string(outcome.Status)),
			zap.String("reason", string(outcome.Reason)),
		)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildRemote selects the document provider. Drive access follows the frontend's grant;
// S3 uses static or ambient credentials, so permission is always present.
func buildRemote(ctx context.Context, appConfig config.AppConfig, grants *auth.GrantStore, logger *zap.Logger) (remote.Client, cloudsync.PermissionSource, error) {
	retry := remote.RetryConfig{
		MaxAttempts: appConfig.RemoteMaxAttempts,
		OnRetry: func(attempt int, err error) {
			logger.Warn("remote call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("status", remote.StatusOf(err)),
				zap.Error(err),
			)
		},
	}

	switch appConfig.RemoteProvider {
	case config.ProviderDrive:
		client, err := remote.NewDriveClient(remote.DriveConfig{
			TokenSource:  grants,
			BaseURL:      appConfig.DriveBaseURL,
			DocumentName: appConfig.DocumentName,
			Retry:        retry,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, grants, nil
	case config.ProviderS3:
		client, err := remote.NewS3Client(ctx, remote.S3Config{
			Bucket:          appConfig.S3Bucket,
			Region:          appConfig.S3Region,
			Endpoint:        appConfig.S3Endpoint,
			Prefix:          appConfig.S3Prefix,
			UsePathStyle:    appConfig.S3UsePathStyle,
			AccessKeyID:     appConfig.S3AccessKeyID,
			SecretAccessKey: appConfig.S3SecretAccessKey,
			DocumentName:    appConfig.DocumentName,
			Retry:           retry,
			Logger:          logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, cloudsync.PermissionFunc(func() bool { return true }), nil
	default:
		return nil, nil, fmt.Errorf("unsupported remote provider %q", appConfig.RemoteProvider)
	}
}
