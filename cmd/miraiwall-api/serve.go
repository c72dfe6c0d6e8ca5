package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/config"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/content"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/database"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/server"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const metricsNamespace = "miraiwall"

type appRuntime struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func (r appRuntime) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func openRuntime() (appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return appRuntime{}, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return appRuntime{}, err
	}

	db, err := database.Open(appConfig.Database(), logger)
	if err != nil {
		_ = logger.Sync()
		return appRuntime{}, err
	}

	return appRuntime{config: appConfig, logger: logger, db: db}, nil
}

func (r appRuntime) keysService() (*keys.Service, error) {
	return keys.NewService(keys.ServiceConfig{
		Database:   r.db,
		IDProvider: ids.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     r.logger,
	})
}

func runServer(ctx context.Context) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	appConfig := rt.config
	logger := rt.logger

	demoKeys, err := keys.NewDemoSet(appConfig.DemoKeys)
	if err != nil {
		return err
	}

	tilesService, err := tiles.NewService(tiles.ServiceConfig{
		Database:       rt.db,
		Clock:          time.Now,
		IDProvider:     ids.NewUUIDProvider(),
		Content:        content.NewGenerator(nil),
		DemoKeys:       demoKeys,
		CapsuleMinLead: appConfig.CapsuleMinLead,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	keysService, err := rt.keysService()
	if err != nil {
		return err
	}

	var adminAuthorizer server.AdminAuthorizer
	if appConfig.AdminEnabled() {
		validator, err := auth.NewAdminValidator(auth.AdminValidatorConfig{
			SigningSecret: []byte(appConfig.AdminSigningSecret),
			Issuer:        appConfig.AdminIssuer,
		})
		if err != nil {
			return err
		}
		adminAuthorizer = validator
	} else {
		logger.Info("admin routes disabled: no signing secret configured")
	}

	collector := metrics.NewCollector(metricsNamespace)
	dispatcher := server.NewRealtimeDispatcher()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TilesService:    tilesService,
		KeysService:     keysService,
		AdminAuthorizer: adminAuthorizer,
		Realtime:        dispatcher,
		Metrics:         collector,
		Logger:          logger,
		AllowedOrigins:  appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	sweeper, err := tiles.NewCapsuleSweeper(tiles.CapsuleSweeperConfig{
		Service:  tilesService,
		Interval: appConfig.CapsuleSweepInterval,
		Logger:   logger,
		OnUnlocked: func(views []tiles.CapsuleView) {
			dispatcher.PublishCapsulesUnlocked(views)
			collector.RecordCapsulesUnlocked(len(views))
		},
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		if err := sweeper.Run(signalCtx); err != nil {
			logger.Error("capsule sweeper stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.Database().ResolveDriver()),
			zap.Int("demo_keys", demoKeys.Len()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		<-sweeperDone
		return err
	case err := <-errCh:
		stop()
		<-sweeperDone
		return err
	}
}
