package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/config"
	"github.com/alcms-dev/alcms-server/internal/db"
	internalhttp "github.com/alcms-dev/alcms-server/internal/http"
	"github.com/alcms-dev/alcms-server/internal/http/api/admin"
	"github.com/alcms-dev/alcms-server/internal/http/api/front"
	"github.com/alcms-dev/alcms-server/internal/logging"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/settings"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	appCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := db.Open(appCfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("database migrated")
	return nil
}

// RunServer boots the HTTP API and the commission dispatcher and blocks
// until ctx is cancelled or either of them fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser := logging.Setup(appCfg.Log)
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(appCfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Reload(ctx, conn); errRefresh != nil {
		return fmt.Errorf("app: load settings: %w", errRefresh)
	}
	if errSeed := SeedDefaults(ctx, conn, bootstrapAdminFromEnv()); errSeed != nil {
		return errSeed
	}

	rdb, err := internalhttp.NewRedisClient(appCfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis not configured, redeem rate limiting disabled")
	}

	setGinMode(appCfg.Mode)
	engine, dispatcher, err := NewEngine(conn, rdb, appCfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("starting alcms server on %s (config=%s, dialect=%s)", srv.Addr, configPath, conn.Dialector.Name())
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", errServe)
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// NewEngine wires stores and services over conn and returns the router
// together with the commission dispatcher it shares with the redeem path.
// rdb may be nil.
func NewEngine(conn *gorm.DB, rdb *redis.Client, cfg config.Config) (*gin.Engine, *referral.Dispatcher, error) {
	levels, err := vip.NewLevels(conn)
	if err != nil {
		return nil, nil, err
	}
	referrals := referral.NewService(conn)
	dispatcher := referral.NewDispatcher(conn, referrals, cfg.CommissionDispatchPeriod)
	cardKeys := cardkey.NewStore(conn, levels)
	redeemer := cardkey.NewRedeemer(conn, dispatcher)
	pointsSvc := points.NewService(conn)

	engine := gin.New()
	engine.Use(gin.Recovery(), internalhttp.RequestLogger())

	admin.RegisterAdminRoutes(engine, admin.Services{
		DB:         conn,
		JWT:        cfg.JWT,
		CardKeys:   cardKeys,
		Points:     pointsSvc,
		Levels:     levels,
		Dispatcher: dispatcher,
	})
	front.RegisterFrontRoutes(engine, front.Services{
		DB:        conn,
		JWT:       cfg.JWT,
		Redeem:    cfg.Redeem,
		Redis:     rdb,
		CardKeys:  cardKeys,
		Redeemer:  redeemer,
		Points:    pointsSvc,
		Referrals: referrals,
		Levels:    levels,
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine, dispatcher, nil
}

func setGinMode(mode string) {
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(mode)
	default:
		log.Warnf("unknown gin mode %q, using release", mode)
		gin.SetMode(gin.ReleaseMode)
	}
}

func closeDB(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
