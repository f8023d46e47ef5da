// Package app wires configuration, storage and HTTP into a running relay.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/ErasureRelay/internal/config"
	"github.com/router-for-me/ErasureRelay/internal/datastore"
	"github.com/router-for-me/ErasureRelay/internal/db"
	"github.com/router-for-me/ErasureRelay/internal/erasure"
	relayhttp "github.com/router-for-me/ErasureRelay/internal/http"
	"github.com/router-for-me/ErasureRelay/internal/http/api/admin"
	"github.com/router-for-me/ErasureRelay/internal/http/api/admin/handlers"
	"github.com/router-for-me/ErasureRelay/internal/logging"
	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/ratelimit"
	"github.com/router-for-me/ErasureRelay/internal/retention"
	"github.com/router-for-me/ErasureRelay/internal/security"
	internalsettings "github.com/router-for-me/ErasureRelay/internal/settings"
	"github.com/router-for-me/ErasureRelay/internal/store"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Infof("migrations applied (dialect=%s)", conn.Dialector.Name())
	return nil
}

// ResolveAdminPassword turns the configured admin credential into a bcrypt hash.
// Plaintext passwords must satisfy the password policy. An empty value disables the admin API.
func ResolveAdminPassword(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if security.IsBcryptHash(raw) {
		return raw, nil
	}
	if errPolicy := security.ValidatePasswordPolicy(raw); errPolicy != nil {
		return "", fmt.Errorf("admin password: %w", errPolicy)
	}
	return security.HashPassword(raw)
}

// RunServer boots the relay and blocks until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(conf.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	passwordHash, err := ResolveAdminPassword(conf.Auth.Password)
	if err != nil {
		return err
	}
	allowList, err := security.ParseIPAllowList(conf.Auth.AllowedIP)
	if err != nil {
		return err
	}

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	s := store.NewGormStore(conn)
	m := metrics.New()
	healthChecks := map[string]handlers.HealthChecker{}

	var limiter ratelimit.Limiter
	if conf.Redis.URL != "" {
		redisLimiter, redisClient, errRedis := ratelimit.NewRedisLimiterFromURL(conf.Redis.URL, conf.Auth.MaxLoginAttempts, conf.Auth.LoginWindow())
		if errRedis != nil {
			return errRedis
		}
		defer func() { _ = redisClient.Close() }()
		limiter = redisLimiter
		healthChecks["redis"] = redisHealthCheck(redisClient)
	} else {
		limiter = ratelimit.NewMemoryLimiter(conf.Auth.MaxLoginAttempts, conf.Auth.LoginWindow())
	}

	var gate *admin.Gate
	if passwordHash != "" {
		gate = admin.NewGate(passwordHash, allowList, limiter, m)
	} else {
		log.Warn("no admin password configured; admin API disabled")
	}

	client := datastore.NewClient(conf.DataStore.BaseURL, &http.Client{}, conf.DataStore.RequestTimeout())
	processor := erasure.NewProcessor(s, client, m)
	router := relayhttp.NewRouter(relayhttp.RouterDeps{
		Store:        s,
		Processor:    processor,
		Metrics:      m,
		AdminGate:    gate,
		HealthChecks: healthChecks,
	})

	cleaner := retention.NewErrorLogCleaner(s, func(ctx context.Context) error {
		return internalsettings.RefreshDBConfigSnapshot(ctx, conn)
	}, m, time.Duration(conf.Retention.IntervalMinutes)*time.Minute, conf.Retention.BatchSize)
	cleaner.Start(ctx)

	server := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("starting erasure relay on %s with config=%s", conf.ListenAddr, configPath)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	log.Info("erasure relay stopped")
	return nil
}

func redisHealthCheck(client *redis.Client) handlers.HealthChecker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func closeDB(conn *gorm.DB) {
	if conn == nil {
		return
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database")
	}
}
