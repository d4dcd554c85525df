package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/api"
	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/app/maintenance"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/monitoring"
	"github.com/charlesng35/hrconsole/internal/monitoring/checks"
	"github.com/charlesng35/hrconsole/internal/security"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

const probeTimeout = 3 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Redis       *cache.RedisStore
	Store       cache.Store
	SessionSvc  *iauth.SessionService
	AuditSvc    *services.AuditService
	Tracker     *monitoring.JobTracker
	Health      *monitoring.HealthManager
	Maintenance *maintenance.Scheduler
	Router      *gin.Engine
	Admin       *models.User
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Store = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = stack.Store
	stack.SessionSvc, err = iauth.NewSessionService(stack.DB, jwtSvc, sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	stack.AuditSvc, err = services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	stack.Admin, err = ensureBootstrapAdmin(ctx, stack.DB, stack.AuditSvc, cfg.Auth.Bootstrap)
	if err != nil {
		return nil, err
	}
	if stack.Admin != nil {
		log.Info("bootstrap administrator created", zap.String("username", stack.Admin.Username))
	}
	logPosture(security.NewAuditService(stack.DB, cfg).Run(ctx), log)

	stack.Tracker = monitoring.NewJobTracker()
	if cfg.Maintenance.Enabled {
		stack.Maintenance = maintenance.NewScheduler(maintenanceJobs(cfg.Maintenance, stack.SessionSvc, stack.AuditSvc, dbStore),
			maintenance.WithTracker(stack.Tracker))
		if err := stack.Maintenance.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, probeTimeout))
	stack.Health.RegisterReadiness(checks.Catalog(stack.DB, probeTimeout))
	if stack.Redis != nil {
		stack.Health.RegisterReadiness(checks.Redis(stack.Redis, probeTimeout))
	}
	stack.Health.RegisterReadiness(checks.Maintenance(stack.Tracker, 0))

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		JWT:       jwtSvc,
		Sessions:  stack.SessionSvc,
		RateStore: stack.Store,
		Catalog:   services.NewCatalogCache(stack.Store, cfg.Cache.CatalogTTL),
		Health:    stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func maintenanceJobs(cfg app.MaintenanceConfig, sessions maintenance.SessionPurger, audit maintenance.AuditPruner, store maintenance.CacheSweeper) []maintenance.Job {
	return []maintenance.Job{
		maintenance.SessionJob(sessions, cfg.SessionSchedule),
		maintenance.AuditJob(audit, cfg.AuditRetentionDays, cfg.AuditSchedule),
		maintenance.CacheJob(store, time.Now, cfg.CacheSchedule),
	}
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Maintenance != nil {
		stopCtx := s.Maintenance.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// logPosture reports every check that did not pass. Failures never stop the server.
func logPosture(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
	log.Info("security audit complete",
		zap.Int("pass", result.Summary[string(security.StatusPass)]),
		zap.Int("warn", result.Summary[string(security.StatusWarn)]),
		zap.Int("fail", result.Summary[string(security.StatusFail)]),
	)
}

// ensureBootstrapAdmin creates the configured root account holding the Administrator role when the
// database has no root account yet.
func ensureBootstrapAdmin(ctx context.Context, db *gorm.DB, audit *services.AuditService, cfg app.BootstrapSettings) (*models.User, error) {
	if strings.TrimSpace(cfg.Username) == "" || cfg.Password == "" {
		return nil, nil
	}

	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		email = strings.TrimSpace(cfg.Username) + "@hrconsole.local"
	}

	admin, err := users.EnsureBootstrapAdmin(ctx, services.BootstrapAdminInput{
		Username: cfg.Username,
		Email:    email,
		Password: cfg.Password,
	}, database.AdminRoleName)
	if err != nil {
		return nil, fmt.Errorf("bootstrap administrator: %w", err)
	}
	return admin, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = auth.Password
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
