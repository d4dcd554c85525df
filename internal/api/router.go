package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/app"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/auth/providers"
	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/handlers"
	"github.com/charlesng35/hrconsole/internal/middleware"
	"github.com/charlesng35/hrconsole/internal/monitoring"
	"github.com/charlesng35/hrconsole/internal/permissions"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/metrics"
)

// Dependencies carries the long-lived services the router mounts. RateStore, Catalog and Health are
// optional: the limiter falls back to process memory, the catalogue reads go straight to the database
// and the health endpoints report a bare "up".
type Dependencies struct {
	DB        *gorm.DB
	Config    *app.Config
	JWT       *iauth.JWTService
	Sessions  *iauth.SessionService
	RateStore cache.Store
	Catalog   *services.CatalogCache
	Health    *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers the console routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Server.CORS.Origins...),
	)
	if limit := cfg.Server.RateLimit; limit.Requests > 0 && limit.Window > 0 {
		r.Use(middleware.RateLimit(deps.RateStore, limit.Requests, limit.Window))
	}

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(metrics.Handler()))
	}

	auditSvc, err := services.NewAuditService(deps.DB)
	if err != nil {
		return nil, err
	}
	checker, err := permissions.NewChecker(deps.DB)
	if err != nil {
		return nil, err
	}
	permSvc, err := services.NewPermissionService(deps.DB, auditSvc, deps.Catalog)
	if err != nil {
		return nil, err
	}
	menuCfg, err := cfg.Menus.MenuServiceConfig()
	if err != nil {
		return nil, err
	}
	menuSvc, err := services.NewMenuService(deps.DB, checker, auditSvc, deps.Catalog, menuCfg)
	if err != nil {
		return nil, err
	}
	provider, err := providers.NewLocalProvider(deps.DB, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT, deps.Sessions))

	registerAuthRoutes(r, api, handlers.NewAuthHandler(provider, deps.Sessions, checker))
	registerMenuRoutes(api, handlers.NewMenuHandler(menuSvc), checker)
	registerRoleRoutes(api, handlers.NewRoleHandler(permSvc), checker)
	registerActivityRoutes(api, handlers.NewActivityHandler(auditSvc), checker)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
