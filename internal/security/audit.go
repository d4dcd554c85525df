// Package security runs the posture audit of the console backend: the checks an operator should see
// pass before exposing the API.
package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/models"
)

type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check is the outcome of one posture rule.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

func (c Check) fix(remediation string) Check {
	c.Remediation = remediation
	return c
}

func (c Check) with(details any) Check {
	c.Details = details
	return c
}

func verdict(id string, status CheckStatus, format string, args ...any) Check {
	return Check{ID: id, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Result holds every check plus a count per status.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

const (
	maxRefreshTTL     = 30 * 24 * time.Hour
	minSecretLength   = 32
	sturdySecretBytes = 48
)

// rule is one posture check. Rules that need the database or the configuration are reported as
// warnings when the audit runs without them.
type rule struct {
	id       string
	needsDB  bool
	needsCfg bool
	run      func(s *AuditService, ctx context.Context) Check
}

var rules = []rule{
	{id: "root_user_present", needsDB: true, run: (*AuditService).rootUser},
	{id: "admin_role_grants", needsDB: true, run: (*AuditService).adminRole},
	{id: "menu_tree_integrity", needsDB: true, run: (*AuditService).menuTree},
	{id: "jwt_secret_strength", needsCfg: true, run: (*AuditService).jwtSecret},
	{id: "session_refresh_ttl", needsCfg: true, run: (*AuditService).refreshTTL},
	{id: "cors_origins", needsCfg: true, run: (*AuditService).corsOrigins},
}

// AuditService evaluates the access-control posture of a deployment.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService accepts nil for either input; the checks depending on it degrade to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{db: db, cfg: cfg, now: time.Now}
}

func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AuditService) Run(ctx context.Context) Result {
	result := Result{
		CheckedAt: s.now().UTC(),
		Checks:    make([]Check, 0, len(rules)),
		Summary:   map[string]int{string(StatusPass): 0, string(StatusWarn): 0, string(StatusFail): 0},
	}
	for _, r := range rules {
		var check Check
		switch {
		case r.needsDB && s.db == nil:
			check = verdict(r.id, StatusWarn, "Database unavailable.").fix("Ensure database connectivity before running the audit.")
		case r.needsCfg && s.cfg == nil:
			check = verdict(r.id, StatusWarn, "Configuration not loaded.").fix("Load configuration before running the audit.")
		default:
			check = r.run(s, ctx)
			check.ID = r.id
		}
		result.Checks = append(result.Checks, check)
		result.Summary[string(check.Status)]++
	}
	return result
}

func (s *AuditService) rootUser(ctx context.Context) Check {
	var roots int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(&models.User{IsRoot: true}).Count(&roots).Error; err != nil {
		return verdict("", StatusWarn, "Could not count root users: %v", err)
	}
	if roots == 0 {
		return verdict("", StatusFail, "No root user found.").
			fix("Configure auth.bootstrap so an administrator is created on startup, or run `users add --root`.")
	}
	return verdict("", StatusPass, "Root user present.").with(map[string]any{"count": roots})
}

// adminRole verifies the seeded administrator role can still manage menus and roles.
func (s *AuditService) adminRole(ctx context.Context) Check {
	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").Take(&role, "name = ?", database.AdminRoleName).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return verdict("", StatusFail, "Role %q is missing.", database.AdminRoleName).
			fix("Run `migrate` to reseed the system roles.")
	case err != nil:
		return verdict("", StatusWarn, "Could not load the administrator role: %v", err)
	}

	held := role.PermissionIDs()
	var missing []string
	for _, required := range []string{"menu.manage", "role.manage"} {
		if !slices.Contains(held, required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return verdict("", StatusFail, "Role %q lacks %s.", database.AdminRoleName, strings.Join(missing, ", ")).
			fix("Restore the missing permissions to the administrator role.").
			with(map[string]any{"missing": missing})
	}
	return verdict("", StatusPass, "Administrator role holds menu and role management.")
}

// menuTree rebuilds the stored hierarchy and reports the repairs it needed.
func (s *AuditService) menuTree(ctx context.Context) Check {
	var menus []models.Menu
	if err := s.db.WithContext(ctx).Order("menu_order, id").Find(&menus).Error; err != nil {
		return verdict("", StatusWarn, "Could not load menus: %v", err)
	}
	records := make([]menutree.Record, len(menus))
	for i, m := range menus {
		records[i] = menutree.Record{ID: m.ID, ParentID: m.ParentID, Name: m.Name, Label: m.Label, Order: m.MenuOrder, Active: m.IsActive}
	}

	forest, report := menutree.BuildWithReport(records)
	if !report.Clean() {
		return verdict("", StatusWarn, "Menu hierarchy contains broken parent references; affected menus are shown as roots.").
			fix("Reassign the parents of the listed menus.").
			with(report)
	}
	return verdict("", StatusPass, "Menu hierarchy is consistent (%d menus).", forest.Count())
}

func (s *AuditService) jwtSecret(context.Context) Check {
	n := len(s.cfg.Auth.JWT.Secret)
	details := map[string]any{"length": n}
	switch {
	case n == 0:
		return verdict("", StatusFail, "Missing JWT signing secret.").
			fix("Provide a random signing secret of at least 32 bytes.")
	case n < minSecretLength:
		return verdict("", StatusFail, "JWT signing secret is too short (%d bytes).", n).
			fix("Use a randomly generated secret of at least 32 bytes.")
	case n < sturdySecretBytes:
		return verdict("", StatusWarn, "JWT signing secret is %d bytes. Consider 48 bytes or more.", n).
			fix("Increase HRCONSOLE_AUTH_JWT_SECRET to at least 48 bytes.").
			with(details)
	}
	return verdict("", StatusPass, "JWT signing secret length is %d bytes.", n).with(details)
}

func (s *AuditService) refreshTTL(context.Context) Check {
	ttl := s.cfg.Auth.Session.RefreshTTL
	switch {
	case ttl <= 0:
		return verdict("", StatusWarn, "Refresh token TTL is not configured; using the default duration.").
			fix("Set HRCONSOLE_AUTH_SESSION_REFRESH_TOKEN_TTL.")
	case ttl > maxRefreshTTL:
		return verdict("", StatusWarn, "Refresh token TTL (%s) exceeds %s.", ttl, maxRefreshTTL).
			fix("Reduce the refresh token TTL to 30 days or lower.").
			with(map[string]any{"ttl": ttl.String()})
	}
	return verdict("", StatusPass, "Refresh token TTL is %s.", ttl).with(map[string]any{"ttl": ttl.String()})
}

// corsOrigins warns when browsers from any origin may call the API.
func (s *AuditService) corsOrigins(context.Context) Check {
	origins := s.cfg.Server.CORS.Origins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return verdict("", StatusWarn, "Any browser origin may call the API.").
			fix("List the console origins in server.cors.origins.")
	}
	return verdict("", StatusPass, "CORS limited to %d origin(s).", len(origins)).with(map[string]any{"origins": origins})
}
