package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/monitoring"
)

// Catalog reports down while no role exists and degraded while no menu exists. Either state means
// users cannot be granted anything, which happens after a failed seed or a wiped database.
func Catalog(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return monitoring.NewCheck("catalog", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ResultFromError("catalog", errNotConfigured, 0)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var roles, menus int64
		tx := db.WithContext(ctx)
		if err := tx.Model(&models.Role{}).Count(&roles).Error; err != nil {
			return monitoring.ResultFromError("catalog", err, time.Since(start))
		}
		if err := tx.Model(&models.Menu{}).Count(&menus).Error; err != nil {
			return monitoring.ResultFromError("catalog", err, time.Since(start))
		}

		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d roles, %d menus", roles, menus),
			Duration: time.Since(start),
		}
		switch {
		case roles == 0:
			result.Status = monitoring.StatusDown
		case menus == 0:
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
