package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/handlers"
	"github.com/charlesng35/hrconsole/internal/middleware"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

func registerRoleRoutes(api *gin.RouterGroup, handler *handlers.RoleHandler, checker *permissions.Checker) {
	roles := api.Group("/roles")
	{
		roles.GET("", middleware.RequirePermission(checker, "role.view"), handler.List)
		roles.GET("/permissions", middleware.RequireAnyPermission(checker, "role.view", "menu.manage"), handler.Permissions)
		roles.GET("/:id", middleware.RequirePermission(checker, "role.view"), handler.Get)
		roles.POST("", middleware.RequirePermission(checker, "role.manage"), handler.Create)
		roles.PUT("/:id", middleware.RequirePermission(checker, "role.manage"), handler.Update)
		roles.DELETE("/:id", middleware.RequirePermission(checker, "role.manage"), handler.Delete)
		roles.PUT("/:id/permissions", middleware.RequirePermission(checker, "role.manage"), handler.SetPermissions)
	}
}
