package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/handlers"
	"github.com/charlesng35/hrconsole/internal/middleware"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

func registerActivityRoutes(api *gin.RouterGroup, handler *handlers.ActivityHandler, checker *permissions.Checker) {
	api.GET("/activity", middleware.RequirePermission(checker, "activity.view"), handler.List)
	api.GET("/activity/export", middleware.RequirePermission(checker, "activity.export"), handler.Export)
}
