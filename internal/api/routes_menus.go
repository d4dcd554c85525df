package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/handlers"
	"github.com/charlesng35/hrconsole/internal/middleware"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

func registerMenuRoutes(api *gin.RouterGroup, handler *handlers.MenuHandler, checker *permissions.Checker) {
	view := middleware.RequirePermission(checker, "menu.view")
	manage := middleware.RequirePermission(checker, "menu.manage")

	menus := api.Group("/menus")
	{
		menus.GET("", view, handler.List)
		menus.GET("/visible", handler.Visible)
		menus.GET("/parents", view, handler.Parents)
		menus.GET("/:id", view, handler.Get)
		menus.POST("", manage, handler.Create)
		menus.PUT("/:id", manage, handler.Update)
		menus.DELETE("/:id", manage, handler.Delete)
		menus.PUT("/:id/access", manage, handler.SetAccess)
		menus.PUT("/roles/:roleId/menus/:menuId/access", manage, handler.SetRoleAccess)
	}
}
