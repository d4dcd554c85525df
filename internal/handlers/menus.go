package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// MenuHandler serves the menu hierarchy and its access grants.
type MenuHandler struct {
	svc *services.MenuService
}

func NewMenuHandler(svc *services.MenuService) *MenuHandler {
	return &MenuHandler{svc: svc}
}

type menuRequest struct {
	Name          string   `json:"name" validate:"required,max=128,slug"`
	Label         string   `json:"label" validate:"required,max=255"`
	URL           string   `json:"url" validate:"max=512,route"`
	Icon          string   `json:"icon" validate:"max=64"`
	ParentID      *uint    `json:"parent_id"`
	MenuOrder     int      `json:"menu_order" validate:"gte=0"`
	IsActive      *bool    `json:"is_active"`
	RoleIDs       []uint   `json:"role_ids"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,permission"`
}

func (r menuRequest) input() services.MenuInput {
	return services.MenuInput{
		Name:          r.Name,
		Label:         r.Label,
		URL:           r.URL,
		Icon:          r.Icon,
		ParentID:      r.ParentID,
		MenuOrder:     r.MenuOrder,
		IsActive:      r.IsActive,
		RoleIDs:       r.RoleIDs,
		PermissionIDs: r.PermissionIDs,
	}
}

type menuAccessRequest struct {
	RoleIDs       []uint   `json:"role_ids"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,permission"`
}

type roleMenuAccessRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// GET /api/menus
func (h *MenuHandler) List(c *gin.Context) {
	if strings.EqualFold(c.Query("format"), "tree") {
		forest, _, err := h.svc.Tree(requestContext(c), services.TreeOptions{
			Search:          c.Query("search"),
			IncludeInactive: boolQuery(c, "include_inactive"),
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, forest)
		return
	}

	menus, err := h.svc.List(requestContext(c), services.MenuListOptions{
		WithRoles:       boolQuery(c, "with_roles"),
		WithPermissions: boolQuery(c, "with_permissions"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menus)
}

// GET /api/menus/visible
func (h *MenuHandler) Visible(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	forest, err := h.svc.VisibleTree(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, forest)
}

// GET /api/menus/parents?exclude=<id>
func (h *MenuHandler) Parents(c *gin.Context) {
	var exclude uint
	if raw := strings.TrimSpace(c.Query("exclude")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, errors.NewBadRequest("exclude must be a menu id"))
			return
		}
		exclude = uint(value)
	}

	parents, err := h.svc.EligibleParents(requestContext(c), exclude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, parents)
}

// GET /api/menus/:id
func (h *MenuHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	menu, err := h.svc.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menu)
}

// POST /api/menus
func (h *MenuHandler) Create(c *gin.Context) {
	var req menuRequest
	if !bindAndValidate(c, &req) {
		return
	}

	menu, err := h.svc.Create(requestContext(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, menu)
}

// PUT /api/menus/:id
func (h *MenuHandler) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req menuRequest
	if !bindAndValidate(c, &req) {
		return
	}

	menu, err := h.svc.Update(requestContext(c), id, req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menu)
}

// DELETE /api/menus/:id?policy=reject|orphan|reassign|cascade
func (h *MenuHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	policy, err := services.ParseDeletePolicy(c.Query("policy"))
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.svc.Delete(requestContext(c), id, policy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// PUT /api/menus/:id/access
func (h *MenuHandler) SetAccess(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req menuAccessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	menu, err := h.svc.SetAccess(requestContext(c), id, req.RoleIDs, req.PermissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menu)
}

// PUT /api/menus/roles/:roleId/menus/:menuId/access
func (h *MenuHandler) SetRoleAccess(c *gin.Context) {
	roleID, ok := uintParam(c, "roleId")
	if !ok {
		return
	}
	menuID, ok := uintParam(c, "menuId")
	if !ok {
		return
	}

	var req roleMenuAccessRequest
	if !bindAndValidate(c, &req) {
		return
	}

	changed, err := h.svc.SetRoleAccess(requestContext(c), roleID, menuID, *req.Granted)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"role_id": roleID,
		"menu_id": menuID,
		"granted": *req.Granted,
		"changed": changed,
	})
}
