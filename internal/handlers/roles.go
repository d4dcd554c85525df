package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// RoleHandler serves roles and the permission catalogue.
type RoleHandler struct {
	svc *services.PermissionService
}

func NewRoleHandler(svc *services.PermissionService) *RoleHandler {
	return &RoleHandler{svc: svc}
}

type roleView struct {
	ID            uint     `json:"id"`
	Name          string   `json:"role_name"`
	Description   string   `json:"description"`
	IsDefault     bool     `json:"is_default"`
	IsSystem      bool     `json:"is_system"`
	PermissionIDs []string `json:"permission_ids"`
	MenuIDs       []uint   `json:"menu_ids"`
}

func newRoleView(role *models.Role) roleView {
	return roleView{
		ID:            role.ID,
		Name:          role.Name,
		Description:   role.Description,
		IsDefault:     role.IsDefault,
		IsSystem:      role.IsSystem,
		PermissionIDs: role.PermissionIDs(),
		MenuIDs:       role.MenuIDs(),
	}
}

type createRoleRequest struct {
	Name          string   `json:"role_name" validate:"required,max=128"`
	Description   string   `json:"description" validate:"max=512"`
	IsDefault     bool     `json:"is_default"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,permission"`
}

type updateRoleRequest struct {
	Name        *string `json:"role_name" validate:"omitempty,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
	IsDefault   *bool   `json:"is_default"`
}

type rolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"dive,permission"`
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.ListRoles(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]roleView, 0, len(roles))
	for i := range roles {
		views = append(views, newRoleView(&roles[i]))
	}
	response.Success(c, http.StatusOK, views)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	role, err := h.svc.GetRole(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newRoleView(role))
}

// GET /api/roles/permissions?grouped=true
func (h *RoleHandler) Permissions(c *gin.Context) {
	perms, err := h.svc.ListPermissions(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if boolQuery(c, "grouped") {
		response.Success(c, http.StatusOK, services.GroupPermissionsByModule(perms))
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var req createRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role, err := h.svc.CreateRole(requestContext(c), services.CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		IsDefault:     req.IsDefault,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, newRoleView(role))
}

// PUT /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}

	role, err := h.svc.UpdateRole(requestContext(c), id, services.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newRoleView(role))
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteRole(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PUT /api/roles/:id/permissions
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req rolePermissionsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	granted, err := h.svc.SetRolePermissions(requestContext(c), id, req.PermissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"role_id": id, "permission_ids": granted})
}
