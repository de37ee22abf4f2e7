package admin

import (
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"
	"github.com/schoolpay-next/internal/models"
	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

type authzCreateAdminPayload struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	SchoolID uint     `json:"school_id"`
	IsSuper  bool     `json:"is_super"`
	Roles    []string `json:"roles"`
}

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

// ListAuthzRoles 列出全部角色
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
		return
	}
	response.Success(c, roles)
}

// ListAuthzAdmins 管理员列表，附带各自角色
func (h *Handler) ListAuthzAdmins(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	schoolID, ok := scope.filterSchoolID(c)
	if !ok {
		return
	}
	admins, err := h.AuthService.ListAdmins(schoolID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.admin_fetch_failed", err)
		return
	}
	items := make([]gin.H, 0, len(admins))
	for i := range admins {
		roles, err := h.AuthzService.GetAdminRoles(admins[i].ID)
		if err != nil {
			respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
			return
		}
		items = append(items, gin.H{"admin": admins[i], "roles": roles})
	}
	response.Success(c, items)
}

// CreateAuthzAdmin 创建管理员并分配角色
func (h *Handler) CreateAuthzAdmin(c *gin.Context) {
	scope, ok := getAdminScope(c)
	if !ok {
		return
	}
	var req authzCreateAdminPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if req.IsSuper && !scope.IsSuper {
		respondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}
	schoolID := uint(0)
	if !req.IsSuper {
		if schoolID, ok = scope.targetSchoolID(c, req.SchoolID); !ok {
			return
		}
	}

	admin, err := h.AuthService.CreateAdmin(service.CreateAdminInput{
		Username: req.Username,
		Password: req.Password,
		SchoolID: schoolID,
		IsSuper:  req.IsSuper,
	})
	if err != nil {
		if handlershared.RespondPasswordPolicyError(c, err) {
			return
		}
		respondWithMappedError(c, err, adminAccountErrorRules, response.CodeInternal, "error.admin_create_failed")
		return
	}
	if len(req.Roles) > 0 {
		if err := h.AuthzService.SetAdminRoles(admin.ID, req.Roles); err != nil {
			respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
			return
		}
	}
	handlershared.RequestLog(c).Infow("admin_created", "operator_id", scope.AdminID, "admin_id", admin.ID, "school_id", admin.SchoolID, "is_super", admin.IsSuper)
	response.Success(c, admin)
}

// GetAuthzAdminRoles 查询管理员角色
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	target, ok := h.loadScopedAdmin(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(target.ID)
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
		return
	}
	response.Success(c, gin.H{"admin_id": target.ID, "roles": roles})
}

// SetAuthzAdminRoles 覆盖管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	target, ok := h.loadScopedAdmin(c)
	if !ok {
		return
	}
	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(target.ID, req.Roles); err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(target.ID)
	if err != nil {
		respondWithMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
		return
	}
	handlershared.RequestLog(c).Infow("admin_roles_updated", "admin_id", target.ID, "roles", roles)
	response.Success(c, gin.H{"admin_id": target.ID, "roles": roles})
}

func (h *Handler) loadScopedAdmin(c *gin.Context) (*models.Admin, bool) {
	scope, ok := getAdminScope(c)
	if !ok {
		return nil, false
	}
	id, ok := handlershared.ParseUintParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	target, err := h.AuthService.GetAdmin(id)
	if err != nil {
		respondWithMappedError(c, err, adminAccountErrorRules, response.CodeInternal, "error.admin_fetch_failed")
		return nil, false
	}
	if !scope.IsSuper && (target.IsSuper || target.SchoolID != scope.SchoolID) {
		respondError(c, response.CodeNotFound, "error.admin_not_found", nil)
		return nil, false
	}
	return target, true
}
