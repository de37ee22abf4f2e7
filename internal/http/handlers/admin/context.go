package admin

import (
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"
	"github.com/schoolpay-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// adminScope 当前管理员的数据范围，学校管理员只能访问本校数据
type adminScope struct {
	AdminID  uint
	SchoolID uint
	IsSuper  bool
}

var adminIdentity = handlershared.ContextIdentity{
	Key:            "admin_id",
	MissingKey:     "error.admin_id_invalid",
	TypeInvalidKey: "error.admin_id_type_invalid",
}

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.MustContextUint(c, adminIdentity)
}

func getAdminScope(c *gin.Context) (adminScope, bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return adminScope{}, false
	}
	scope := adminScope{AdminID: adminID, IsSuper: c.GetBool("admin_is_super")}
	if value, exists := c.Get("admin_school_id"); exists {
		if schoolID, ok := value.(uint); ok {
			scope.SchoolID = schoolID
		}
	}
	if !scope.IsSuper && scope.SchoolID == 0 {
		respondError(c, response.CodeForbidden, "error.forbidden", nil)
		return adminScope{}, false
	}
	return scope, true
}

// filterSchoolID 列表过滤用的学校，超级管理员可通过 school_id 查询参数收窄，0 表示全部
func (s adminScope) filterSchoolID(c *gin.Context) (uint, bool) {
	if !s.IsSuper {
		return s.SchoolID, true
	}
	schoolID, ok := handlershared.ParseUintQuery(c, "school_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return schoolID, true
}

// targetSchoolID 写操作的目标学校，超级管理员必须显式指定
func (s adminScope) targetSchoolID(c *gin.Context, requested uint) (uint, bool) {
	if !s.IsSuper {
		if requested != 0 && requested != s.SchoolID {
			respondError(c, response.CodeForbidden, "error.forbidden", nil)
			return 0, false
		}
		return s.SchoolID, true
	}
	if requested == 0 {
		respondError(c, response.CodeBadRequest, "error.school_id_required", nil)
		return 0, false
	}
	return requested, true
}

// serviceScope 传给 service 的范围，0 表示不限
func (s adminScope) serviceScope() uint {
	if s.IsSuper {
		return 0
	}
	return s.SchoolID
}

func (s adminScope) canAccess(schoolID uint) bool {
	return s.IsSuper || s.SchoolID == schoolID
}
