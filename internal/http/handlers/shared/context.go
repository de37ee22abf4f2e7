package shared

import (
	"github.com/schoolpay-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ContextIdentity 鉴权中间件写入上下文的身份字段
type ContextIdentity struct {
	Key            string // 上下文 key，如 student_id
	MissingKey     string // 值为 0 时的错误文案
	TypeInvalidKey string // 类型不符时的错误文案
}

// MustContextUint 读取中间件写入的身份 ID，缺失或非法时已写出响应
func MustContextUint(c *gin.Context, identity ContextIdentity) (uint, bool) {
	value, exists := c.Get(identity.Key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, ok := value.(uint)
	if !ok {
		RespondError(c, response.CodeInternal, identity.TypeInvalidKey, nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeUnauthorized, identity.MissingKey, nil)
		return 0, false
	}
	return id, true
}
