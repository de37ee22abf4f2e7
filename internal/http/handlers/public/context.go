package public

import (
	handlershared "github.com/schoolpay-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var studentIdentity = handlershared.ContextIdentity{
	Key:            "student_id",
	MissingKey:     "error.student_id_invalid",
	TypeInvalidKey: "error.student_id_type_invalid",
}

func getStudentID(c *gin.Context) (uint, bool) {
	return handlershared.MustContextUint(c, studentIdentity)
}
