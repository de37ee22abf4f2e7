package shared

import (
	"strconv"
	"strings"
	"time"

	"github.com/schoolpay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// DeviceSignatureHeader 客户端上报设备签名的请求头。
const DeviceSignatureHeader = "X-Device-Signature"

// BuildRequestMeta 采集请求来源信息。
func BuildRequestMeta(c *gin.Context) service.RequestMeta {
	userAgent := strings.TrimSpace(c.GetHeader("User-Agent"))
	return service.RequestMeta{
		IP:              c.ClientIP(),
		UserAgent:       userAgent,
		DeviceSignature: service.ResolveDeviceSignature(c.GetHeader(DeviceSignatureHeader), userAgent),
	}
}

// HeaderMap 取每个请求头的第一个值。
func HeaderMap(c *gin.Context) map[string]string {
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}
	return headers
}

// ParseUintParam 解析路径中的正整数 ID。
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

// ParseUintQuery 解析可选的整数查询参数，缺省为 0。
func ParseUintQuery(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(value), true
}

// ParseTimeQuery 解析可选的 RFC3339 或日期查询参数。
func ParseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	return nil, false
}
