package admin

import "github.com/schoolpay-next/internal/provider"

// Handler 学校后台接口，学校范围由 JWT 中的 school_id 决定
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
