package public

import "github.com/schoolpay-next/internal/provider"

// Handler 学生端接口与 Paystack 回调
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
