package cache

import (
	"context"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
)

const captchaKeyPrefix = "captcha:"

// CaptchaStore 基于 Redis 的图片验证码存储，实现 base64Captcha.Store
type CaptchaStore struct {
	ttl time.Duration
}

// NewCaptchaStore 创建验证码存储；Redis 未启用时回落到进程内存储
func NewCaptchaStore(ttl time.Duration) base64Captcha.Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if !Enabled() {
		return base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, ttl)
	}
	return &CaptchaStore{ttl: ttl}
}

// Set 保存验证码答案
func (s *CaptchaStore) Set(id string, value string) error {
	return SetString(context.Background(), captchaKeyPrefix+id, value, s.ttl)
}

// Get 读取验证码答案，clear 为 true 时一次性消费
func (s *CaptchaStore) Get(id string, clear bool) string {
	ctx := context.Background()
	if clear {
		value, _, _ := GetDelString(ctx, captchaKeyPrefix+id)
		return value
	}
	if !Enabled() {
		return ""
	}
	value, err := redisClient.Get(ctx, buildKey(captchaKeyPrefix+id)).Result()
	if err != nil {
		return ""
	}
	return value
}

// Verify 校验答案（忽略大小写）
func (s *CaptchaStore) Verify(id, answer string, clear bool) bool {
	stored := s.Get(id, clear)
	if stored == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(answer))
}
