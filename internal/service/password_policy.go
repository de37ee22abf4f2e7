package service

import (
	"unicode"

	"github.com/schoolpay-next/internal/config"
)

type passwordPolicyError struct {
	key  string
	args []interface{}
}

func (e passwordPolicyError) Error() string {
	return e.key
}

func (e passwordPolicyError) Is(target error) bool {
	return target == ErrWeakPassword
}

func (e passwordPolicyError) Key() string {
	return e.key
}

func (e passwordPolicyError) Args() []interface{} {
	return e.args
}

// validatePassword 学生与管理员共用的密码策略
func validatePassword(policy config.PasswordPolicyConfig, password string) error {
	if policy.MinLength > 0 && len([]rune(password)) < policy.MinLength {
		return passwordPolicyError{key: "error.password_min_length", args: []interface{}{policy.MinLength}}
	}
	if !policy.RequireNumber {
		return nil
	}
	for _, r := range password {
		if unicode.IsDigit(r) {
			return nil
		}
	}
	return passwordPolicyError{key: "error.password_require_number"}
}
