package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

const (
	RoleAuditor = "auditor"
	RoleBursar  = "bursar"
	RoleSuper   = "super"
)

// BuiltinRoleSeeds 预置角色：审计只读，财务处理缴费与退款，super 拥有学校内全部权限
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     RoleBursar,
			Inherits: []string{RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/students", Action: "POST"},
				{Object: "/admin/fees", Action: "POST"},
				{Object: "/admin/fees/:id/assignments", Action: "POST"},
				{Object: "/admin/payments/:id/verify", Action: "POST"},
				{Object: "/admin/refunds/:id/review", Action: "POST"},
				{Object: "/admin/fraud/queue/:id/retry", Action: "POST"},
			},
		},
		{
			Role:     RoleSuper,
			Inherits: []string{RoleBursar},
			Policies: []Policy{
				{Object: "/admin/gateway-config", Action: "PUT"},
				{Object: "/admin/admins", Action: "POST"},
				{Object: "/admin/authz/admins/:id/roles", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 写入预置角色与策略，重复执行无副作用
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor); err != nil {
			return fmt.Errorf("create builtin role %s failed: %w", role, err)
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
