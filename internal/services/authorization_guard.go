package services

import (
	"context"
	"fmt"
	"sort"

	"newsportal/internal/models"
	"newsportal/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Principal 已认证的请求主体，角色在每次请求时从存储加载
type Principal struct {
	ID uint
	// Disabled 账号非激活状态（inactive/locked），仍可读取但不能发表、审核或删除评论
	Disabled bool
	roles    map[string]struct{}
}

// NewPrincipal 创建主体，角色标识按权限标识同样的规则规范化
func NewPrincipal(id uint, roleSlugs ...string) *Principal {
	roles := make(map[string]struct{}, len(roleSlugs))
	for _, r := range roleSlugs {
		if r = normalizeSlug(r); r != "" {
			roles[r] = struct{}{}
		}
	}
	return &Principal{ID: id, roles: roles}
}

// HasRole 是否直接持有角色
func (p *Principal) HasRole(slug string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[normalizeSlug(slug)]
	return ok
}

// IsAdmin 是否为超级管理员
func (p *Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}

// RoleSlugs 有序的角色标识
func (p *Principal) RoleSlugs() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// RequirementKind 授权要求类型
type RequirementKind uint8

const (
	RequirePermissionKind RequirementKind = iota + 1
	RequireRoleKind
)

// Requirement 单个授权要求：需要某个权限或某个角色
type Requirement struct {
	Kind RequirementKind
	Slug string
}

// RequirePermission 权限要求，admin 角色直接放行
func RequirePermission(slug string) Requirement {
	return Requirement{Kind: RequirePermissionKind, Slug: normalizeSlug(slug)}
}

// RequireRole 角色要求，只检查直接持有，admin 不会自动满足其他角色
func RequireRole(slug string) Requirement {
	return Requirement{Kind: RequireRoleKind, Slug: normalizeSlug(slug)}
}

func (r Requirement) String() string {
	switch r.Kind {
	case RequirePermissionKind:
		return "permission:" + r.Slug
	case RequireRoleKind:
		return "role:" + r.Slug
	default:
		return "unknown:" + r.Slug
	}
}

// Decision 授权结果
type Decision uint8

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// PermissionResolver 将主体解析为权限集合
type PermissionResolver interface {
	Resolve(ctx context.Context, principalID uint) (PermissionSet, error)
}

// AuthorizationGuard 授权判定入口，所有受保护的操作都经过这里
type AuthorizationGuard struct {
	resolver PermissionResolver
}

// NewAuthorizationGuard 创建授权守卫
func NewAuthorizationGuard(resolver PermissionResolver) *AuthorizationGuard {
	return &AuthorizationGuard{resolver: resolver}
}

// Authorize 判定主体是否满足要求
//
// 未认证主体返回 ErrUnauthenticated；没有任何角色的主体一律 Denied。
// 权限解析失败时返回错误，调用方不得将其视为放行。
func (g *AuthorizationGuard) Authorize(ctx context.Context, principal *Principal, req Requirement) (Decision, error) {
	if principal == nil {
		return Denied, ErrUnauthenticated
	}
	if len(principal.roles) == 0 {
		g.record(principal, req, Denied)
		return Denied, nil
	}

	decision := Denied
	switch req.Kind {
	case RequireRoleKind:
		if principal.HasRole(req.Slug) {
			decision = Allowed
		}
	case RequirePermissionKind:
		if principal.IsAdmin() {
			decision = Allowed
			break
		}
		perms, err := g.resolver.Resolve(ctx, principal.ID)
		if err != nil {
			return Denied, fmt.Errorf("解析用户 %d 权限失败: %w", principal.ID, err)
		}
		if perms.Has(req.Slug) {
			decision = Allowed
		}
	default:
		return Denied, newValidationError("requirement", "未知的授权要求类型 %d", req.Kind)
	}

	g.record(principal, req, decision)
	return decision, nil
}

// Check 将 Denied 折算为 ErrDenied，便于服务层直接返回
func (g *AuthorizationGuard) Check(ctx context.Context, principal *Principal, req Requirement) error {
	decision, err := g.Authorize(ctx, principal, req)
	if err != nil {
		return err
	}
	if decision != Allowed {
		return ErrDenied
	}
	return nil
}

func (g *AuthorizationGuard) record(principal *Principal, req Requirement, decision Decision) {
	authorizationDecisions.WithLabelValues(req.Kind.label(), decision.String()).Inc()
	if decision == Denied {
		logger.GetLogger().WithFields(logrus.Fields{
			"principal_id": principal.ID,
			"requirement":  req.String(),
		}).Debug("授权拒绝")
	}
}

func (k RequirementKind) label() string {
	switch k {
	case RequirePermissionKind:
		return "permission"
	case RequireRoleKind:
		return "role"
	default:
		return "unknown"
	}
}
