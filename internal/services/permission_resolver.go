package services

import (
	"fmt"

	"fintrack/internal/models"
)

// EffectivePermissions 用户的有效权限表，键为 "module:entityID"
// 表中不存在的(模块,实体)一律视为无权访问（默认拒绝）
type EffectivePermissions struct {
	IsAdmin bool                          `json:"is_admin"`
	Grants  map[string]models.EntityGrant `json:"grants"`
}

// GrantKey 拼接权限表键
func GrantKey(module string, entityID uint) string {
	return fmt.Sprintf("%s:%d", module, entityID)
}

// ResolveGrants 合并模板规则与用户个体权限
// 先铺模板规则，再按(模块,实体)粒度用个体权限整体替换（不做字段合并）
func ResolveGrants(templateRules []models.TemplateRule, userPerms []models.UserPermission) map[string]models.EntityGrant {
	grants := make(map[string]models.EntityGrant, len(templateRules)+len(userPerms))

	for _, rule := range templateRules {
		grants[GrantKey(rule.Module, rule.EntityID)] = rule.ToGrant()
	}
	for _, perm := range userPerms {
		grants[GrantKey(perm.Module, perm.EntityID)] = perm.ToGrant()
	}

	return grants
}

// adminGrant 管理员在任意实体上的无条件全量权限
var adminGrant = models.EntityGrant{
	Access:     true,
	CanCreate:  true,
	CanEdit:    true,
	CanDelete:  true,
	CanApprove: true,
	Scope:      models.ScopeAll,
}

// Grant 查询某(模块,实体)上的有效权限，缺失时返回拒绝一切的零值
func (p *EffectivePermissions) Grant(module string, entityID uint) models.EntityGrant {
	if p.IsAdmin {
		return adminGrant
	}
	grant, ok := p.Grants[GrantKey(module, entityID)]
	if !ok {
		return models.EntityGrant{Scope: models.ScopeOwn}
	}
	return grant
}

// HasAccess 是否可访问
func (p *EffectivePermissions) HasAccess(module string, entityID uint) bool {
	return p.Grant(module, entityID).Access
}

// CanCreate 是否可创建
func (p *EffectivePermissions) CanCreate(module string, entityID uint) bool {
	g := p.Grant(module, entityID)
	return g.Access && g.CanCreate
}

// CanEdit 是否可编辑
func (p *EffectivePermissions) CanEdit(module string, entityID uint) bool {
	g := p.Grant(module, entityID)
	return g.Access && g.CanEdit
}

// CanDelete 是否可删除
func (p *EffectivePermissions) CanDelete(module string, entityID uint) bool {
	g := p.Grant(module, entityID)
	return g.Access && g.CanDelete
}

// CanApprove 是否具备审批能力
func (p *EffectivePermissions) CanApprove(module string, entityID uint) bool {
	g := p.Grant(module, entityID)
	return g.Access && g.CanApprove
}

// CanViewColumn 判断某列对该权限是否可见：未配置列表时全部可见
func CanViewColumn(grant models.EntityGrant, key string) bool {
	if grant.Columns == nil {
		return true
	}
	col, ok := grant.Columns[key]
	return ok && col.View
}

// CanEditColumn 判断某列对该权限是否可编辑
func CanEditColumn(grant models.EntityGrant, key string) bool {
	if grant.Columns == nil {
		return true
	}
	col, ok := grant.Columns[key]
	return ok && col.Edit
}
