package services

import (
	"encoding/json"
	"testing"

	"fintrack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func mustColumns(t *testing.T, columns models.ColumnMap) datatypes.JSON {
	t.Helper()
	data, err := json.Marshal(columns)
	require.NoError(t, err)
	return datatypes.JSON(data)
}

func TestResolveGrants(t *testing.T) {
	templateRules := []models.TemplateRule{
		{Module: "re", EntityID: 1, Access: true, CanCreate: true, Scope: models.ScopeOwn},
		{Module: "expense", EntityID: 2, Access: true, CanEdit: true, Scope: models.ScopeAll},
	}

	t.Run("模板规则铺底", func(t *testing.T) {
		grants := ResolveGrants(templateRules, nil)

		assert.Len(t, grants, 2)
		assert.True(t, grants["re:1"].Access)
		assert.True(t, grants["re:1"].CanCreate)
		assert.Equal(t, models.ScopeOwn, grants["re:1"].Scope)
		assert.True(t, grants["expense:2"].CanEdit)
	})

	t.Run("个体权限整体替换同键模板规则", func(t *testing.T) {
		userPerms := []models.UserPermission{
			{Module: "re", EntityID: 1, Access: true, CanDelete: true, Scope: models.ScopeDepartment},
		}

		grants := ResolveGrants(templateRules, userPerms)

		// 替换而非合并：模板上的CanCreate不保留
		assert.True(t, grants["re:1"].CanDelete)
		assert.False(t, grants["re:1"].CanCreate)
		assert.Equal(t, models.ScopeDepartment, grants["re:1"].Scope)
		// 未覆盖的键维持模板规则
		assert.True(t, grants["expense:2"].CanEdit)
	})

	t.Run("个体权限可以收紧到不可访问", func(t *testing.T) {
		userPerms := []models.UserPermission{
			{Module: "re", EntityID: 1, Access: false},
		}

		grants := ResolveGrants(templateRules, userPerms)
		assert.False(t, grants["re:1"].Access)
	})
}

func TestEffectivePermissions_DefaultDeny(t *testing.T) {
	perms := &EffectivePermissions{Grants: map[string]models.EntityGrant{}}

	assert.False(t, perms.HasAccess("re", 99))
	assert.False(t, perms.CanCreate("re", 99))
	assert.False(t, perms.CanEdit("re", 99))
	assert.False(t, perms.CanDelete("re", 99))
	assert.False(t, perms.CanApprove("re", 99))
}

func TestEffectivePermissions_AdminBypass(t *testing.T) {
	perms := &EffectivePermissions{IsAdmin: true, Grants: map[string]models.EntityGrant{}}

	assert.True(t, perms.HasAccess("anything", 42))
	assert.True(t, perms.CanCreate("anything", 42))
	assert.True(t, perms.CanApprove("anything", 42))
	assert.Equal(t, models.ScopeAll, perms.Grant("anything", 42).Scope)
}

func TestEffectivePermissions_AccessGatesCapabilities(t *testing.T) {
	// access=false时其余能力位全部失效
	perms := &EffectivePermissions{
		Grants: map[string]models.EntityGrant{
			"re:1": {Access: false, CanCreate: true, CanEdit: true, CanApprove: true},
		},
	}

	assert.False(t, perms.CanCreate("re", 1))
	assert.False(t, perms.CanEdit("re", 1))
	assert.False(t, perms.CanApprove("re", 1))
}

func TestColumnPermissions(t *testing.T) {
	t.Run("未配置列表时全部列可见可编辑", func(t *testing.T) {
		grant := models.EntityGrant{Access: true}

		assert.True(t, CanViewColumn(grant, "amount"))
		assert.True(t, CanEditColumn(grant, "amount"))
	})

	t.Run("配置列表后未列出的列被拒绝", func(t *testing.T) {
		grant := models.EntityGrant{
			Access: true,
			Columns: models.ColumnMap{
				"title":  {View: true, Edit: true},
				"amount": {View: true, Edit: false},
			},
		}

		assert.True(t, CanViewColumn(grant, "title"))
		assert.True(t, CanViewColumn(grant, "amount"))
		assert.False(t, CanEditColumn(grant, "amount"))
		assert.False(t, CanViewColumn(grant, "secret"))
		assert.False(t, CanEditColumn(grant, "secret"))
	})
}

func TestTemplateRule_ToGrantParsesColumns(t *testing.T) {
	rule := models.TemplateRule{
		Module:   "expense",
		EntityID: 2,
		Access:   true,
		Scope:    models.ScopeOwn,
		Columns:  mustColumns(t, models.ColumnMap{"amount": {View: true}}),
	}

	grant := rule.ToGrant()

	require.NotNil(t, grant.Columns)
	assert.True(t, grant.Columns["amount"].View)
	assert.False(t, grant.Columns["amount"].Edit)
}
