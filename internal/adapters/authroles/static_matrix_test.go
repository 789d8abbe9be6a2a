package authroles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

func TestDefault_LoadRolePermissionMap(t *testing.T) {
	m, err := Default().LoadRolePermissionMap(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, m, domainauth.RoleAdmin)
	assert.True(t, m[domainauth.RoleAccountant].Has(domainauth.ModuleReports, domainauth.ActionView))
	assert.True(t, m[domainauth.RoleAccountant].Has(domainauth.ModulePurchasing, domainauth.ActionApprove))
	assert.False(t, m[domainauth.RoleAccountant].Has(domainauth.ModuleHR, domainauth.ActionDelete))
	assert.False(t, m[domainauth.RoleViewer].Has(domainauth.ModuleInventory, domainauth.ActionEdit))

	for _, a := range domainauth.Actions() {
		assert.True(t, m[domainauth.RoleManager].Has(domainauth.ModuleInventory, a), a)
	}
	assert.False(t, m[domainauth.RoleManager].Has(domainauth.ModuleSettings, domainauth.ActionView))
}

func TestExpand(t *testing.T) {
	m, err := Expand(map[domainauth.Role][]string{
		domainauth.RoleEmployee: {" Projects:VIEW ", "projects:view"},
	})
	require.NoError(t, err)
	assert.Len(t, m[domainauth.RoleEmployee], 1)

	cases := map[string]map[domainauth.Role][]string{
		"unknown role":   {"owner": {"hr:view"}},
		"missing colon":  {domainauth.RoleViewer: {"hr"}},
		"unknown module": {domainauth.RoleViewer: {"payroll:view"}},
		"unknown action": {domainauth.RoleViewer: {"hr:fire"}},
	}
	for name, rules := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Expand(rules)
			assert.Error(t, err)
		})
	}
}
