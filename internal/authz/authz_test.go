package authz

import (
	"testing"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	tests := []struct {
		role    domain.Role
		object  string
		action  string
		allowed bool
	}{
		{domain.RoleUser, ObjectInvoice, ActionBulk, true},
		{domain.RoleUser, ObjectCredits, ActionPurchase, false},
		{domain.RoleUser, ObjectUser, ActionCreate, false},
		{domain.RoleUser, ObjectLender, ActionView, false},
		{domain.RoleManager, ObjectInvoice, ActionExport, true},
		{domain.RoleManager, ObjectCredits, ActionPurchase, true},
		{domain.RoleManager, ObjectAPIClient, ActionDelete, true},
		{domain.RoleManager, ObjectLender, ActionCreate, false},
		{domain.RoleManager, ObjectLender, ActionList, false},
		{domain.RoleManager, ObjectLender, ActionView, true},
		{domain.RoleManager, ObjectUser, ActionSelf, true},
		{domain.RoleManager, ObjectCredits, ActionProvision, false},
		{domain.RoleAdmin, ObjectLender, ActionCreate, true},
		{domain.RoleAdmin, ObjectInvoice, ActionView, true},
		{domain.RoleAdmin, ObjectAPIClient, ActionCreate, true},
		{domain.RoleAPIClient, ObjectInvoice, ActionCheck, true},
		{domain.RoleAPIClient, ObjectInvoice, ActionView, false},
		{domain.RoleUser, ObjectInvoice, ActionCheck, false},
		{"", ObjectInvoice, ActionView, false},
	}

	for _, tt := range tests {
		err := a.Authorize(tt.role, tt.object, tt.action)
		if tt.allowed {
			assert.NoError(t, err, "%s %s.%s", tt.role, tt.object, tt.action)
		} else {
			assert.ErrorIs(t, err, domain.ErrForbidden, "%s %s.%s", tt.role, tt.object, tt.action)
		}
	}
}
