package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	require.NoError(t, err)
	return e
}

func allow(t *testing.T, e *Evaluator, a Actor, resource, action string) bool {
	t.Helper()
	ok, err := e.Allow(a, resource, action)
	require.NoError(t, err)
	return ok
}

func TestAdminAndSuperuserAllowedEverything(t *testing.T) {
	e := newEvaluator(t)
	admin := Actor{UserID: "u1", Role: models.RoleAdmin}
	root := Actor{UserID: "u2", Role: models.RoleViewer, IsSuperuser: true}

	for _, a := range []Actor{admin, root} {
		assert.True(t, allow(t, e, a, ResourceCustomer, ActionDelete))
		assert.True(t, allow(t, e, a, ResourceLicense, ActionGenerate))
		assert.True(t, allow(t, e, a, ResourceSystem, ActionCleanLogs))
		assert.True(t, allow(t, e, a, ResourceUser, ActionCreate))
		assert.True(t, a.IsAdmin())
	}
}

func TestViewerWithoutFlags(t *testing.T) {
	e := newEvaluator(t)
	viewer := Actor{UserID: "u", Role: models.RoleViewer}

	assert.False(t, allow(t, e, viewer, ResourceCustomer, ActionCreate))
	assert.False(t, allow(t, e, viewer, ResourceEnvironment, ActionStart))
	assert.False(t, allow(t, e, viewer, ResourceLicense, ActionGenerate))
	assert.False(t, allow(t, e, viewer, ResourceLogs, ActionView))
	assert.False(t, allow(t, e, viewer, ResourceSystem, ActionBrowseDB))
	assert.False(t, viewer.IsAdmin())
}

func TestCapabilityFlagsAreIndependent(t *testing.T) {
	e := newEvaluator(t)

	customers := Actor{Role: models.RoleViewer, CanManageCustomers: true}
	assert.True(t, allow(t, e, customers, ResourceCustomer, ActionUpdate))
	assert.False(t, allow(t, e, customers, ResourceEnvironment, ActionUpdate))
	assert.False(t, allow(t, e, customers, ResourceLicense, ActionGenerate))

	envs := Actor{Role: models.RoleViewer, CanManageEnvironments: true}
	assert.True(t, allow(t, e, envs, ResourceEnvironment, ActionStop))
	assert.False(t, allow(t, e, envs, ResourceCustomer, ActionCreate))

	licenses := Actor{Role: models.RoleViewer, CanGenerateLicenses: true}
	assert.True(t, allow(t, e, licenses, ResourceLicense, ActionRevoke))
	assert.False(t, allow(t, e, licenses, ResourceSystem, ActionCleanLogs))

	logs := Actor{Role: models.RoleViewer, CanViewLogs: true}
	assert.True(t, allow(t, e, logs, ResourceLogs, ActionView))
	assert.False(t, allow(t, e, logs, ResourceCustomer, ActionDelete))
}

func TestOperatorMayHealthCheck(t *testing.T) {
	e := newEvaluator(t)
	op := Actor{Role: models.RoleOperator}

	assert.True(t, allow(t, e, op, ResourceEnvironment, ActionHealthCheck))
	assert.False(t, allow(t, e, op, ResourceEnvironment, ActionStart))
}

func TestActorFromUser(t *testing.T) {
	u := &models.User{ID: "u1", IsSuperuser: false, Profile: models.UserProfile{
		Role:                models.RoleOperator,
		CanViewLogs:         true,
		CanGenerateLicenses: true,
	}}

	a := ActorFromUser(u)
	assert.Equal(t, "u1", a.UserID)
	assert.Equal(t, models.RoleOperator, a.Role)
	assert.True(t, a.CanGenerateLicenses)
	assert.False(t, a.CanManageCustomers)
	assert.ElementsMatch(t, []string{SubjectOperator, SubjectViewLogs, SubjectGenerateLicenses}, a.subjects())
}
