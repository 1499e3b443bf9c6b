// Package policy decides whether an operator may perform an action. Every
// mutating request passes through Evaluator.Allow before the service runs.
package policy

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// Resources
const (
	ResourceCustomer    = "customer"
	ResourceEnvironment = "environment"
	ResourceLicense     = "license"
	ResourceLogs        = "logs"
	ResourceSystem      = "system"
	ResourceUser        = "user"
)

// Actions
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionHealthCheck = "health_check"
	ActionGenerate    = "generate"
	ActionActivate    = "activate"
	ActionRevoke      = "revoke"
	ActionView        = "view"
	ActionCleanLogs   = "clean_logs"
	ActionBrowseDB    = "browse_db"
)

// Subjects
const (
	SubjectSuperuser          = "superuser"
	SubjectAdmin              = "role:admin"
	SubjectOperator           = "role:operator"
	SubjectManageCustomers    = "cap:manage_customers"
	SubjectManageEnvironments = "cap:manage_environments"
	SubjectViewLogs           = "cap:view_logs"
	SubjectGenerateLicenses   = "cap:generate_licenses"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var defaultPolicies = [][]string{
	{SubjectSuperuser, "*", "*"},
	{SubjectAdmin, "*", "*"},

	{SubjectManageCustomers, ResourceCustomer, ActionCreate},
	{SubjectManageCustomers, ResourceCustomer, ActionUpdate},
	{SubjectManageCustomers, ResourceCustomer, ActionDelete},

	{SubjectManageEnvironments, ResourceEnvironment, ActionCreate},
	{SubjectManageEnvironments, ResourceEnvironment, ActionUpdate},
	{SubjectManageEnvironments, ResourceEnvironment, ActionDelete},
	{SubjectManageEnvironments, ResourceEnvironment, ActionStart},
	{SubjectManageEnvironments, ResourceEnvironment, ActionStop},
	{SubjectManageEnvironments, ResourceEnvironment, ActionHealthCheck},
	{SubjectOperator, ResourceEnvironment, ActionHealthCheck},

	{SubjectGenerateLicenses, ResourceLicense, ActionGenerate},
	{SubjectGenerateLicenses, ResourceLicense, ActionActivate},
	{SubjectGenerateLicenses, ResourceLicense, ActionRevoke},
	{SubjectGenerateLicenses, ResourceLicense, ActionDelete},

	{SubjectViewLogs, ResourceLogs, ActionView},
}

// Actor is the policy view of an authenticated operator.
type Actor struct {
	UserID                string
	Role                  string
	IsSuperuser           bool
	CanManageCustomers    bool
	CanManageEnvironments bool
	CanViewLogs           bool
	CanGenerateLicenses   bool
}

// ActorFromUser snapshots the role and flags of u.
func ActorFromUser(u *models.User) Actor {
	return Actor{
		UserID:                u.ID,
		Role:                  u.Profile.Role,
		IsSuperuser:           u.IsSuperuser,
		CanManageCustomers:    u.Profile.CanManageCustomers,
		CanManageEnvironments: u.Profile.CanManageEnvironments,
		CanViewLogs:           u.Profile.CanViewLogs,
		CanGenerateLicenses:   u.Profile.CanGenerateLicenses,
	}
}

// IsAdmin is true for admins and superusers.
func (a Actor) IsAdmin() bool {
	return a.IsSuperuser || a.Role == models.RoleAdmin
}

func (a Actor) subjects() []string {
	var subs []string
	if a.IsSuperuser {
		subs = append(subs, SubjectSuperuser)
	}
	if a.Role != "" {
		subs = append(subs, "role:"+a.Role)
	}
	if a.CanManageCustomers {
		subs = append(subs, SubjectManageCustomers)
	}
	if a.CanManageEnvironments {
		subs = append(subs, SubjectManageEnvironments)
	}
	if a.CanViewLogs {
		subs = append(subs, SubjectViewLogs)
	}
	if a.CanGenerateLicenses {
		subs = append(subs, SubjectGenerateLicenses)
	}
	return subs
}

// Evaluator wraps a casbin enforcer loaded with the built-in policy set.
type Evaluator struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEvaluator() (*Evaluator, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for _, p := range defaultPolicies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy [%s, %s, %s]: %w", p[0], p[1], p[2], err)
		}
	}

	return &Evaluator{enforcer: enforcer}, nil
}

// Allow reports whether any of the actor's grants permits action on resource.
func (e *Evaluator) Allow(actor Actor, resource, action string) (bool, error) {
	for _, sub := range actor.subjects() {
		ok, err := e.enforcer.Enforce(sub, resource, action)
		if err != nil {
			return false, fmt.Errorf("permission check failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
