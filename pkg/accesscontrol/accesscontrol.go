package accesscontrol

import (
	"ecopoints-ledger/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(NewEnforcer))

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	// RoleProducer is held by the services that report point-earning
	// activities.
	RoleProducer = "producer"
)

// DefaultModel is a role based model matching request paths with keyMatch2.
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicies grant admins every admin route, moderators read-only
// analytics and producers the award endpoint.
var DefaultPolicies = [][]string{
	{RoleAdmin, "/v1/admin/*", "(GET)|(POST)"},
	{RoleModerator, "/v1/admin/analytics/*", "GET"},
	{RoleProducer, "/v1/ecopoints/award", "POST"},
}

// NewEnforcer loads ACCESS_CONTROL.MODEL and ACCESS_CONTROL.POLICY when set,
// falling back to the built-in model and policies.
func NewEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	var (
		m   model.Model
		err error
	)
	if cfg.AccessControl.Model != "" {
		m, err = model.NewModelFromFile(cfg.AccessControl.Model)
	} else {
		m, err = model.NewModelFromString(DefaultModel)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AccessControl.Policy != "" {
		e, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.AccessControl.Policy))
		if err != nil {
			return nil, err
		}
		zap.L().Info("[AccessControl] policies loaded from file", zap.String("path", cfg.AccessControl.Policy))
		return e, nil
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	if _, err := e.AddPolicies(DefaultPolicies); err != nil {
		return nil, err
	}
	return e, nil
}
