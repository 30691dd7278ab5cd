package auth

import (
	"net/http"
	"strconv"

	casbinlib "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// EnforcerKey is the registry entry holding the policy enforcer.
var EnforcerKey = registry.NewKey[*casbinlib.Enforcer]("enforcer")

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Rule allows Role to call Method (a regular expression) on Path (a keyMatch2
// pattern such as /user/:id or /services/*).
type Rule struct {
	Role   string
	Path   string
	Method string
}

// Inherit makes Role hold every permission of Parent.
type Inherit struct {
	Role   string
	Parent string
}

// NewEnforcer builds an in-memory RBAC enforcer from rules.
func NewEnforcer(rules []Rule, inherits []Inherit) (*casbinlib.Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid access model")
	}
	enforcer, err := casbinlib.NewEnforcer(m)
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "failed to create enforcer")
	}

	if len(rules) > 0 {
		policies := make([][]string, len(rules))
		for i, rule := range rules {
			policies[i] = []string{rule.Role, rule.Path, rule.Method}
		}
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid access policy")
		}
	}
	for _, in := range inherits {
		if _, err := enforcer.AddGroupingPolicy(in.Role, in.Parent); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid role inheritance")
		}
	}
	return enforcer, nil
}

// Enforcer decides whether a subject may act on an object.
type Enforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

// Authorizer checks the authenticated identity against the access policy.
type Authorizer struct {
	enforcer Enforcer
	isPublic func(path string) bool
	logger   logging.Logger
}

// NewAuthorizer lets isPublic routes through; it may be nil.
func NewAuthorizer(enforcer Enforcer, isPublic func(string) bool, logger logging.Logger) *Authorizer {
	if logger == nil {
		logger = logging.Global()
	}
	if isPublic == nil {
		isPublic = func(string) bool { return false }
	}
	return &Authorizer{enforcer: enforcer, isPublic: isPublic, logger: logger}
}

func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		id, ok := IdentityFrom(r.Context())
		if !ok {
			responder.Forbidden(w, r, "")
			return
		}
		allowed, err := a.enforcer.Enforce(id.Role, r.URL.Path, r.Method)
		if err != nil {
			logging.WithContext(a.logger, r.Context()).Error("auth.enforce.failed", zap.Error(err))
			responder.Fail(w, r, err)
			return
		}
		if !allowed {
			responder.Forbidden(w, r, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
