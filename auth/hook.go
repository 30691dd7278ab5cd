package auth

import (
	"context"
	"time"

	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// AccessHook builds the token issuer from the discovered secret key and the
// policy enforcer, and registers both.
type AccessHook struct {
	Rules    []Rule
	Inherits []Inherit
	TokenTTL time.Duration
	Logger   *zap.Logger
}

var (
	_ lifecycle.Hook      = (*AccessHook)(nil)
	_ lifecycle.Dependent = (*AccessHook)(nil)
)

func (h *AccessHook) Name() string { return "access" }

func (h *AccessHook) Requires() []string { return []string{registry.ConstantsKey.Name()} }

func (h *AccessHook) Provides() []string {
	return []string{IssuerKey.Name(), EnforcerKey.Name()}
}

func (h *AccessHook) Setup(_ context.Context, reg *registry.Registry) error {
	constants, err := registry.Resolve(reg, registry.ConstantsKey)
	if err != nil {
		return err
	}
	issuer, err := NewIssuer(constants.SecretKey, h.TokenTTL)
	if err != nil {
		return err
	}
	enforcer, err := NewEnforcer(h.Rules, h.Inherits)
	if err != nil {
		return err
	}

	if err := registry.Provide(reg, IssuerKey, issuer); err != nil {
		return err
	}
	if err := registry.Provide(reg, EnforcerKey, enforcer); err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.Debug("access.ready", zap.Int("rules", len(h.Rules)))
	}
	return nil
}

// Teardown has nothing to release; both values are in-memory.
func (h *AccessHook) Teardown(context.Context, *registry.Registry) error { return nil }
