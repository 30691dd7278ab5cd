package lifecycle

import (
	"context"
	"time"

	"github.com/leeforge/moneykeeper/registry"
)

// Hook is a two-phase startup/shutdown unit.
//
// Setup runs once and may fail fatally. Teardown runs once, only if Setup
// completed, and its failures are logged and swallowed by the executor. A hook
// whose Setup fails halfway must release what it already acquired before
// returning the error.
type Hook interface {
	Name() string
	Setup(ctx context.Context, reg *registry.Registry) error
	Teardown(ctx context.Context, reg *registry.Registry) error
}

// Dependent is implemented by hooks that declare which registry entries they read
// and write. The executor derives the setup order from these declarations.
type Dependent interface {
	Requires() []string
	Provides() []string
}

// StartupAction runs once before any hook setup and produces scalar configuration
// values. A failure aborts startup with no fallback.
type StartupAction func(ctx context.Context, reg *registry.Registry) error

// Observer receives phase timings, e.g. for metrics.
type Observer interface {
	SetupDone(hook string, took time.Duration, err error)
	TeardownDone(hook string, took time.Duration, err error)
}

// HookFunc adapts plain functions to Hook and Dependent.
type HookFunc struct {
	HookName   string
	Needs      []string
	Gives      []string
	SetupFn    func(ctx context.Context, reg *registry.Registry) error
	TeardownFn func(ctx context.Context, reg *registry.Registry) error
}

func (h *HookFunc) Name() string       { return h.HookName }
func (h *HookFunc) Requires() []string { return h.Needs }
func (h *HookFunc) Provides() []string { return h.Gives }

func (h *HookFunc) Setup(ctx context.Context, reg *registry.Registry) error {
	if h.SetupFn == nil {
		return nil
	}
	return h.SetupFn(ctx, reg)
}

func (h *HookFunc) Teardown(ctx context.Context, reg *registry.Registry) error {
	if h.TeardownFn == nil {
		return nil
	}
	return h.TeardownFn(ctx, reg)
}

var (
	_ Hook      = (*HookFunc)(nil)
	_ Dependent = (*HookFunc)(nil)
)
