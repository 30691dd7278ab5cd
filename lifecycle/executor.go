package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

const (
	DefaultSetupTimeout    = 30 * time.Second
	DefaultTeardownTimeout = 10 * time.Second
)

// Options configures an Executor.
type Options struct {
	Logger          *zap.Logger
	Observer        Observer
	SetupTimeout    time.Duration // per hook, default 30s
	TeardownTimeout time.Duration // per hook, default 10s
}

type startupAction struct {
	name     string
	fn       StartupAction
	provides []string
}

// Executor runs startup actions and two-phase hooks against one registry.
type Executor struct {
	reg      *registry.Registry
	logger   *zap.Logger
	observer Observer
	opts     Options

	mu        sync.Mutex
	hooks     []Hook
	names     map[string]struct{}
	actions   []startupAction
	order     []string
	completed []Hook
	started   bool
	disposed  bool
}

// NewExecutor creates an executor writing into reg.
func NewExecutor(reg *registry.Registry, opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = DefaultSetupTimeout
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = DefaultTeardownTimeout
	}
	return &Executor{
		reg:      reg,
		logger:   opts.Logger,
		observer: opts.Observer,
		opts:     opts,
		names:    make(map[string]struct{}),
	}
}

// Registry returns the registry hooks write into.
func (e *Executor) Registry() *registry.Registry { return e.reg }

// Register appends a hook. Must be called before Run.
func (e *Executor) Register(h Hook) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return apperrors.NewConfiguration(fmt.Sprintf("hook %q registered after run", h.Name()))
	}
	name := h.Name()
	if _, exists := e.names[name]; exists {
		return apperrors.NewConfiguration(fmt.Sprintf("hook %q already registered", name))
	}
	e.names[name] = struct{}{}
	e.hooks = append(e.hooks, h)
	e.logger.Debug("hook registered", zap.String("hook", name))
	return nil
}

// OnStartup registers a one-shot startup action. Must be called before Run.
// provides names the registry entries the action writes; hooks may require them.
func (e *Executor) OnStartup(name string, action StartupAction, provides ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return apperrors.NewConfiguration(fmt.Sprintf("startup action %q registered after run", name))
	}
	e.actions = append(e.actions, startupAction{name: name, fn: action, provides: provides})
	return nil
}

// Run executes startup actions, then every hook's setup strictly in dependency
// order. On the first failure the hooks that already completed setup are torn
// down in reverse order and the failure is returned. On success the registry is
// sealed.
func (e *Executor) Run(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return apperrors.NewConfiguration("executor already ran")
	}
	e.started = true
	startTime := time.Now()

	// Ordering errors are reported before any startup action does I/O.
	ordered, err := e.resolveOrder()
	if err != nil {
		return fmt.Errorf("dependency resolution failed: %w", err)
	}
	for _, h := range ordered {
		e.order = append(e.order, h.Name())
	}
	e.logger.Info("dependency resolution completed", zap.Strings("order", e.order))

	for _, action := range e.actions {
		if err := action.fn(ctx, e.reg); err != nil {
			return fmt.Errorf("startup action %q: %w", action.name, err)
		}
		for _, name := range action.provides {
			if !e.reg.Has(name) {
				return apperrors.NewConfiguration(
					fmt.Sprintf("startup action %q declared %q but did not provide it", action.name, name))
			}
		}
		e.logger.Debug("startup action completed", zap.String("action", action.name))
	}

	for _, h := range ordered {
		if err := ctx.Err(); err != nil {
			e.unwind(ctx)
			return fmt.Errorf("setup canceled before %q: %w", h.Name(), err)
		}
		if err := e.setup(ctx, h); err != nil {
			e.logger.Error("hook setup failed, unwinding",
				zap.String("hook", h.Name()), zap.Error(err))
			e.unwind(ctx)
			return fmt.Errorf("setup %q: %w", h.Name(), err)
		}
	}

	e.reg.Seal()
	e.logger.Info("setup completed",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("hooks", len(ordered)),
		zap.Int("entries", e.reg.Len()),
	)
	return nil
}

// Dispose tears down every hook that completed setup, in reverse order. Failures
// are logged and joined into the returned error; they never stop the unwind.
// Calling Dispose more than once is a no-op.
func (e *Executor) Dispose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil
	}
	e.disposed = true
	err := e.unwind(ctx)
	e.logger.Info("teardown completed", zap.Bool("clean", err == nil))
	return err
}

// SetupOrder returns the order hooks were (or will be) set up in.
func (e *Executor) SetupOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

// --- Internal ---

func (e *Executor) setup(ctx context.Context, h Hook) (err error) {
	hookCtx, cancel := context.WithTimeout(ctx, e.opts.SetupTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternal(fmt.Sprintf("setup panicked: %v", r))
		}
		if e.observer != nil {
			e.observer.SetupDone(h.Name(), time.Since(start), err)
		}
	}()

	if err = h.Setup(hookCtx, e.reg); err != nil {
		return err
	}

	// From here on the hook owns resources, so it takes part in unwinding.
	e.completed = append(e.completed, h)
	e.logger.Debug("hook setup completed",
		zap.String("hook", h.Name()), zap.Duration("took", time.Since(start)))

	if d, ok := h.(Dependent); ok {
		for _, name := range d.Provides() {
			if !e.reg.Has(name) {
				return apperrors.NewConfiguration(
					fmt.Sprintf("hook %q declared %q but did not provide it", h.Name(), name))
			}
		}
	}
	return nil
}

func (e *Executor) unwind(ctx context.Context) error {
	var errs []error
	for i := len(e.completed) - 1; i >= 0; i-- {
		h := e.completed[i]
		if err := e.teardown(ctx, h); err != nil {
			e.logger.Error("hook teardown failed",
				zap.String("hook", h.Name()), zap.Error(err))
			errs = append(errs, apperrors.NewTeardown(h.Name(), err))
			continue
		}
		e.logger.Debug("hook torn down", zap.String("hook", h.Name()))
	}
	e.completed = nil
	return errors.Join(errs...)
}

func (e *Executor) teardown(ctx context.Context, h Hook) (err error) {
	// Teardown must run even when the caller's context is already canceled.
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.TeardownTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panicked: %v", r)
		}
		if e.observer != nil {
			e.observer.TeardownDone(h.Name(), time.Since(start), err)
		}
	}()
	return h.Teardown(hookCtx, e.reg)
}

func (e *Executor) fromStartup(name string) bool {
	for _, action := range e.actions {
		for _, p := range action.provides {
			if p == name {
				return true
			}
		}
	}
	return false
}

// resolveOrder sorts hooks topologically by their Requires/Provides
// declarations. Registration order breaks ties, so hooks without declarations
// keep the order they were registered in.
func (e *Executor) resolveOrder() ([]Hook, error) {
	providers := make(map[string]int)
	for i, h := range e.hooks {
		d, ok := h.(Dependent)
		if !ok {
			continue
		}
		for _, name := range d.Provides() {
			if prev, exists := providers[name]; exists {
				return nil, apperrors.NewConfiguration(fmt.Sprintf(
					"%q provided by both %q and %q", name, e.hooks[prev].Name(), h.Name()))
			}
			providers[name] = i
		}
	}

	inDegree := make([]int, len(e.hooks))
	dependents := make([][]int, len(e.hooks))
	for i, h := range e.hooks {
		d, ok := h.(Dependent)
		if !ok {
			continue
		}
		for _, name := range d.Requires() {
			p, exists := providers[name]
			if !exists {
				if e.reg.Has(name) || e.fromStartup(name) {
					continue
				}
				return nil, apperrors.NewConfiguration(fmt.Sprintf(
					"hook %q requires %q which no hook provides", h.Name(), name))
			}
			if p == i {
				continue
			}
			inDegree[i]++
			dependents[p] = append(dependents[p], i)
		}
	}

	done := make([]bool, len(e.hooks))
	order := make([]Hook, 0, len(e.hooks))
	for len(order) < len(e.hooks) {
		next := -1
		for i := range e.hooks {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, apperrors.NewConfiguration("circular dependency detected")
		}
		done[next] = true
		order = append(order, e.hooks[next])
		for _, dep := range dependents[next] {
			inDegree[dep]--
		}
	}
	return order, nil
}
