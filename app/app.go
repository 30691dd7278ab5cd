// Package app assembles a service: lifecycle hooks, the HTTP router, serving
// and graceful shutdown.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/middleware"
	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/metrics"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// HealthPath answers 200 once the service is serving.
const HealthPath = "/healthz"

// Routes mounts service routes. It runs after every hook completed, so
// everything it resolves from reg is final.
type Routes func(r chi.Router, reg *registry.Registry) error

// App runs one service.
type App struct {
	name    string
	listen  Listen
	logger  logging.Logger
	metrics *metrics.Collector
	exec    *lifecycle.Executor
	routes  Routes
}

func New(name string, listen Listen, logger logging.Logger, routes Routes) *App {
	if logger == nil {
		logger = logging.Global()
	}
	collector := metrics.NewCollector(name)
	exec := lifecycle.NewExecutor(registry.New(), lifecycle.Options{
		Logger:   logger.Zap(),
		Observer: collector,
	})
	return &App{
		name:    name,
		listen:  listen,
		logger:  logger,
		metrics: collector,
		exec:    exec,
		routes:  routes,
	}
}

func (a *App) Name() string { return a.name }

// Register adds a hook. Hooks must be registered before Run.
func (a *App) Register(h lifecycle.Hook) error {
	return a.exec.Register(h)
}

// OnStartup adds a one-shot action that runs before every hook.
func (a *App) OnStartup(name string, action lifecycle.StartupAction, provides ...string) error {
	return a.exec.OnStartup(name, action, provides...)
}

// Registry exposes the registry, e.g. for tests.
func (a *App) Registry() *registry.Registry { return a.exec.Registry() }

// Metrics returns the service metrics.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Run starts the hooks, serves on the configured address until ctx is done
// and shuts down. A startup failure is returned before anything is served.
func (a *App) Run(ctx context.Context) error {
	handler, err := a.Start(ctx)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", a.listen.Addr())
	if err != nil {
		a.dispose(ctx)
		return apperrors.NewConnectivity("listen "+a.listen.Addr(), err)
	}
	return a.Serve(ctx, ln, handler)
}

// Start runs startup actions and hook setups, then builds the router.
func (a *App) Start(ctx context.Context) (http.Handler, error) {
	if err := a.exec.Run(ctx); err != nil {
		a.logger.Error("app.start.failed", zap.String("service", a.name), zap.Error(err))
		return nil, err
	}
	a.logger.Debug("app.hooks.ready",
		zap.String("service", a.name), zap.Strings("order", a.exec.SetupOrder()))

	handler, err := a.router()
	if err != nil {
		a.dispose(ctx)
		return nil, err
	}
	return handler, nil
}

// Serve serves handler on ln until ctx is done or serving fails. It then stops
// accepting, drains in-flight requests within the shutdown timeout and tears
// every hook down.
func (a *App) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: a.listen.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	a.logger.Info("app.serving", zap.String("service", a.name), zap.String("addr", ln.Addr().String()))

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("app.shutdown", zap.String("service", a.name))
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	timeout := a.listen.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Warn("app.drain.incomplete", zap.String("service", a.name), zap.Error(shutdownErr))
	}

	a.dispose(ctx)
	return err
}

// dispose tears the hooks down. Teardown failures are logged by the executor
// and never change the outcome.
func (a *App) dispose(ctx context.Context) {
	if err := a.exec.Dispose(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("app.dispose.incomplete", zap.String("service", a.name), zap.Error(err))
	}
}

func (a *App) router() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(
		middleware.TraceIDMiddleware(),
		middleware.TimingMiddleware(),
		logging.HTTPMiddleware(a.logger),
		logging.RecoveryMiddleware(a.logger),
		a.metrics.Middleware,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responder.NotFound(w, r, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responder.WriteError(w, r, http.StatusMethodNotAllowed, responder.NewError(responder.ErrCodeBadRequest, "method not allowed"))
	})

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		responder.OK(w, r, map[string]string{"service": a.name, "status": "ok"})
	})
	r.Method(http.MethodGet, metrics.Path, a.metrics.Handler())

	if a.routes != nil {
		if err := a.routes(r, a.exec.Registry()); err != nil {
			return nil, err
		}
	}
	return r, nil
}
