package app

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/moneykeeper/auth"
	"github.com/leeforge/moneykeeper/discovery"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/middleware"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/postgres"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/leeforge/moneykeeper/spreadsheet"
	"github.com/leeforge/moneykeeper/user"
	"go.uber.org/zap"
)

// ServerName is the service name used in logs, metrics and the log file.
const ServerName = "server"

// Routes that skip authentication. Google redirects to the callback without a
// bearer token; the signed state identifies the user instead.
var serverPublicPaths = []string{
	"/user/signup",
	"/user/signin",
	spreadsheet.CallbackPath,
}

var serverRules = []auth.Rule{
	{Role: user.RoleUser, Path: "/user/me", Method: "GET"},
	{Role: user.RoleUser, Path: "/services/*", Method: "(GET)|(POST)"},
	{Role: user.RoleAdmin, Path: "/*", Method: ".*"},
}

var serverInherits = []auth.Inherit{{Role: user.RoleAdmin, Parent: user.RoleUser}}

// NewServer assembles the user facing server: tunnel discovery, the clients
// hook and the access hook.
func NewServer(s *ServerSettings, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Global()
	}
	a := New(ServerName, s.Server, logger, serverRoutes(s, logger))

	err := errors.Join(
		a.OnStartup("discovery", discovery.Action(discovery.Config{
			TunnelsURL:   s.Ngrok.API,
			PublicDomain: s.Ngrok.Domain,
			SecretKey:    s.SecretKey,
			HTTP:         s.Ngrok.HTTP,
		}, logger.Zap()), registry.ConstantsKey.Name()),
		a.Register(serverClients(s, logger.Zap())),
		a.Register(&auth.AccessHook{
			Rules:    serverRules,
			Inherits: serverInherits,
			TokenTTL: s.Access.TokenTTL,
			Logger:   logger.Zap(),
		}),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// serverClients opens every client the server handlers use. They are released
// together on teardown.
func serverClients(s *ServerSettings, logger *zap.Logger) lifecycle.Hook {
	batch := lifecycle.NewBatch("clients", logger)

	return &lifecycle.HookFunc{
		HookName: "clients",
		Needs:    []string{registry.ConstantsKey.Name()},
		Gives: []string{
			spreadsheet.Key.Name(), monobank.Key.Name(),
			postgres.Key.Name(), redis_client.Key.Name(), user.Key.Name(),
		},
		SetupFn: func(ctx context.Context, reg *registry.Registry) (err error) {
			defer func() {
				if err != nil {
					_ = batch.Release(context.WithoutCancel(ctx))
				}
			}()

			constants, err := registry.Resolve(reg, registry.ConstantsKey)
			if err != nil {
				return err
			}

			sheets := spreadsheet.New(s.Spreadsheet, constants.PublicURL)
			batch.AddCloser(spreadsheet.Key.Name(), sheets)
			mono := monobank.New(s.Monobank)
			batch.AddCloser(monobank.Key.Name(), mono)

			pg, err := postgres.Open(ctx, s.Postgres, logger)
			if err != nil {
				return err
			}
			batch.AddCloser(postgres.Key.Name(), pg)

			cache, err := redis_client.NewRedis(ctx, s.Redis, logger)
			if err != nil {
				return err
			}
			batch.AddCloser(redis_client.Key.Name(), cache)

			users := user.NewService(user.NewStore(pg), cache, user.WithLogger(logger))

			err = errors.Join(
				registry.Provide(reg, spreadsheet.Key, sheets),
				registry.Provide(reg, monobank.Key, mono),
				registry.Provide(reg, postgres.Key, pg),
				registry.Provide(reg, redis_client.Key, cache),
				registry.Provide(reg, user.Key, users),
			)
			if err != nil {
				return err
			}
			logger.Debug("clients.ready")
			return nil
		},
		TeardownFn: func(ctx context.Context, _ *registry.Registry) error {
			return batch.Release(ctx)
		},
	}
}

func serverRoutes(s *ServerSettings, logger logging.Logger) Routes {
	return func(r chi.Router, reg *registry.Registry) error {
		h, err := newServerHandlers(s, reg, logger)
		if err != nil {
			return err
		}
		enforcer, err := registry.Resolve(reg, auth.EnforcerKey)
		if err != nil {
			return err
		}
		cache, err := registry.Resolve(reg, redis_client.Key)
		if err != nil {
			return err
		}

		authn := auth.NewAuthenticator(h.issuer, logger, serverPublicPaths...)
		chain := auth.NewChain().
			Use("authentication", authn.Middleware).
			Use("authorization", auth.NewAuthorizer(enforcer, authn.IsPublic, logger).Middleware)
		signUpLimiter := middleware.NewRateLimiter("signup", cache, s.Access.SignUpLimit, logger)
		signInLimiter := middleware.NewRateLimiter("signin", cache, s.Access.SignInLimit, logger)

		r.Group(func(r chi.Router) {
			r.Use(chain.Middlewares()...)

			r.Route("/user", func(r chi.Router) {
				r.With(signUpLimiter.Middleware).Post("/signup", h.signUp)
				r.With(signInLimiter.Middleware).Post("/signin", h.signIn)
				r.Get("/me", h.me)
			})
			r.Route("/services", func(r chi.Router) {
				r.Get("/spreadsheet/auth", h.spreadsheetAuth)
				r.Get("/spreadsheet/callback", h.spreadsheetCallback)
				r.Post("/monobank/connect", h.monobankConnect)
				r.Post("/telegram/connect", h.telegramConnect)
			})
		})
		return nil
	}
}
