package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/http/binding"
	"github.com/leeforge/moneykeeper/http/responder"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/postgres"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/reference"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/leeforge/moneykeeper/telegram"
	"github.com/leeforge/moneykeeper/transaction"
	"github.com/leeforge/moneykeeper/user"
	"go.uber.org/zap"
)

const CollectorName = "collector"

// NewCollector assembles the webhook collector: the clients hook, then the
// reference data primer. Webhook routes carry no credentials.
func NewCollector(s *CollectorSettings, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Global()
	}
	a := New(CollectorName, s.Collector, logger, collectorRoutes(logger))

	err := errors.Join(
		a.Register(collectorClients(s, logger.Zap())),
		a.Register(reference.NewPrimer(logger.Zap())),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func collectorClients(s *CollectorSettings, logger *zap.Logger) lifecycle.Hook {
	batch := lifecycle.NewBatch("clients", logger)

	return &lifecycle.HookFunc{
		HookName: "clients",
		Gives: []string{
			telegram.Key.Name(), postgres.Key.Name(), redis_client.Key.Name(),
			transaction.Key.Name(), user.Key.Name(),
		},
		SetupFn: func(ctx context.Context, reg *registry.Registry) (err error) {
			defer func() {
				if err != nil {
					_ = batch.Release(context.WithoutCancel(ctx))
				}
			}()

			bot, err := telegram.New(ctx, s.Telegram, logger)
			if err != nil {
				return err
			}
			batch.AddCloser(telegram.Key.Name(), bot)

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

			transactions := transaction.NewService(transaction.NewStore(pg), reference.NewCategories(cache), logger)
			users := user.NewService(user.NewStore(pg), cache, user.WithLogger(logger))

			err = errors.Join(
				registry.Provide(reg, telegram.Key, bot),
				registry.Provide(reg, postgres.Key, pg),
				registry.Provide(reg, redis_client.Key, cache),
				registry.Provide(reg, transaction.Key, transactions),
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

// Notifier delivers a text message to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Recorder stores statement items.
type Recorder interface {
	Record(ctx context.Context, userID int64, account string, item monobank.StatementItem) (*transaction.Transaction, bool, error)
}

// Profiles resolves users.
type Profiles interface {
	Get(ctx context.Context, id int64) (*user.User, error)
}

func collectorRoutes(logger logging.Logger) Routes {
	return func(r chi.Router, reg *registry.Registry) error {
		bot, err := registry.Resolve(reg, telegram.Key)
		if err != nil {
			return err
		}
		transactions, err := registry.Resolve(reg, transaction.Key)
		if err != nil {
			return err
		}
		users, err := registry.Resolve(reg, user.Key)
		if err != nil {
			return err
		}
		mountWebhook(r, &webhookHandler{
			transactions: transactions,
			users:        users,
			notifier:     bot,
			logger:       logger,
		})
		return nil
	}
}

func mountWebhook(r chi.Router, h *webhookHandler) {
	r.Get("/monobank/{userID}", h.verify)
	r.Post("/monobank/{userID}", h.receive)
}

type webhookHandler struct {
	transactions Recorder
	users        Profiles
	notifier     Notifier
	logger       logging.Logger
}

// verify answers the GET Monobank sends when the webhook is registered.
func (h *webhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	if _, err := userIDParam(r); err != nil {
		responder.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// receive records a statement item and notifies the owner when the item is
// new and a chat is linked. Notification failures do not fail the webhook,
// otherwise Monobank would redeliver an already recorded item.
func (h *webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	var event monobank.WebHookEvent
	if err := binding.JSON(r, &event); err != nil {
		bindFailed(w, r, err)
		return
	}
	if event.Type != monobank.EventStatementItem {
		responder.OK(w, r, map[string]bool{"recorded": false})
		return
	}

	owner, err := h.users.Get(r.Context(), userID)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}
	t, created, err := h.transactions.Record(r.Context(), owner.ID, event.Data.Account, event.Data.StatementItem)
	if err != nil {
		responder.Fail(w, r, err)
		return
	}

	if created && owner.TelegramChatID != 0 {
		if err := h.notifier.Send(r.Context(), owner.TelegramChatID, t.Summary()); err != nil {
			logging.WithContext(h.logger, r.Context()).Warn("webhook.notify.failed",
				zap.Int64("user_id", owner.ID), zap.Error(err))
		}
	}
	responder.OK(w, r, map[string]bool{"recorded": created})
}

func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("user", raw)
	}
	return id, nil
}
