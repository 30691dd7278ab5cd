// Package telegram sends notifications through a Telegram bot.
package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/httpclient"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// Key is the registry entry holding the shared bot.
var Key = registry.NewKey[*Bot]("bot")

type Config struct {
	Token    string            `mapstructure:"token" json:"token" yaml:"token"`
	Endpoint string            `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Debug    bool              `mapstructure:"debug" json:"debug" yaml:"debug"`
	HTTP     httpclient.Config `mapstructure:"http" json:"http" yaml:"http"`
}

type Bot struct {
	api    *tgbotapi.BotAPI
	http   *httpclient.Client
	logger *zap.Logger

	closeOnce sync.Once
}

// New authenticates the bot with getMe. The bot owns its HTTP transport.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, apperrors.NewRequired("telegram token")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := httpclient.New("telegram", cfg.HTTP)
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client.HTTP())
	if err != nil {
		_ = client.Close()
		return nil, apperrors.NewConnectivity("telegram", err)
	}
	api.Debug = cfg.Debug

	logger.Info("telegram.authorized", zap.String("username", api.Self.UserName))
	return &Bot{api: api, http: client, logger: logger}, nil
}

// Send posts a Markdown message to chatID. Telegram calls are not retried.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return apperrors.NewExternal("telegram", err).WithDetail("chat_id", chatID)
	}
	return nil
}

// Close stops update polling, if any, and releases connections.
func (b *Bot) Close() error {
	b.closeOnce.Do(func() {
		b.api.StopReceivingUpdates()
		_ = b.http.Close()
		b.logger.Debug("telegram.closed")
	})
	return nil
}
