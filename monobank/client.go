// Package monobank is a minimal client for the Monobank personal API.
package monobank

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/httpclient"
	"github.com/leeforge/moneykeeper/registry"
)

const DefaultBaseURL = "https://api.monobank.ua"

// Key is the registry entry holding the shared client.
var Key = registry.NewKey[*Client]("monobank")

type Config struct {
	BaseURL string            `mapstructure:"base-url" json:"baseUrl" yaml:"base-url" default:"https://api.monobank.ua"`
	HTTP    httpclient.Config `mapstructure:"http" json:"http" yaml:"http"`
}

type Client struct {
	baseURL string
	http    *httpclient.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    httpclient.New("monobank", cfg.HTTP),
	}
}

// ClientInfo returns the account holder and accounts the token grants access to.
func (c *Client) ClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	if token == "" {
		return nil, apperrors.NewValidation("monobank token is required")
	}
	var info ClientInfo
	if err := c.http.GetJSON(ctx, c.baseURL+"/personal/client-info", tokenHeader(token), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetWebHook points the account's statement notifications at url. Monobank
// verifies the url with a GET before accepting it.
func (c *Client) SetWebHook(ctx context.Context, token, url string) error {
	if token == "" {
		return apperrors.NewValidation("monobank token is required")
	}
	return c.http.PostJSON(ctx, c.baseURL+"/personal/webhook", tokenHeader(token),
		webHookRequest{WebHookURL: url}, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func tokenHeader(token string) http.Header {
	h := http.Header{}
	h.Set("X-Token", token)
	return h
}
