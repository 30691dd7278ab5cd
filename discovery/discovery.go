// Package discovery resolves the public URL of the server from the ngrok agent
// API at startup.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/httpclient"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

const (
	DefaultTunnelsURL = "http://ngrok:4040/api/tunnels"

	// DomainEnv is exported once the public URL is known so child processes and
	// later lookups see the same value.
	DomainEnv = "NGROK_DOMAIN"

	// The agent lists an https and an http tunnel; the second one is used.
	expectedTunnels = 2
	selectedTunnel  = 1
)

type Config struct {
	// TunnelsURL is the ngrok agent endpoint listing active tunnels.
	TunnelsURL string
	// PublicDomain skips the agent lookup when set.
	PublicDomain string
	SecretKey    string
	HTTP         httpclient.Config
}

type tunnel struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
}

type tunnelsResponse struct {
	Tunnels []tunnel `json:"tunnels"`
}

// Action returns the startup action that stores registry.Constants.
func Action(cfg Config, logger *zap.Logger) lifecycle.StartupAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, reg *registry.Registry) error {
		if cfg.SecretKey == "" {
			return apperrors.NewRequired("SECRET_KEY")
		}

		publicURL := strings.TrimSpace(cfg.PublicDomain)
		if publicURL == "" {
			var err error
			if publicURL, err = lookup(ctx, cfg); err != nil {
				return err
			}
		}
		logger.Debug("discovery.forwarding", zap.String("public_url", publicURL))

		if err := os.Setenv(DomainEnv, publicURL); err != nil {
			return apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "export "+DomainEnv)
		}
		return registry.Provide(reg, registry.ConstantsKey, registry.Constants{
			PublicURL: publicURL,
			SecretKey: cfg.SecretKey,
		})
	}
}

func lookup(ctx context.Context, cfg Config) (string, error) {
	url := cfg.TunnelsURL
	if url == "" {
		url = DefaultTunnelsURL
	}

	client := httpclient.New("ngrok", cfg.HTTP)
	defer client.Close()

	var resp tunnelsResponse
	if err := client.GetJSON(ctx, url, nil, &resp); err != nil {
		return "", apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "tunnel discovery failed")
	}
	if len(resp.Tunnels) != expectedTunnels {
		return "", apperrors.NewConfiguration(fmt.Sprintf(
			"expected %d tunnels, agent reported %d", expectedTunnels, len(resp.Tunnels)))
	}
	publicURL := resp.Tunnels[selectedTunnel].PublicURL
	if publicURL == "" {
		return "", apperrors.NewConfiguration("selected tunnel has no public_url")
	}
	return publicURL, nil
}
