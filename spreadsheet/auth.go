// Package spreadsheet authorizes users against Google Sheets through OAuth2.
package spreadsheet

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/httpclient"
	"github.com/leeforge/moneykeeper/registry"
	"golang.org/x/oauth2"
)

// Key is the registry entry holding the shared auth client.
var Key = registry.NewKey[*Auth]("spreadsheet_auth")

// CallbackPath is the server route Google redirects back to.
const CallbackPath = "/services/spreadsheet/callback"

// Endpoint is Google's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

type Config struct {
	ClientID     string            `mapstructure:"client-id" json:"clientId" yaml:"client-id"`
	ClientSecret string            `mapstructure:"client-secret" json:"clientSecret" yaml:"client-secret"`
	AuthURL      string            `mapstructure:"auth-url" json:"authUrl" yaml:"auth-url"`
	TokenURL     string            `mapstructure:"token-url" json:"tokenUrl" yaml:"token-url"`
	HTTP         httpclient.Config `mapstructure:"http" json:"http" yaml:"http"`
}

// Auth builds consent URLs and exchanges authorization codes for tokens.
type Auth struct {
	oauth *oauth2.Config
	http  *httpclient.Client
}

// New returns an Auth whose redirect URL lives under publicURL, the externally
// reachable base URL of the server.
func New(cfg Config, publicURL string) *Auth {
	endpoint := Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &Auth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  strings.TrimRight(publicURL, "/") + CallbackPath,
			Scopes:       Scopes,
		},
		http: httpclient.New("google", cfg.HTTP),
	}
}

// AuthCodeURL returns the consent page URL. state is echoed back on the callback.
func (a *Auth) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// RedirectURL is where Google sends the user after consent.
func (a *Auth) RedirectURL() string {
	return a.oauth.RedirectURL
}

// Exchange trades an authorization code for a token using the shared transport.
func (a *Auth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, apperrors.NewValidation("authorization code is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http.HTTP())
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.NewExternal("google", err)
	}
	return token, nil
}

// Client returns an HTTP client that authorizes requests with token and
// refreshes it when it expires.
func (a *Auth) Client(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http.HTTP())
	return a.oauth.Client(ctx, token)
}

// Close releases idle connections.
func (a *Auth) Close() error {
	return a.http.Close()
}
