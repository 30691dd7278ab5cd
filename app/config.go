package app

import (
	"net"
	"strconv"
	"time"

	"github.com/leeforge/moneykeeper/config"
	"github.com/leeforge/moneykeeper/httpclient"
	"github.com/leeforge/moneykeeper/logging"
	"github.com/leeforge/moneykeeper/middleware"
	"github.com/leeforge/moneykeeper/monobank"
	"github.com/leeforge/moneykeeper/postgres"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/spreadsheet"
	"github.com/leeforge/moneykeeper/telegram"
)

// Listen is the HTTP listener of one service.
type Listen struct {
	Host              string        `mapstructure:"host" json:"host" yaml:"host" validate:"required"`
	Port              int           `mapstructure:"port" json:"port" yaml:"port" validate:"min=0,max=65535"`
	ReadHeaderTimeout time.Duration `mapstructure:"read-header-timeout" json:"readHeaderTimeout" yaml:"read-header-timeout" default:"10s"`
	// ShutdownTimeout bounds draining of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" json:"shutdownTimeout" yaml:"shutdown-timeout" default:"15s"`
}

func (l Listen) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

type NgrokSettings struct {
	// Domain overrides tunnel discovery (NGROK_DOMAIN).
	Domain string `mapstructure:"domain" json:"domain" yaml:"domain"`
	// API is the agent endpoint listing tunnels (NGROK_API).
	API  string            `mapstructure:"api" json:"api" yaml:"api" default:"http://ngrok:4040/api/tunnels"`
	HTTP httpclient.Config `mapstructure:"http" json:"http" yaml:"http"`
}

type AccessSettings struct {
	TokenTTL    time.Duration              `mapstructure:"token-ttl" json:"tokenTtl" yaml:"token-ttl" default:"24h"`
	StateTTL    time.Duration              `mapstructure:"state-ttl" json:"stateTtl" yaml:"state-ttl" default:"10m"`
	SignUpLimit middleware.RateLimitConfig `mapstructure:"signup-limit" json:"signupLimit" yaml:"signup-limit"`
	SignInLimit middleware.RateLimitConfig `mapstructure:"signin-limit" json:"signinLimit" yaml:"signin-limit"`
}

// ServerSettings configure the user facing server.
type ServerSettings struct {
	Server    Listen         `mapstructure:"server" json:"server" yaml:"server"`
	SecretKey string         `mapstructure:"secret-key" json:"-" yaml:"secret-key"`
	Ngrok     NgrokSettings  `mapstructure:"ngrok" json:"ngrok" yaml:"ngrok"`
	Access    AccessSettings `mapstructure:"access" json:"access" yaml:"access"`
	// WebhookURL is the public base URL of the collector. Defaults to the
	// discovered public URL.
	WebhookURL string `mapstructure:"webhook-url" json:"webhookUrl" yaml:"webhook-url"`

	Log         logging.Config      `mapstructure:"log" json:"log" yaml:"log"`
	Postgres    postgres.Config     `mapstructure:"postgres" json:"postgres" yaml:"postgres"`
	Redis       redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
	Monobank    monobank.Config     `mapstructure:"monobank" json:"monobank" yaml:"monobank"`
	Spreadsheet spreadsheet.Config  `mapstructure:"spreadsheet" json:"spreadsheet" yaml:"spreadsheet"`
}

// CollectorSettings configure the webhook collector.
type CollectorSettings struct {
	Collector Listen `mapstructure:"collector" json:"collector" yaml:"collector"`

	Log      logging.Config      `mapstructure:"log" json:"log" yaml:"log"`
	Postgres postgres.Config     `mapstructure:"postgres" json:"postgres" yaml:"postgres"`
	Redis    redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
	Telegram telegram.Config     `mapstructure:"telegram" json:"telegram" yaml:"telegram"`
}

// LoadServerSettings binds the server settings. SERVER_HOST and SERVER_PORT
// default to localhost:5000.
func LoadServerSettings(cfg config.ConfigInterface) (*ServerSettings, error) {
	s := &ServerSettings{
		Server: Listen{Host: "localhost", Port: 5000},
		Log:    logging.Config{Service: "server"},
	}
	if err := cfg.BindWithDefaults(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadCollectorSettings binds the collector settings. COLLECTOR_HOST and
// COLLECTOR_PORT default to localhost:5010.
func LoadCollectorSettings(cfg config.ConfigInterface) (*CollectorSettings, error) {
	s := &CollectorSettings{
		Collector: Listen{Host: "localhost", Port: 5010},
		Log:       logging.Config{Service: "collector"},
	}
	if err := cfg.BindWithDefaults(s); err != nil {
		return nil, err
	}
	return s, nil
}
