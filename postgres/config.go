package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Config describes the relational store connection.
type Config struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host" default:"localhost"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" json:"user" yaml:"user" default:"postgres"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	Database string `mapstructure:"database" json:"database" yaml:"database" default:"moneykeeper"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode" yaml:"sslmode" default:"disable"`

	MaxConns         int32         `mapstructure:"max-conns" json:"maxConns" yaml:"max-conns" default:"10"`
	MinConns         int32         `mapstructure:"min-conns" json:"minConns" yaml:"min-conns" default:"1"`
	ConnectTimeout   time.Duration `mapstructure:"connect-timeout" json:"connectTimeout" yaml:"connect-timeout" default:"5s"`
	StatementTimeout time.Duration `mapstructure:"statement-timeout" json:"statementTimeout" yaml:"statement-timeout"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min-conns (%d) exceeds max-conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ConnectionString renders the config as a postgres URL understood by pgxpool.
func (c *Config) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
