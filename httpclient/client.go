// Package httpclient is the outbound HTTP transport shared by the external API
// clients. Every request is a single attempt bounded by the client timeout.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/json"
)

const (
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 4 << 10
)

type Config struct {
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" default:"10s"`
	MaxIdleConns    int           `mapstructure:"max-idle-conns" json:"maxIdleConns" yaml:"max-idle-conns" default:"100"`
	IdleConnTimeout time.Duration `mapstructure:"idle-conn-timeout" json:"idleConnTimeout" yaml:"idle-conn-timeout" default:"90s"`
}

// Client wraps an *http.Client owned by one external service client.
type Client struct {
	service string
	http    *http.Client

	closeOnce sync.Once
}

// New returns a client named after the external service it talks to; the name
// appears in every error.
func New(service string, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	return &Client{
		service: service,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
	}
}

// HTTP exposes the underlying client for libraries that take one.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// Do sends req once. Non-2xx responses are returned as external errors carrying
// the status and a prefix of the body; the response body is then closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewExternal(c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.NewExternal(c.service,
			fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))).
			WithDetail("status", resp.StatusCode)
	}
	return resp, nil
}

// GetJSON decodes the body of a GET request into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	return c.DoJSON(ctx, http.MethodGet, url, header, nil, out)
}

// PostJSON encodes in as the request body and decodes the response into out.
// Either may be nil.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	return c.DoJSON(ctx, http.MethodPost, url, header, in, out)
}

func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewInternal("failed to encode request body").WithInnerError(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.NewExternal(c.service, err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternal(c.service, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Close drops idle connections. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(c.http.CloseIdleConnections)
	return nil
}
