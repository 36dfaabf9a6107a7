// Package postgrest is a small query builder for the Supabase REST (PostgREST) API.
//
// Every chain starts with Client.From and terminates in QueryBuilder.Execute, which
// either decodes the response into dest or returns an error (*Error for responses
// the API rejected).
package postgrest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB
)

// Config holds client configuration.
type Config struct {
	URL     string // Supabase project URL, without the /rest/v1 suffix
	APIKey  string // anon or service key, sent as the apikey header
	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client performs PostgREST calls against a single Supabase project.
type Client struct {
	restURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new PostgREST client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("supabase URL must be an absolute URL: %q", cfg.URL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		transport := http.DefaultTransport
		if base, ok := http.DefaultTransport.(*http.Transport); ok {
			cloned := base.Clone()
			if cloned.TLSClientConfig == nil {
				cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
			transport = cloned
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	return &Client{
		restURL:    strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// From starts a query against table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		table:  table,
		method: http.MethodGet,
		params: url.Values{},
	}
}

type tokenKey struct{}

// WithAccessToken makes calls issued with ctx run as the user owning token, so row level
// security applies to them. Without it the client authenticates with its API key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// AccessToken returns the user token carried by ctx, if any.
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (c *Client) bearer(ctx context.Context) string {
	if token := AccessToken(ctx); token != "" {
		return token
	}
	return c.apiKey
}
