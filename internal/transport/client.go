package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality for one upstream source, with
// optional API-key authentication.
type Client struct {
	source string
	apiKey string
	http   *http.Client
	auth   Authenticator
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout. Full-surface Census
// pulls use a longer one than slice requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithAuth sets the authenticator and the key it applies. An empty key
// leaves requests unauthenticated even when an authenticator is set; the
// Census API serves limited but sufficient traffic without one.
func WithAuth(auth Authenticator, apiKey string) Option {
	return func(c *Client) {
		c.auth = auth
		c.apiKey = apiKey
	}
}

// New creates a transport client for the named source.
func New(source string, opts ...Option) *Client {
	c := &Client{
		source: source,
		http:   &http.Client{Timeout: DefaultHTTPTimeout},
		auth:   &NoAuth{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the upstream source name the client was built for.
func (c *Client) Source() string {
	return c.source
}

// Do performs an HTTP request with authentication applied.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		c.auth.Apply(req, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			Source:   c.source,
			Endpoint: req.URL.String(),
			Message:  "request failed",
			Err:      err,
		}
	}
	return resp, nil
}

// Get performs a GET request against the given URL.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON response into target.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return DecodeResponse(c.source, resp, target)
}
