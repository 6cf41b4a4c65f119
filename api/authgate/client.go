// Package authgate implements a client for the authgate v1 API.
package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/m-lab/go/flagx"

	v1 "github.com/m-lab/authgate/api/v1"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 15 * time.Second

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("authgate API returned 401 status code")

// ErrQueryFailed indicates a non-200 status code.
var ErrQueryFailed = errors.New("authgate API returned non-200 status code")

// ErrNoUserAgent is returned when the client has no user agent.
var ErrNoUserAgent = errors.New("client has no user-agent specified")

// Client is an authgate client.
type Client struct {
	// HTTPClient is the client that will perform the request. By default
	// it is initialized to http.DefaultClient.
	HTTPClient *http.Client

	// Timeout is the maximum amount of time we're willing to wait for the
	// server to respond.
	Timeout time.Duration

	// UserAgent is the mandatory user agent to be used.
	UserAgent string

	// Authorization is the bearer token sent with every request. Requests
	// are sent without an Authorization header when it is empty.
	Authorization string

	// BaseURL is the base url used to contact the authgate API.
	BaseURL *url.URL
}

// baseURL is the default base URL.
var baseURL = flagx.MustNewURL("http://localhost:8080/v1/")

func init() {
	flag.Var(&baseURL, "authgate.url", "The base url for the authgate API")
}

// NewClient creates a new Client instance. The userAgent must not be empty.
// NewClient sets the BaseURL to the -authgate.url flag.
func NewClient(userAgent string) *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		Timeout:    DefaultTimeout,
		UserAgent:  userAgent,
		BaseURL:    baseURL.URL,
	}
}

// WhoAmI returns the identity the server derived from the client's token.
func (c *Client) WhoAmI(ctx context.Context) (*v1.IdentityResult, error) {
	reply := &v1.IdentityResult{}
	status, err := c.fetch(ctx, "whoami", reply)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, reply.Error); err != nil {
		return nil, err
	}
	return reply, nil
}

// Private requests a resource under the private prefix.
func (c *Client) Private(ctx context.Context, resource string) (*v1.PrivateResult, error) {
	reply := &v1.PrivateResult{}
	status, err := c.fetch(ctx, path.Join("private", resource), reply)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, reply.Error); err != nil {
		return nil, err
	}
	return reply, nil
}

func checkStatus(status int, apiErr *v1.Error) error {
	if status == http.StatusOK {
		return nil
	}
	base := ErrQueryFailed
	if status == http.StatusUnauthorized {
		base = ErrUnauthorized
	}
	if apiErr != nil {
		return fmt.Errorf("%w: %s: %s", base, apiErr.Title, apiErr.Detail)
	}
	return fmt.Errorf("%w: %d", base, status)
}

// fetch requests the resource relative to BaseURL and decodes the response
// body into reply.
func (c *Client) fetch(ctx context.Context, resource string, reply interface{}) (int, error) {
	reqURL := *c.BaseURL
	reqURL.Path = path.Join(reqURL.Path, resource)
	data, status, err := c.get(ctx, reqURL.String())
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(data, reply); err != nil {
		return status, err
	}
	return status, nil
}

// get is an internal function used to perform the request.
func (c *Client) get(ctx context.Context, URL string) ([]byte, int, error) {
	reqctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqctx, http.MethodGet, URL, nil)
	if err != nil {
		// e.g. due to an invalid parameter.
		return nil, 0, err
	}
	if c.UserAgent == "" {
		// user agent is required.
		return nil, 0, ErrNoUserAgent
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if c.Authorization != "" {
		req.Header.Set("Authorization", "Bearer "+c.Authorization)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return b, resp.StatusCode, err
}
