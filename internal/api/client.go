package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"falcon-dedupe/internal/auth"
)

const (
	// DefaultBaseURL is the US-1 Falcon API endpoint
	DefaultBaseURL = "https://api.crowdstrike.com"

	// DefaultTimeout bounds a single API call including the token fetch
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is requests per second; Falcon allows 6000 per minute per client
	DefaultRateLimit = 50

	tokenPath = "/oauth2/token"
	userAgent = "falcon-dedupe"
)

// Client represents a Falcon API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Creds      *auth.CredentialInfo
	Limiter    *rate.Limiter

	timeout   time.Duration
	transport http.RoundTripper
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithCredentials sets the authentication credentials
func WithCredentials(creds *auth.CredentialInfo) ClientOption {
	return func(c *Client) {
		c.Creds = creds
	}
}

// WithRateLimit sets the maximum number of requests per second.
// A value <= 0 disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.Limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTransport sets the round tripper used for both the token and API calls
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// NewClient creates a new Falcon API client authenticated with OAuth2 client credentials
func NewClient(options ...ClientOption) (*Client, error) {
	client := &Client{
		BaseURL: DefaultBaseURL,
		Limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		timeout: DefaultTimeout,
	}

	for _, option := range options {
		option(client)
	}

	// If no credentials are provided, try to get them from environment
	if client.Creds == nil {
		creds, err := auth.GetCredentials()
		if err != nil {
			return nil, err
		}
		client.Creds = creds
	}
	if err := client.Creds.Validate(); err != nil {
		return nil, err
	}

	transport := client.transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
	base := &http.Client{Timeout: client.timeout, Transport: transport}

	cc := &clientcredentials.Config{
		ClientID:     client.Creds.ClientID,
		ClientSecret: client.Creds.ClientSecret,
		TokenURL:     client.BaseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if client.Creds.MemberCID != "" {
		cc.EndpointParams = url.Values{"member_cid": {client.Creds.MemberCID}}
	}

	// The token fetch goes through the same transport as the API calls
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client.HTTPClient = cc.Client(ctx)
	client.HTTPClient.Timeout = client.timeout

	return client, nil
}

// Request makes a request to the Falcon API and returns the raw response body.
// Non-success statuses are returned as *ResponseError.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit")
		}
	}

	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, errors.Wrapf(err, "authenticating with %s", c.BaseURL)
		}
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode >= 400 {
		return nil, newResponseError(resp, respBody)
	}

	return respBody, nil
}

// newResponseError builds a ResponseError from a failed response, keeping
// every error pair the envelope carries
func newResponseError(resp *http.Response, body []byte) *ResponseError {
	respErr := &ResponseError{
		StatusCode: resp.StatusCode,
		TraceID:    resp.Header.Get("X-Cs-Traceid"),
	}

	var envelope Response
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		respErr.Errors = envelope.Errors
		if envelope.Meta.TraceID != "" {
			respErr.TraceID = envelope.Meta.TraceID
		}
	} else {
		respErr.Body = strings.TrimSpace(string(body))
	}

	// Check if this might be an API scope issue
	if resp.StatusCode == http.StatusForbidden {
		respErr.Hint = auth.CheckTokenScope(respErr.Error())
	}
	return respErr
}
