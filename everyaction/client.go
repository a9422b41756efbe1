// ABOUTME: EveryAction REST transport with classification-driven retries
// ABOUTME: Issues authenticated JSON calls, logs every response and retries 429/5xx/network failures
package everyaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the versioned REST root of the EveryAction API.
const DefaultBaseURL = "https://api.securevan.com/v4/"

// Options configures a Client.
type Options struct {
	BaseURL    string
	AppName    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// MaxAttempts is the total number of tries per call. Defaults to 7.
	MaxAttempts int
	// BackoffFactor is the delay before the first retry. Defaults to 2s.
	BackoffFactor time.Duration
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
}

// Client talks to the EveryAction API.
type Client struct {
	baseURL       string
	creds         credentials
	httpClient    *http.Client
	log           zerolog.Logger
	limiter       *rate.Limiter
	maxAttempts   int
	backoffFactor time.Duration
	randN         func(int64) int64
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// New creates a Client. AppName and APIKey are required.
func New(opts Options) (*Client, error) {
	if opts.AppName == "" || opts.APIKey == "" {
		return nil, fmt.Errorf("app name and api key are required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 60 * time.Second,
			// people/find answers 302 with the match in the body
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	factor := opts.BackoffFactor
	if factor <= 0 {
		factor = DefaultBackoffFactor
	}

	return &Client{
		baseURL:       baseURL,
		creds:         newCredentials(opts.AppName, opts.APIKey),
		httpClient:    httpClient,
		log:           logger.With().Str("component", "everyaction").Logger(),
		limiter:       rate.NewLimiter(limit, 1),
		maxAttempts:   maxAttempts,
		backoffFactor: factor,
	}, nil
}

// Call performs one logical API call, retrying retriable failures.
// body is JSON-encoded when non-nil. A non-retriable failure, or a retriable
// one that outlives the attempt ceiling, is returned as *APIError.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any, query url.Values) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var (
		attempts int
		result   *Response
	)

	err := retry.Do(ctx, newBackoff(c.backoffFactor, c.maxAttempts, c.randN), func(ctx context.Context) error {
		attempts++

		resp, err := c.do(ctx, method, endpoint, payload, query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("method", method).Str("endpoint", endpoint).
				Int("attempt", attempts).Msg("request failed")
			return retry.RetryableError(&APIError{
				Kind:     KindRetriable,
				Method:   method,
				Endpoint: endpoint,
				Err:      err,
			})
		}

		apiErr := classify(resp)
		if apiErr == nil {
			result = resp
			return nil
		}

		apiErr.Method = method
		apiErr.Endpoint = endpoint
		apiErr.Attempts = attempts
		if apiErr.Kind == KindRetriable {
			c.log.Warn().Str("method", method).Str("endpoint", endpoint).
				Int("status", resp.StatusCode).Int("attempt", attempts).Msg("retriable response")
			return retry.RetryableError(apiErr)
		}
		return apiErr
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == KindRetriable {
			detail := apiErr.Message
			if detail == "" && apiErr.Err != nil {
				detail = apiErr.Err.Error()
			}
			return nil, &APIError{
				Kind:       KindFatal,
				Method:     method,
				Endpoint:   endpoint,
				StatusCode: apiErr.StatusCode,
				Message:    "retries exhausted: " + detail,
				Body:       apiErr.Body,
				Attempts:   attempts,
				Err:        apiErr,
			}
		}
		return nil, err
	}

	return result, nil
}

// do sends a single request and reads the whole response.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, query url.Values) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.baseURL + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.creds.apply(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Info().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", httpResp.StatusCode).
		Str("body", string(data)).
		Interface("request_headers", redactHeaders(req.Header)).
		Msg("API response")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}
