// Package indexer talks to the Alchemy enhanced JSON-RPC API for ERC-20 balances
// and token metadata.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/metrics"
)

// JSON-RPC methods used against the indexing API.
const (
	MethodTokenBalances = "alchemy_getTokenBalances"
	MethodTokenMetadata = "alchemy_getTokenMetadata"
	MethodChainID       = "eth_chainId"
)

// Alchemy signals throttling either with HTTP 429 or inside the JSON-RPC error object.
const (
	rpcCodeRateLimited   = 429
	rpcCodeLimitExceeded = -32005
	providerName         = "alchemy"
)

// Options configures a Client.
type Options struct {
	Endpoint   string // full URL including the API key
	RPS        int
	MaxRetries int
	Timeout    time.Duration
	Metrics    *metrics.Metrics
}

// OptionsFromConfig derives client options from application config.
func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics) Options {
	return Options{
		Endpoint:   cfg.IndexerEndpoint(),
		RPS:        cfg.RateLimitRPS,
		MaxRetries: cfg.MaxRetries,
		Timeout:    config.IndexerRequestTimeout,
		Metrics:    m,
	}
}

// Client is a rate-limited, circuit-broken JSON-RPC client for the indexing API.
type Client struct {
	http     *resty.Client
	endpoint string
	rl       *RateLimiter
	breaker  *CircuitBreaker
	metrics  *metrics.Metrics
	nextID   atomic.Uint64
}

// New builds a Client. Transient HTTP failures (429, 5xx, transport errors) are retried up
// to opts.MaxRetries times, honoring Retry-After; each attempt waits on the rate limiter.
func New(opts Options) *Client {
	if opts.RPS < 1 {
		opts.RPS = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.IndexerRequestTimeout
	}

	rl := NewRateLimiter(providerName, opts.RPS)

	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(config.RetryWaitMin).
		SetRetryMaxWaitTime(config.RetryWaitMax).
		AddRetryCondition(shouldRetry).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp == nil {
				return 0, nil
			}
			return parseRetryAfter(resp.Header()), nil
		}).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rl.Wait(req.Context())
		})

	slog.Info("indexer client created",
		"upstream", providerName,
		"endpoint", redactEndpoint(opts.Endpoint),
		"rps", opts.RPS,
		"maxRetries", opts.MaxRetries,
		"timeout", opts.Timeout,
	)

	return &Client{
		http:     httpClient,
		endpoint: opts.Endpoint,
		rl:       rl,
		breaker:  NewCircuitBreaker(providerName, config.CircuitBreakerThreshold, config.CircuitBreakerCooldown),
		metrics:  opts.Metrics,
	}
}

// Breaker exposes the circuit breaker state for health reporting.
func (c *Client) Breaker() BreakerSnapshot {
	return c.breaker.Snapshot()
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs one JSON-RPC request and decodes result into out.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if err := c.breaker.Acquire(); err != nil {
		c.metrics.ObserveUpstream(method, metrics.OutcomeError)
		return err
	}

	err := c.do(ctx, method, params, out)
	c.breaker.Record(err, countsAgainstUpstream(ctx, err))

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, config.ErrProviderRateLimit):
		outcome = metrics.OutcomeRateLimited
	case ctx.Err() != nil:
		outcome = metrics.OutcomeCancelled
	default:
		outcome = metrics.OutcomeError
	}
	c.metrics.ObserveUpstream(method, outcome)

	return err
}

func (c *Client) do(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", method, ctx.Err())
		}
		slog.Warn("indexer request failed",
			"method", method,
			"error", err,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return config.NewTransientError(fmt.Errorf("%s: %w: %v", method, config.ErrProviderUnavailable, err))
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header())
		slog.Warn("indexer rate limited",
			"method", method,
			"retryAfter", retryAfter,
		)
		return config.NewTransientErrorWithRetry(fmt.Errorf("%s: %w", method, config.ErrProviderRateLimit), retryAfter)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: %w: HTTP %d (check TOKENIDX_ALCHEMY_API_KEY)", method, config.ErrProviderRejected, status)
	case status >= http.StatusInternalServerError:
		return config.NewTransientError(fmt.Errorf("%s: %w: HTTP %d", method, config.ErrProviderUnavailable, status))
	case status != http.StatusOK:
		return fmt.Errorf("%s: %w: HTTP %d", method, config.ErrProviderRejected, status)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("%s: %w: %v", method, config.ErrMalformedResponse, err)
	}

	if envelope.Error != nil {
		if envelope.Error.Code == rpcCodeRateLimited || envelope.Error.Code == rpcCodeLimitExceeded {
			return config.NewTransientError(fmt.Errorf("%s: %w: %s", method, config.ErrProviderRateLimit, envelope.Error.Message))
		}
		return fmt.Errorf("%s: %w: %d %s", method, config.ErrProviderRejected, envelope.Error.Code, envelope.Error.Message)
	}

	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return fmt.Errorf("%s: %w: empty result", method, config.ErrMalformedResponse)
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%s: %w: %v", method, config.ErrMalformedResponse, err)
	}

	slog.Debug("indexer call complete",
		"method", method,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"attempts", resp.Request.Attempt,
	)

	return nil
}

// shouldRetry is the resty retry condition: transport errors, 429 and 5xx.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// countsAgainstUpstream reports whether err should move the circuit breaker.
// Cancellations and rejected requests are the caller's doing, not an outage.
func countsAgainstUpstream(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return errors.Is(err, config.ErrProviderUnavailable) ||
		errors.Is(err, config.ErrProviderRateLimit) ||
		errors.Is(err, config.ErrMalformedResponse)
}

// redactEndpoint hides the API key path segment in logs.
func redactEndpoint(endpoint string) string {
	idx := strings.LastIndex(endpoint, "/")
	if idx < 0 || idx == len(endpoint)-1 {
		return endpoint
	}
	return endpoint[:idx+1] + "***"
}
