package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/tokenidx/internal/config"
)

// ContractCaller executes eth_call against a node.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GuardCaller wraps next so its calls wait on this client's rate limiter and pass
// through its circuit breaker. Use it when next talks to the same API key.
func (c *Client) GuardCaller(next ContractCaller) ContractCaller {
	return &guardedCaller{next: next, rl: c.rl, breaker: c.breaker}
}

type guardedCaller struct {
	next    ContractCaller
	rl      *RateLimiter
	breaker *CircuitBreaker
}

func (g *guardedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := g.rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("eth_call: %w", err)
	}
	if err := g.breaker.Acquire(); err != nil {
		return nil, err
	}

	out, err := g.next.CallContract(ctx, msg, blockNumber)
	counts := callCountsAgainstUpstream(ctx, err)
	g.breaker.Record(err, counts)

	if err != nil && counts {
		slog.Debug("guarded eth_call failed", "upstream", g.rl.Name(), "error", err)
		if isRateLimited(err) {
			return nil, fmt.Errorf("eth_call: %w: %v", config.ErrProviderRateLimit, err)
		}
	}
	return out, err
}

// callCountsAgainstUpstream reports whether an eth_call error indicates the node is
// unhealthy. Reverts, other JSON-RPC errors and 4xx answers come back from a working node.
func callCountsAgainstUpstream(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		return code == rpcCodeRateLimited || code == rpcCodeLimitExceeded
	}

	return true
}

func isRateLimited(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == rpcCodeRateLimited || rpcErr.ErrorCode() == rpcCodeLimitExceeded
	}
	return false
}
