// Package health probes the upstream services at startup.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
)

// Check is one named probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Result is the outcome of a Check.
type Result struct {
	Name    string
	OK      bool
	Latency time.Duration
	Error   error
}

// ChainIDer reports the chain ID of an endpoint.
type ChainIDer interface {
	ChainID(ctx context.Context) (uint64, error)
}

// BigChainIDer is the ethclient flavour of ChainIDer.
type BigChainIDer interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Dialer connects to a service.
type Dialer interface {
	Dial(ctx context.Context) error
}

// IndexerCheck verifies the indexing API answers and serves mainnet.
func IndexerCheck(c ChainIDer) Check {
	return Check{Name: "indexer", Fn: func(ctx context.Context) error {
		id, err := c.ChainID(ctx)
		if err != nil {
			return err
		}
		return expectMainnet(id)
	}}
}

// NameServiceCheck verifies the ENS RPC endpoint serves mainnet.
func NameServiceCheck(c BigChainIDer) Check {
	return Check{Name: "name_service", Fn: func(ctx context.Context) error {
		id, err := c.ChainID(ctx)
		if err != nil {
			return err
		}
		if !id.IsUint64() {
			return fmt.Errorf("chain id %s out of range", id)
		}
		return expectMainnet(id.Uint64())
	}}
}

// WalletCheck verifies the wallet provider is reachable.
func WalletCheck(d Dialer) Check {
	return Check{Name: "wallet", Fn: d.Dial}
}

func expectMainnet(id uint64) error {
	if id != config.MainnetChainID {
		return fmt.Errorf("chain id %d, expected %d (mainnet)", id, config.MainnetChainID)
	}
	return nil
}

// RunStartupChecks runs checks concurrently and logs each outcome. Failures only warn.
func RunStartupChecks(ctx context.Context, checks []Check) []Result {
	slog.Info("running startup health checks", "count", len(checks))

	var (
		results = make([]Result, len(checks))
		wg      sync.WaitGroup
	)

	for i, c := range checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, config.HealthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := c.Fn(checkCtx)
			latency := time.Since(start)

			results[i] = Result{Name: c.Name, OK: err == nil, Latency: latency, Error: err}

			if err != nil {
				slog.Warn("startup health check FAILED",
					"check", c.Name,
					"latency", latency.Round(time.Millisecond),
					"error", err,
				)
				return
			}
			slog.Info("startup health check OK",
				"check", c.Name,
				"latency", latency.Round(time.Millisecond),
			)
		}(i, c)
	}

	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	slog.Info("startup health checks complete",
		"total", len(results),
		"ok", len(results)-failed,
		"failed", failed,
	)

	return results
}
