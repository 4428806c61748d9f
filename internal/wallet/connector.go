// Package wallet talks to an external wallet provider over JSON-RPC.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/metrics"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected = 4001
	codeUnauthorized = 4100
)

const (
	methodRequestAccounts = "eth_requestAccounts"
	methodAccounts        = "eth_accounts"
	eventAccountsChanged  = "accountsChanged"
)

// Connector holds a lazily dialed connection to the wallet provider.
// A failed call drops the connection so the next one redials.
type Connector struct {
	url          string
	metrics      *metrics.Metrics
	pollInterval time.Duration

	mu     sync.Mutex
	client *rpc.Client
}

// New creates a Connector for the provider at url (http, ws or ipc).
// An empty url yields a Connector whose calls fail with ErrWalletNotConfigured.
func New(url string, m *metrics.Metrics) *Connector {
	return &Connector{
		url:          url,
		metrics:      m,
		pollInterval: config.WalletPollInterval,
	}
}

// Configured reports whether a provider URL was set.
func (c *Connector) Configured() bool {
	return c.url != ""
}

// Dial connects to the provider if not already connected.
func (c *Connector) Dial(ctx context.Context) error {
	_, err := c.conn(ctx)
	return err
}

// RequestAccounts asks the wallet for authorization and returns the granted accounts.
// The wallet may show a permission prompt, so the call can block for a while.
func (c *Connector) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, config.WalletCallTimeout)
	defer cancel()

	accounts, err := c.accounts(ctx, methodRequestAccounts)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, config.ErrNoAccounts
	}

	slog.Info("wallet accounts authorized",
		"count", len(accounts),
		"first", accounts[0].Hex(),
	)

	return accounts, nil
}

// Accounts returns the accounts the wallet has already authorized. No prompt is shown.
func (c *Connector) Accounts(ctx context.Context) ([]common.Address, error) {
	return c.accounts(ctx, methodAccounts)
}

// Watch calls fn with the new account list whenever it changes, until ctx is done.
// It subscribes to accountsChanged when the transport supports it and polls otherwise.
func (c *Connector) Watch(ctx context.Context, fn func([]common.Address)) error {
	client, err := c.conn(ctx)
	if err != nil {
		return err
	}

	ch := make(chan []common.Address, 4)
	sub, err := client.EthSubscribe(ctx, ch, eventAccountsChanged)
	if err != nil {
		slog.Info("wallet account subscription unavailable, polling",
			"error", err,
			"interval", c.pollInterval,
		)
		return c.poll(ctx, fn)
	}
	defer sub.Unsubscribe()

	slog.Info("wallet account subscription active")

	for {
		select {
		case <-ctx.Done():
			return nil
		case accounts := <-ch:
			slog.Info("wallet accounts changed", "count", len(accounts))
			fn(accounts)
		case err := <-sub.Err():
			slog.Warn("wallet account subscription dropped, polling", "error", err)
			c.reset()
			return c.poll(ctx, fn)
		}
	}
}

// poll emits only when the list differs from the previous successful poll.
func (c *Connector) poll(ctx context.Context, fn func([]common.Address)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var (
		last    []common.Address
		primed  bool
		failing bool
	)

	for {
		accounts, err := c.Accounts(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			if !failing {
				slog.Warn("wallet account poll failed", "error", err)
				failing = true
			}
		case !primed:
			last, primed, failing = accounts, true, false
		case !slices.Equal(last, accounts):
			slog.Info("wallet accounts changed", "count", len(accounts))
			last, failing = accounts, false
			fn(accounts)
		default:
			failing = false
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases the provider connection.
func (c *Connector) Close() {
	c.reset()
}

func (c *Connector) accounts(ctx context.Context, method string) ([]common.Address, error) {
	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	var accounts []common.Address
	err = client.CallContext(ctx, &accounts, method)
	if err != nil {
		err = c.classify(method, err)
		c.metrics.ObserveUpstream("wallet_"+method, metrics.OutcomeError)
		return nil, err
	}

	c.metrics.ObserveUpstream("wallet_"+method, metrics.OutcomeOK)
	slog.Debug("wallet call completed", "method", method, "count", len(accounts))

	return accounts, nil
}

func (c *Connector) conn(ctx context.Context) (*rpc.Client, error) {
	if c.url == "" {
		return nil, config.ErrWalletNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.WalletDialTimeout)
	defer cancel()

	client, err := rpc.DialContext(dialCtx, c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", config.ErrWalletUnavailable, err)
	}

	slog.Info("wallet provider connected", "url", c.url)
	c.client = client
	return client, nil
}

func (c *Connector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// classify maps provider errors onto wallet sentinels. Transport failures drop the
// connection; JSON-RPC errors leave it in place.
func (c *Connector) classify(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			slog.Info("wallet request rejected", "method", method, "code", rpcErr.ErrorCode())
			return fmt.Errorf("%w: %s", config.ErrWalletRejected, rpcErr.Error())
		}
		return fmt.Errorf("%w: %s: %s", config.ErrWalletUnavailable, method, rpcErr.Error())
	}

	c.reset()
	return fmt.Errorf("%w: %s: %v", config.ErrWalletUnavailable, method, err)
}
