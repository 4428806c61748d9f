package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/api/handlers"
	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/events"
	"github.com/Fantasim/tokenidx/internal/session"
)

// AccountWatcher lists and follows the wallet's authorized accounts.
type AccountWatcher interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	Watch(ctx context.Context, fn func([]common.Address)) error
}

// PublishSession forwards every session transition to the hub as session_state.
func PublishSession(sess *session.Session, hub *events.Hub) (stop func()) {
	return sess.Subscribe(func(snap session.Snapshot) {
		hub.Broadcast(events.Event{Type: events.TypeSessionState, Data: snap})
	})
}

// FollowWallet makes the wallet's active account the session input and announces
// account changes to websocket clients. Accounts the wallet already authorized are
// applied first, best-effort. It returns when ctx is done or the wallet cannot be
// watched.
func FollowWallet(ctx context.Context, watcher AccountWatcher, sess *session.Session, hub *events.Hub) {
	apply := func(accounts []common.Address) {
		if len(accounts) > 0 {
			sess.SetInput(accounts[0].Hex())
		}
		hub.Broadcast(events.Event{Type: events.TypeAccountsChanged, Data: handlers.AccountsChanged(accounts)})
	}

	accounts, err := watcher.Accounts(ctx)
	switch {
	case err != nil:
		logWalletError("authorized accounts not loaded", err)
	case len(accounts) > 0:
		slog.Info("wallet account loaded", "account", accounts[0].Hex(), "count", len(accounts))
		apply(accounts)
	}

	if err := watcher.Watch(ctx, apply); err != nil {
		logWalletError("wallet account changes not followed", err)
	}
}

func logWalletError(msg string, err error) {
	if errors.Is(err, config.ErrWalletNotConfigured) {
		slog.Info(msg, "reason", "no wallet provider configured")
		return
	}
	slog.Warn(msg, "error", err)
}
