package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/Fantasim/tokenidx/internal/api/middleware"
	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/events"
	"github.com/Fantasim/tokenidx/internal/session"
)

// WalletConnector is the subset of the wallet connector the handlers use.
type WalletConnector interface {
	Configured() bool
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.IsLocalOrigin(origin)
	},
}

// AccountsChanged builds the accounts_changed payload.
func AccountsChanged(accounts []common.Address) events.AccountsChangedData {
	data := events.AccountsChangedData{Accounts: make([]string, len(accounts))}
	for i, a := range accounts {
		data.Accounts[i] = a.Hex()
	}
	if len(accounts) > 0 {
		data.Active = accounts[0].Hex()
	}
	return data
}

// WalletConnect handles POST /api/wallet/connect. On success the first granted
// account becomes the session input; on failure the session enters the error state.
func WalletConnect(sess *session.Session, wallet WalletConnector, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Info("wallet connect requested", "remoteAddr", r.RemoteAddr)

		var granted []common.Address
		snap, err := sess.Connect(r.Context(), func(ctx context.Context) (string, error) {
			accounts, err := wallet.RequestAccounts(ctx)
			if err != nil {
				return "", err
			}
			granted = accounts
			return accounts[0].Hex(), nil
		})

		switch {
		case err == nil:
			hub.Broadcast(events.Event{Type: events.TypeAccountsChanged, Data: AccountsChanged(granted)})
			writeData(w, http.StatusOK, snap, start)
		case errors.Is(err, config.ErrQuerySuperseded):
			writeError(w, http.StatusConflict, config.ErrorQuerySuperseded, session.Message(err))
		default:
			slog.Warn("wallet connect failed", "error", err)
			writeError(w, walletStatus(err), config.ErrorCode(err), session.Message(err))
		}
	}
}

// WalletAccounts handles GET /api/wallet/accounts.
func WalletAccounts(wallet WalletConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		accounts, err := wallet.Accounts(r.Context())
		if err != nil {
			slog.Warn("wallet accounts unavailable", "error", err)
			writeError(w, walletStatus(err), config.ErrorCode(err), session.Message(err))
			return
		}

		writeData(w, http.StatusOK, AccountsChanged(accounts), start)
	}
}

// WalletSocket handles GET /api/wallet/ws. It pushes accounts_changed events; the
// current accounts are sent first when the wallet is reachable.
func WalletSocket(hub *events.Hub, wallet WalletConnector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err, "remoteAddr", r.RemoteAddr)
			return
		}
		defer conn.Close()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		slog.Info("wallet websocket connected", "remoteAddr", r.RemoteAddr)

		if wallet.Configured() {
			ctx, cancel := context.WithTimeout(r.Context(), config.WalletDialTimeout)
			accounts, err := wallet.Accounts(ctx)
			cancel()
			if err == nil {
				if err := writeSocket(conn, events.Event{Type: events.TypeAccountsChanged, Data: AccountsChanged(accounts)}); err != nil {
					return
				}
			}
		}

		// The client never sends anything we act on; reading detects the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(config.WebsocketPingInterval)
		defer ping.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(config.WebsocketWriteTimeout))
					return
				}
				if event.Type != events.TypeAccountsChanged {
					continue
				}
				if err := writeSocket(conn, event); err != nil {
					slog.Debug("wallet websocket write failed", "error", err)
					return
				}

			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(config.WebsocketWriteTimeout)); err != nil {
					return
				}

			case <-closed:
				slog.Info("wallet websocket disconnected", "remoteAddr", r.RemoteAddr)
				return
			}
		}
	}
}

func writeSocket(conn *websocket.Conn, event events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(config.WebsocketWriteTimeout))
	return conn.WriteJSON(event)
}

func walletStatus(err error) int {
	switch {
	case errors.Is(err, config.ErrWalletRejected):
		return http.StatusForbidden
	case errors.Is(err, config.ErrWalletNotConfigured), errors.Is(err, config.ErrWalletUnavailable), errors.Is(err, config.ErrNoAccounts):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
