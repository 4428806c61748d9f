package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/config"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// mockWallet answers eth_accounts / eth_requestAccounts like a browser-less wallet.
type mockWallet struct {
	mu         sync.Mutex
	accounts   []string
	rejectCode int
	calls      map[string]int
}

func (m *mockWallet) setAccounts(accounts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
}

func (m *mockWallet) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockWallet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[req.Method]++
	accounts := append([]string{}, m.accounts...)
	rejectCode := m.rejectCode
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if rejectCode != 0 && req.Method == methodRequestAccounts {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":"User rejected the request."}}`, req.ID, rejectCode)
		return
	}

	switch req.Method {
	case methodAccounts, methodRequestAccounts:
		result, _ := json.Marshal(accounts)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
	}
}

func newTestConnector(t *testing.T, wallet *mockWallet) *Connector {
	t.Helper()

	server := httptest.NewServer(wallet)
	t.Cleanup(server.Close)

	c := New(server.URL, nil)
	c.pollInterval = 10 * time.Millisecond
	t.Cleanup(c.Close)

	return c
}

const (
	accountA = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"
	accountB = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
)

func TestConnector_RequestAccounts(t *testing.T) {
	wallet := &mockWallet{}
	wallet.setAccounts(accountA, accountB)
	c := newTestConnector(t, wallet)

	accounts, err := c.RequestAccounts(context.Background())
	if err != nil {
		t.Fatalf("RequestAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0] != common.HexToAddress(accountA) {
		t.Errorf("accounts[0] = %s, want %s", accounts[0].Hex(), accountA)
	}
	if wallet.count(methodRequestAccounts) != 1 {
		t.Errorf("eth_requestAccounts calls = %d, want 1", wallet.count(methodRequestAccounts))
	}
}

func TestConnector_RequestAccountsEmpty(t *testing.T) {
	c := newTestConnector(t, &mockWallet{})

	_, err := c.RequestAccounts(context.Background())
	if !errors.Is(err, config.ErrNoAccounts) {
		t.Fatalf("expected ErrNoAccounts, got %v", err)
	}
}

func TestConnector_Rejected(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"user rejected", codeUserRejected, config.ErrWalletRejected},
		{"unauthorized", codeUnauthorized, config.ErrWalletRejected},
		{"internal", -32603, config.ErrWalletUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConnector(t, &mockWallet{rejectCode: tt.code})

			_, err := c.RequestAccounts(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got := config.ErrorCode(err); got == config.ErrorInternal {
				t.Errorf("ErrorCode() = %s, want a wallet code", got)
			}
		})
	}
}

func TestConnector_NotConfigured(t *testing.T) {
	c := New("", nil)

	if c.Configured() {
		t.Error("Configured() = true for empty url")
	}
	if _, err := c.Accounts(context.Background()); !errors.Is(err, config.ErrWalletNotConfigured) {
		t.Errorf("Accounts() error = %v, want ErrWalletNotConfigured", err)
	}
	if err := c.Watch(context.Background(), func([]common.Address) {}); !errors.Is(err, config.ErrWalletNotConfigured) {
		t.Errorf("Watch() error = %v, want ErrWalletNotConfigured", err)
	}
}

func TestConnector_ProviderDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(url, nil)
	defer c.Close()

	_, err := c.Accounts(context.Background())
	if !errors.Is(err, config.ErrWalletUnavailable) {
		t.Fatalf("expected ErrWalletUnavailable, got %v", err)
	}
}

func TestConnector_WatchPollsForChanges(t *testing.T) {
	wallet := &mockWallet{}
	wallet.setAccounts(accountA)
	c := newTestConnector(t, wallet)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan []common.Address, 4)
	var emitted atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(accounts []common.Address) {
			emitted.Add(1)
			changes <- accounts
		})
	}()

	// Let the first poll establish the baseline, then switch accounts.
	deadline := time.Now().Add(2 * time.Second)
	for wallet.count(methodAccounts) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if emitted.Load() != 0 {
		t.Fatalf("baseline poll emitted %d changes, want 0", emitted.Load())
	}

	wallet.setAccounts(accountB)

	select {
	case accounts := <-changes:
		if len(accounts) != 1 || accounts[0] != common.HexToAddress(accountB) {
			t.Errorf("changed accounts = %v, want [%s]", accounts, accountB)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for accounts change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() returned %v after cancel, want nil", err)
	}
}
