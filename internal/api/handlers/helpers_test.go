package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/models"
	"github.com/Fantasim/tokenidx/internal/session"
)

const testAccount = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"

// fakeLookup returns one record per call, or the error registered for the input.
type fakeLookup struct {
	errs map[string]error
}

func (f *fakeLookup) Lookup(_ context.Context, input string) (models.QueryResult, error) {
	if err, ok := f.errs[input]; ok {
		return models.QueryResult{}, err
	}
	return models.QueryResult{
		Resolution: models.Resolution{Input: input, Address: testAccount},
		Records: []models.TokenRecord{{
			ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			RawBalance:      "1500000",
			DisplayBalance:  "1.5000",
		}},
	}, nil
}

type fakeWallet struct {
	mu         sync.Mutex
	configured bool
	accounts   []common.Address
	err        error
	requests   int
}

func (f *fakeWallet) Configured() bool { return f.configured }

func (f *fakeWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts, nil
}

func (f *fakeWallet) Accounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts, nil
}

func newTestSession(errs map[string]error) *session.Session {
	return session.New(&fakeLookup{errs: errs})
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *models.APIMeta `json:"meta"`
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.APIErrorDetail {
	t.Helper()
	var apiErr models.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return apiErr.Error
}
