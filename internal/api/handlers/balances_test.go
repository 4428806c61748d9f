package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/resolver"
	"github.com/Fantasim/tokenidx/internal/session"
)

func postBalances(t *testing.T, sess *session.Session, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/balances", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	Balances(sess).ServeHTTP(rec, req)
	return rec
}

func TestBalances_Success(t *testing.T) {
	sess := newTestSession(nil)

	rec := postBalances(t, sess, `{"address":"`+testAccount+`"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if snap.State != session.StateResults {
		t.Errorf("State = %s, want results", snap.State)
	}
	if snap.Result == nil || len(snap.Result.Records) != 1 {
		t.Fatalf("Result = %+v, want one record", snap.Result)
	}
	if snap.Result.Records[0].DisplayBalance != "1.5000" {
		t.Errorf("DisplayBalance = %q, want 1.5000", snap.Result.Records[0].DisplayBalance)
	}
}

func TestBalances_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "address=0x1"},
		{"empty", ""},
		{"too large", `{"address":"` + strings.Repeat("a", int(config.MaxRequestBodyBytes)) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postBalances(t, newTestSession(nil), tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec).Code; got != config.ErrorInvalidRequest {
				t.Errorf("code = %s, want %s", got, config.ErrorInvalidRequest)
			}
		})
	}
}

func TestBalances_ErrorMapping(t *testing.T) {
	invalid := &resolver.ValidationError{
		Err:     config.ErrInvalidAddress,
		Message: "Invalid address. Please enter a valid Ethereum address or ENS name.",
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid address", invalid, http.StatusBadRequest, config.ErrorInvalidAddress},
		{"unresolved name", fmt.Errorf("%w", config.ErrNameNotResolved), http.StatusBadRequest, config.ErrorNameNotResolved},
		{"upstream", config.NewTransientError(config.ErrProviderUnavailable), http.StatusBadGateway, config.ErrorProviderUnavailable},
		{"rate limited", config.NewTransientError(config.ErrProviderRateLimit), http.StatusBadGateway, config.ErrorProviderRateLimit},
		{"circuit open", config.ErrCircuitOpen, http.StatusBadGateway, config.ErrorCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession(map[string]error{"input": tt.err})

			rec := postBalances(t, sess, `{"address":"input"}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			detail := decodeError(t, rec)
			if detail.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", detail.Code, tt.wantCode)
			}
			if detail.Message == "" {
				t.Error("expected a message")
			}
			if snap := sess.Snapshot(); snap.State != session.StateError {
				t.Errorf("session state = %s, want error", snap.State)
			}
		})
	}
}

func TestBalances_RetryAfterHeader(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited with delay", config.NewTransientErrorWithRetry(config.ErrProviderRateLimit, 2500*time.Millisecond), "3"},
		{"transient without delay", config.NewTransientError(config.ErrProviderUnavailable), "1"},
		{"permanent", fmt.Errorf("%w: bad key", config.ErrProviderRejected), ""},
		{"circuit open", config.ErrCircuitOpen, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession(map[string]error{"input": tt.err})

			rec := postBalances(t, sess, `{"address":"input"}`)

			if got := rec.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBalances_InvalidMessageIsShownVerbatim(t *testing.T) {
	msg := "Invalid address. Please enter a valid Ethereum address or ENS name."
	sess := newTestSession(map[string]error{"junk": &resolver.ValidationError{Err: config.ErrInvalidAddress, Message: msg}})

	rec := postBalances(t, sess, `{"address":"junk"}`)

	if got := decodeError(t, rec).Message; got != msg {
		t.Errorf("message = %q, want %q", got, msg)
	}
}

func TestGetSession(t *testing.T) {
	sess := newTestSession(map[string]error{"bad": errors.New("boom")})
	sess.SetInput("vitalik.eth")

	rec := httptest.NewRecorder()
	GetSession(sess).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	snap := decodeSnapshot(t, rec)
	if snap.State != session.StateIdle || snap.Input != "vitalik.eth" {
		t.Errorf("snapshot = %+v, want idle with input", snap)
	}
}
