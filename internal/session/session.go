// Package session holds the presentation state shared by the web UI and the terminal UI.
//
// A session is always in one of four states. Starting a query moves it to loading and
// cancels whatever query was in flight; the superseded query's completion is dropped, so
// a snapshot never mixes results from two queries.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/models"
	"github.com/Fantasim/tokenidx/internal/resolver"
)

// State is the presentation state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateResults State = "results"
	StateError   State = "error"
)

// ErrorInfo is the error shown to the user.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is an immutable copy of the session.
type Snapshot struct {
	State     State               `json:"state"`
	QueryID   uint64              `json:"queryId"`
	Input     string              `json:"input"`
	Error     *ErrorInfo          `json:"error,omitempty"`
	Result    *models.QueryResult `json:"result,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Lookuper runs one balance lookup.
type Lookuper interface {
	Lookup(ctx context.Context, input string) (models.QueryResult, error)
}

// Ticket identifies one started query.
type Ticket struct {
	ID     uint64
	Input  string
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when the query is superseded or times out.
func (t *Ticket) Context() context.Context { return t.ctx }

// Session is safe for concurrent use.
type Session struct {
	lookup Lookuper

	mu        sync.Mutex
	snap      Snapshot
	lastID    uint64
	inflight  *Ticket
	listeners map[int]func(Snapshot)
	nextLisID int
}

// New creates an idle session.
func New(lookup Lookuper) *Session {
	return &Session{
		lookup:    lookup,
		snap:      Snapshot{State: StateIdle, UpdatedAt: time.Now()},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to receive every new snapshot. fn runs with the session lock
// held and must not block or call back into the session.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextLisID
	s.nextLisID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Begin moves the session to loading for input, cancelling any query in flight.
func (s *Session) Begin(parent context.Context, input string) *Ticket {
	return s.begin(parent, input, config.QueryTimeout)
}

func (s *Session) begin(parent context.Context, input string, timeout time.Duration) *Ticket {
	ctx, cancel := context.WithTimeout(parent, timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		slog.Info("query superseded",
			"queryID", s.inflight.ID,
			"by", s.lastID+1,
		)
		s.inflight.cancel()
	}

	s.lastID++
	t := &Ticket{ID: s.lastID, Input: input, ctx: ctx, cancel: cancel}
	s.inflight = t

	s.set(Snapshot{State: StateLoading, QueryID: t.ID, Input: input})

	return t
}

// Complete records the outcome of t. It reports false, leaving the session untouched,
// when t has been superseded.
func (s *Session) Complete(t *Ticket, result *models.QueryResult, err error) (Snapshot, bool) {
	t.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil || s.inflight.ID != t.ID {
		slog.Debug("stale query completion discarded", "queryID", t.ID, "current", s.lastID)
		return s.snap, false
	}
	s.inflight = nil

	next := Snapshot{QueryID: t.ID, Input: t.Input}
	switch {
	case err != nil:
		next.State = StateError
		next.Error = &ErrorInfo{Code: config.ErrorCode(err), Message: Message(err)}
	case result != nil:
		next.State = StateResults
		next.Result = result
	default:
		next.State = StateIdle
	}
	s.set(next)

	return s.snap, true
}

// Run performs a complete lookup for input. The returned error is the lookup error,
// or ErrQuerySuperseded when a newer query replaced this one.
func (s *Session) Run(ctx context.Context, input string) (Snapshot, error) {
	t := s.Begin(ctx, input)

	slog.Info("query started", "queryID", t.ID, "input", input)

	result, err := s.lookup.Lookup(t.Context(), input)

	var snap Snapshot
	var current bool
	if err != nil {
		snap, current = s.Complete(t, nil, err)
	} else {
		snap, current = s.Complete(t, &result, nil)
	}
	if !current {
		return snap, config.ErrQuerySuperseded
	}
	return snap, err
}

// Connect runs a wallet authorization as a query: loading while the wallet prompts,
// then idle with the granted account as input, or error. The prompt waits on the user,
// so it gets WalletCallTimeout rather than QueryTimeout.
func (s *Session) Connect(ctx context.Context, request func(ctx context.Context) (string, error)) (Snapshot, error) {
	t := s.begin(ctx, s.Snapshot().Input, config.WalletCallTimeout)

	account, err := request(t.Context())
	if err == nil {
		t.Input = account
	}

	snap, current := s.Complete(t, nil, err)
	if !current {
		return snap, config.ErrQuerySuperseded
	}
	return snap, err
}

// SetInput replaces the input without starting a query, for example when the wallet
// switches accounts. An in-flight query is not affected.
func (s *Session) SetInput(input string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap
	next.Input = input
	s.set(next)
	return s.snap
}

// set must be called with mu held.
func (s *Session) set(next Snapshot) {
	next.UpdatedAt = time.Now()
	s.snap = next
	for _, fn := range s.listeners {
		fn(next)
	}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ve *resolver.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	switch config.ErrorCode(err) {
	case config.ErrorEmptyAddress:
		return "Please enter an Ethereum address or ENS name."
	case config.ErrorInvalidAddress:
		return "Invalid address. Please enter a valid Ethereum address or ENS name."
	case config.ErrorNameNotResolved:
		return "That name does not resolve to an address."
	case config.ErrorProviderRateLimit:
		if wait := config.GetRetryAfter(err); wait > 0 {
			return fmt.Sprintf("The token service is rate limiting requests. Try again in %s.", wait.Round(time.Second))
		}
		return "The token service is rate limiting requests. Try again in a moment."
	case config.ErrorCircuitOpen:
		return "The token service is temporarily unavailable. Try again shortly."
	case config.ErrorProviderUnavailable:
		if errors.Is(err, config.ErrProviderRejected) {
			return "The token service rejected the request."
		}
		return "Could not fetch token data. Try again."
	case config.ErrorWalletRejected:
		return "The wallet rejected the connection request."
	case config.ErrorWalletUnavailable:
		if errors.Is(err, config.ErrNoAccounts) {
			return "The wallet did not share any accounts."
		}
		return "No wallet is available. Start your wallet and try again."
	case config.ErrorQueryCancelled:
		return "The request was cancelled."
	case config.ErrorQuerySuperseded:
		return "The request was replaced by a newer one."
	default:
		return "Something went wrong. Try again."
	}
}
