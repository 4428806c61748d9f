// Package tui is the terminal front-end: one input, a card per token, the same
// session state machine as the web UI.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/session"
)

const (
	cardWidth      = 24
	statusDuration = 2 * time.Second
)

// Wallet is what the TUI needs from the wallet connector.
type Wallet interface {
	Configured() bool
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
}

// --- Messages ---

type queryDoneMsg struct {
	snap session.Snapshot
	err  error
}

type connectDoneMsg struct {
	snap session.Snapshot
	err  error
}

type accountsMsg []common.Address

type clearStatusMsg struct{}

// --- Model ---

type model struct {
	ctx       context.Context
	session   *session.Session
	wallet    Wallet
	version   string
	input     textinput.Model
	spinner   spinner.Model
	snap      session.Snapshot
	status    string
	showChart bool
	width     int
	height    int
	copy      func(string) error
}

func newModel(ctx context.Context, sess *session.Session, wallet Wallet, version string, copyFn func(string) error) model {
	ti := textinput.New()
	ti.Placeholder = "0x... or name.eth"
	ti.CharLimit = 256
	ti.Width = 50
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		ctx:     ctx,
		session: sess,
		wallet:  wallet,
		version: version,
		input:   ti,
		spinner: s,
		snap:    sess.Snapshot(),
		copy:    copyFn,
		width:   80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.initialAccounts())
}

// initialAccounts loads the accounts the wallet already authorized so the input
// starts on the active one. Failures are only logged.
func (m model) initialAccounts() tea.Cmd {
	if !m.wallet.Configured() {
		return nil
	}
	ctx, wallet := m.ctx, m.wallet
	return func() tea.Msg {
		accounts, err := wallet.Accounts(ctx)
		if err != nil {
			slog.Warn("authorized accounts not loaded", "error", err)
			return nil
		}
		if len(accounts) == 0 {
			return nil
		}
		return accountsMsg(accounts)
	}
}

func (m model) loading() bool {
	return m.snap.State == session.StateLoading
}

func runQuery(ctx context.Context, sess *session.Session, input string) tea.Cmd {
	return func() tea.Msg {
		snap, err := sess.Run(ctx, input)
		return queryDoneMsg{snap: snap, err: err}
	}
}

func connectWallet(ctx context.Context, sess *session.Session, wallet Wallet) tea.Cmd {
	return func() tea.Msg {
		snap, err := sess.Connect(ctx, func(ctx context.Context) (string, error) {
			accounts, err := wallet.RequestAccounts(ctx)
			if err != nil {
				return "", err
			}
			return accounts[0].Hex(), nil
		})
		return connectDoneMsg{snap: snap, err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}
