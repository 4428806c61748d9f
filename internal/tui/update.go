package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/session"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case queryDoneMsg:
		// A superseded query's result belongs to an older input.
		if errors.Is(msg.err, config.ErrQuerySuperseded) {
			break
		}
		m.snap = msg.snap

	case connectDoneMsg:
		if errors.Is(msg.err, config.ErrQuerySuperseded) {
			break
		}
		m.snap = msg.snap
		if msg.err == nil {
			m.input.SetValue(msg.snap.Input)
			m.status = "Wallet connected"
			cmds = append(cmds, clearStatusAfter(statusDuration))
		}

	case accountsMsg:
		if len(msg) > 0 {
			m.snap = m.session.SetInput(msg[0].Hex())
			m.input.SetValue(msg[0].Hex())
			m.status = "Wallet account changed"
			cmds = append(cmds, clearStatusAfter(statusDuration))
		}

	case clearStatusMsg:
		m.status = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			input := strings.TrimSpace(m.input.Value())
			m.snap.State = session.StateLoading
			m.snap.Input = input
			m.snap.Error = nil
			return m, runQuery(m.ctx, m.session, input)

		case "ctrl+w":
			if !m.wallet.Configured() {
				m.status = "No wallet provider configured (TOKENIDX_WALLET_RPC_URL)"
				return m, clearStatusAfter(statusDuration)
			}
			m.snap.State = session.StateLoading
			m.snap.Error = nil
			m.status = "Waiting for wallet approval..."
			return m, connectWallet(m.ctx, m.session, m.wallet)

		case "ctrl+y":
			addr := m.resolvedAddress()
			if addr == "" {
				m.status = "Nothing to copy yet"
			} else if err := m.copy(addr); err != nil {
				m.status = "Failed to copy to clipboard"
			} else {
				m.status = "Address copied to clipboard"
			}
			return m, clearStatusAfter(statusDuration)

		case "tab":
			m.showChart = !m.showChart
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) resolvedAddress() string {
	if m.snap.Result != nil {
		return m.snap.Result.Resolution.Address
	}
	return ""
}
