package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/session"
)

// AccountWatcher streams wallet account changes.
type AccountWatcher interface {
	Watch(ctx context.Context, fn func([]common.Address)) error
}

// Start runs the terminal UI until the user quits or ctx is cancelled. A configured
// wallet's authorized account seeds the input; when watcher is non-nil, later account
// changes replace it.
func Start(ctx context.Context, sess *session.Session, wallet Wallet, watcher AccountWatcher, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(ctx, sess, wallet, version, clipboard.WriteAll),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if watcher != nil && wallet.Configured() {
		go func() {
			err := watcher.Watch(ctx, func(accounts []common.Address) {
				p.Send(accountsMsg(accounts))
			})
			if err != nil && ctx.Err() == nil {
				slog.Warn("wallet watch stopped", "error", err)
			}
		}()
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
