package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/models"
	"github.com/Fantasim/tokenidx/internal/session"
	"github.com/Fantasim/tokenidx/internal/units"
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tokenidx " + m.version))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch m.snap.State {
	case session.StateLoading:
		fmt.Fprintf(&b, "%s Loading %s\n", m.spinner.View(), m.snap.Input)
	case session.StateError:
		if m.snap.Error != nil {
			b.WriteString(errStyle.Render("✗ " + m.snap.Error.Message))
			b.WriteString("\n")
		}
	case session.StateResults:
		b.WriteString(m.resultsView())
	default:
		b.WriteString(subtleStyle.Render("Enter an address or ENS name and press enter."))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("enter: lookup • ctrl+w: connect wallet • ctrl+y: copy address • tab: chart • esc: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) resultsView() string {
	res := m.snap.Result
	if res == nil {
		return ""
	}

	var b strings.Builder
	header := res.Resolution.Address
	if res.Resolution.ENSName != "" {
		header = res.Resolution.ENSName + " → " + header
	} else if res.Resolution.PrimaryName != "" {
		header += " (" + res.Resolution.PrimaryName + ")"
	}
	b.WriteString(header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", subtleStyle.Render(fmt.Sprintf("%d tokens in %dms", len(res.Records), res.ElapsedMs)))
	if res.MetadataFailures > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("metadata unavailable for %d tokens", res.MetadataFailures)))
		b.WriteString("\n")
	}

	if len(res.Records) == 0 {
		b.WriteString(subtleStyle.Render("No ERC-20 balances."))
		b.WriteString("\n")
		return b.String()
	}

	if m.showChart {
		b.WriteString(renderChart(res.Records, m.width))
	} else {
		b.WriteString(renderCards(res.Records, m.width))
	}
	b.WriteString("\n")
	return b.String()
}

func renderCard(r models.TokenRecord) string {
	lines := []string{
		symbolStyle.Render(r.Symbol(config.UnknownSymbol)),
		balanceStyle.Render(r.DisplayBalance),
		subtleStyle.Render(shortAddress(r.ContractAddress)),
	}
	if logo := r.Logo(); logo != "" {
		lines = append(lines, subtleStyle.Render("logo ✓"))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// renderCards lays the cards out in rows that fit the terminal width.
func renderCards(records []models.TokenRecord, width int) string {
	perRow := width / (cardWidth + 4)
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	for i := 0; i < len(records); i += perRow {
		end := min(i+perRow, len(records))
		cards := make([]string, 0, end-i)
		for _, r := range records[i:end] {
			cards = append(cards, renderCard(r))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// chartValues scales every raw balance by its decimals; records whose balance cannot be
// parsed plot as zero.
func chartValues(records []models.TokenRecord) []float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		places := 0
		if r.Metadata != nil && r.Metadata.Decimals != nil {
			places = *r.Metadata.Decimals
		}
		amount, err := units.FormatUnits(r.RawBalance, places)
		if err != nil {
			values = append(values, 0)
			continue
		}
		values = append(values, amount.InexactFloat64())
	}
	return values
}

func renderChart(records []models.TokenRecord, width int) string {
	data := chartValues(records)
	if len(data) < 2 {
		return subtleStyle.Render("Not enough data to draw graph.")
	}

	symbols := make([]string, 0, len(records))
	for _, r := range records {
		symbols = append(symbols, r.Symbol(config.UnknownSymbol))
	}

	w := width - 12
	if w < 20 {
		w = 20
	}
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(w),
		asciigraph.Caption(strings.Join(symbols, " ")),
	)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
