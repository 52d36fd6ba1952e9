package view

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type StatsModel struct {
	CommonModel
	orchestrator *reconciliation.Orchestrator

	stats   *reconciliation.Statistics
	loading bool
	err     error
}

func NewStatsModel(orchestrator *reconciliation.Orchestrator) StatsModel {
	return StatsModel{orchestrator: orchestrator, loading: true}
}

func (m StatsModel) Title() string     { return "Statistics" }
func (m StatsModel) ShortHelp() string { return "Esc: back | r: refresh" }

func (m StatsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statsMsg:
		m.loading = false
		m.stats, m.err = msg.stats, msg.err

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}
	}

	return m, nil
}

func (m StatsModel) View() string {
	style := lipgloss.NewStyle().Padding(1, 2)

	if m.loading {
		return style.Render("Loading statistics...")
	}

	if m.err != nil {
		return style.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	byStatus := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("Status", "Transactions")

	for _, s := range transaction.Statuses {
		byStatus.Row(
			lipgloss.NewStyle().Foreground(lipgloss.Color(statusColors[s])).Render(string(s)),
			fmt.Sprint(m.stats.CountsByStatus[s]),
		)
	}

	banks := make([]string, 0, len(m.stats.DivergenceCountsByBank))
	for bank := range m.stats.DivergenceCountsByBank {
		banks = append(banks, bank)
	}

	sort.Strings(banks)

	byBank := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("Bank", "Divergent")

	for _, bank := range banks {
		byBank.Row(bank, fmt.Sprint(m.stats.DivergenceCountsByBank[bank]))
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("Total transactions: %s\n", activeStyle(fmt.Sprint(m.stats.TotalTransactions))),
		lipgloss.JoinHorizontal(lipgloss.Top, byStatus.Render(), "  ", byBank.Render()),
	))
}

type statsMsg struct {
	stats *reconciliation.Statistics
	err   error
}

func (m StatsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		stats, err := m.orchestrator.Statistics(ctx)

		return statsMsg{stats: stats, err: err}
	}
}
