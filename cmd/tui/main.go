package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/consignado/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/consignado/internal/app"
	"github.com/MrJamesThe3rd/consignado/internal/config"
)

type model struct {
	app *app.App

	currentView View

	statsView    view.StatsModel
	listView     view.ListModel
	dispatchView view.DispatchModel
	importView   view.ImportModel
}

type View int

const (
	ViewMenu     View = 0
	ViewStats    View = 1
	ViewList     View = 2
	ViewDispatch View = 3
	ViewImport   View = 4
)

func newModel(a *app.App) model {
	return model{
		app:          a,
		currentView:  ViewMenu,
		statsView:    view.NewStatsModel(a.Orchestrator),
		listView:     view.NewListModel(a.Orchestrator),
		dispatchView: view.NewDispatchModel(a.Orchestrator),
		importView:   view.NewImportModel(a.Importer),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewStats
				m.statsView = view.NewStatsModel(m.app.Orchestrator)

				return m, m.statsView.Init()
			case "2":
				m.currentView = ViewList
				m.listView = view.NewListModel(m.app.Orchestrator)

				return m, m.listView.Init()
			case "3":
				m.currentView = ViewDispatch
				m.dispatchView = view.NewDispatchModel(m.app.Orchestrator)

				return m, m.dispatchView.Init()
			case "4":
				m.currentView = ViewImport
				m.importView = view.NewImportModel(m.app.Importer)

				return m, m.importView.Init()
			}
		}

		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewStats:
		var newModel tea.Model
		newModel, cmd = m.statsView.Update(msg)
		m.statsView = newModel.(view.StatsModel)
	case ViewList:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewDispatch:
		var newModel tea.Model
		newModel, cmd = m.dispatchView.Update(msg)
		m.dispatchView = newModel.(view.DispatchModel)
	case ViewImport:
		var newModel tea.Model
		newModel, cmd = m.importView.Update(msg)
		m.importView = newModel.(view.ImportModel)
	}

	return m, cmd
}

func (m model) View() string {
	var current view.View

	switch m.currentView {
	case ViewMenu:
		queueMode := "broker"
		if m.app.InProcessQueue {
			queueMode = "in-process"
		}

		return lipgloss.NewStyle().Padding(2).Render(
			"Consignado Reconciliation\n\n" +
				"1. Statistics\n" +
				"2. Bank Transactions\n" +
				"3. Dispatch Pending\n" +
				"4. Import Bank File\n\n" +
				"q. Quit\n\n" +
				lipgloss.NewStyle().Faint(true).Render("queue: "+queueMode),
		)
	case ViewStats:
		current = m.statsView
	case ViewList:
		current = m.listView
	case ViewDispatch:
		current = m.dispatchView
	case ViewImport:
		current = m.importView
	default:
		return "Unknown View"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Padding(1, 1, 0).Render(current.Title()),
		current.View(),
		lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(current.ShortHelp()),
	)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := os.OpenFile(filepath.Join(os.TempDir(), "consignado-tui.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := cfg.Logger(logFile)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.InProcessQueue {
		if err := a.Worker.Start(); err != nil {
			slog.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(newModel(a))
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
