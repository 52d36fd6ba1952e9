package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
)

const dispatchTimeout = time.Minute

type dispatchState int

const (
	dispatchStateBank dispatchState = iota
	dispatchStateTimeframe
	dispatchStateRunning
	dispatchStateResult
)

// DispatchModel sends pending transactions to the reconciliation queue.
type DispatchModel struct {
	CommonModel
	orchestrator *reconciliation.Orchestrator

	state  dispatchState
	form   *huh.Form
	picker TimeframePicker
	filter reconciliation.DispatchFilter

	status string
	err    error
}

func NewDispatchModel(orchestrator *reconciliation.Orchestrator) DispatchModel {
	return DispatchModel{
		orchestrator: orchestrator,
		form:         dispatchForm(),
		picker:       NewTimeframePicker(),
	}
}

func dispatchForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("bank").
				Title("Bank").
				Description("Leave empty to dispatch every bank"),
		),
	).WithWidth(45).WithShowHelp(false)
}

func (m DispatchModel) Title() string { return "Dispatch Pending" }

func (m DispatchModel) ShortHelp() string {
	return "Esc: back | Enter: select"
}

func (m DispatchModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m DispatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc && (m.state != dispatchStateTimeframe || m.picker.IsSelecting()) {
			return m.handleEsc()
		}

	case TimeframeSelectedMsg:
		if !msg.All {
			m.filter.DateFrom = &msg.Start
			m.filter.DateTo = &msg.End
		}

		m.state = dispatchStateRunning

		return m, m.dispatchCmd()

	case dispatchResultMsg:
		m.state = dispatchStateResult
		m.err = msg.err

		switch {
		case msg.err != nil && msg.result.DispatchedCount > 0:
			m.status = fmt.Sprintf("Dispatched %d transactions before failing: %v", msg.result.DispatchedCount, msg.err)
		case msg.err != nil:
			m.status = fmt.Sprintf("Error: %v", msg.err)
		default:
			m.status = fmt.Sprintf("Dispatched %d transactions.", msg.result.DispatchedCount)
		}

		return m, nil
	}

	switch m.state {
	case dispatchStateBank:
		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		if m.form.State != huh.StateCompleted {
			return m, cmd
		}

		m.filter = reconciliation.DispatchFilter{}
		if bank := strings.TrimSpace(m.form.GetString("bank")); bank != "" {
			m.filter.BankID = &bank
		}

		m.state = dispatchStateTimeframe

		return m, m.picker.Init()

	case dispatchStateTimeframe:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m DispatchModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case dispatchStateTimeframe, dispatchStateResult:
		m.state = dispatchStateBank
		m.form = dispatchForm()
		m.picker.Reset()
		m.err = nil
		m.status = ""

		return m, m.form.Init()
	case dispatchStateRunning:
		return m, nil
	}

	return m, Back
}

func (m DispatchModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	switch m.state {
	case dispatchStateBank:
		return style.Render(m.form.View())
	case dispatchStateTimeframe:
		return style.Render(m.picker.View())
	case dispatchStateRunning:
		return style.Render("Dispatching...")
	case dispatchStateResult:
		if m.err != nil {
			return style.Render(errorStyle.Render(m.status) + "\n\n(Esc to go back)")
		}

		return style.Render(successStyle.Render(m.status) + "\n\n(Esc to go back)")
	}

	return ""
}

type dispatchResultMsg struct {
	result reconciliation.DispatchResult
	err    error
}

func (m DispatchModel) dispatchCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		result, err := m.orchestrator.DispatchPending(ctx, filter)

		return dispatchResultMsg{result: result, err: err}
	}
}
