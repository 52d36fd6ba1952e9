package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

const listPageSize = 200

type listState int

const (
	listStateBrowse listState = iota
	listStateDetail
	listStateRequeue
)

type ListModel struct {
	CommonModel
	orchestrator *reconciliation.Orchestrator

	state  listState
	table  table.Model
	txs    []*transaction.BankTransaction
	total  int
	report *reconciliation.DivergenceReport
	form   *huh.Form

	// Filter cycling
	statusFilterIdx int
	dateFilterIdx   int

	filter  transaction.ListFilter
	loading bool
	err     error
	status  string
}

func NewListModel(orchestrator *reconciliation.Orchestrator) ListModel {
	columns := []table.Column{
		{Title: "Payment", Width: 12},
		{Title: "Bank", Width: 8},
		{Title: "Bank Tx", Width: 16},
		{Title: "Contract", Width: 16},
		{Title: "Amount", Width: 12},
		{Title: "Status", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{
		orchestrator: orchestrator,
		table:        t,
		loading:      true,
		filter:       transaction.ListFilter{Limit: listPageSize},
	}
}

func (m ListModel) Title() string { return "Bank Transactions" }
func (m ListModel) ShortHelp() string {
	switch m.state {
	case listStateDetail:
		return "Esc: close"
	case listStateRequeue:
		return "Confirm requeue | Esc: cancel"
	}

	return "Esc: back | Enter: divergences | u: requeue | s: status filter | d: date filter | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.txs = msg.page.Transactions
		m.total = msg.page.Total
		m.refreshTable()

		return m, nil

	case divergencesMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error loading divergences: %v", msg.err)
			return m, nil
		}

		m.report = msg.report
		m.state = listStateDetail
		m.table.Blur()

		return m, nil

	case requeueMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error requeueing: %v", msg.err)
		} else {
			m.status = "Transaction requeued"
		}

		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)

		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateDetail:
		return m.updateDetail(msg)
	case listStateRequeue:
		return m.updateRequeue(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadTxsCmd()
		case "enter":
			if tx := m.selected(); tx != nil {
				return m, m.divergencesCmd(tx)
			}

			return m, nil
		case "u":
			return m.enterRequeueMode()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % (len(transaction.Statuses) + 1)
			m.applyFilter()

			return m, m.loadTxsCmd()
		case "d":
			m.dateFilterIdx = (m.dateFilterIdx + 1) % 3
			m.applyFilter()

			return m, m.loadTxsCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ListModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc", "enter":
			m.state = listStateBrowse
			m.report = nil
			m.table.Focus()
		}
	}

	return m, nil
}

func (m ListModel) enterRequeueMode() (tea.Model, tea.Cmd) {
	tx := m.selected()
	if tx == nil {
		return m, nil
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Requeue %s / %s?", tx.BankID, tx.BankTransactionID)).
				Description("The transaction returns to PENDING and is reconciled again.").
				Affirmative("Requeue").
				Negative("Cancel"),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateRequeue
	m.table.Blur()

	return m, m.form.Init()
}

func (m ListModel) updateRequeue(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = listStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.form.GetBool("confirm") {
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	return m, m.requeueCmd()
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	dateLabels := []string{"All Time", "This Month", "Last Month"}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [d] Payment: %s | %d of %d",
		activeStyle(m.statusLabel()),
		activeStyle(dateLabels[m.dateFilterIdx]),
		len(m.txs), m.total,
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	var panel string

	switch {
	case m.state == listStateDetail && m.report != nil:
		panel = renderDivergences(m.report)
	case m.state == listStateRequeue && m.form != nil:
		panel = m.form.View()
	}

	if panel != "" {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(52).
			Render(panel))
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func renderDivergences(report *reconciliation.DivergenceReport) string {
	tx := report.Transaction

	var b strings.Builder

	fmt.Fprintf(&b, "%s / %s\n", tx.BankID, tx.BankTransactionID)
	fmt.Fprintf(&b, "Contract %s, %s on %s\n", tx.ContractNumber, FormatAmount(tx.Amount), FormatDate(tx.PaymentDate))
	fmt.Fprintf(&b, "Status: %s\n", lipgloss.NewStyle().Foreground(lipgloss.Color(statusColors[tx.Status])).Render(string(tx.Status)))

	if tx.LastError != "" {
		fmt.Fprintf(&b, "\n%s\n", errorStyle.Render(tx.LastError))
	}

	if len(report.Divergences) == 0 {
		b.WriteString("\nNo divergences.")
		return b.String()
	}

	for _, d := range report.Divergences {
		fmt.Fprintf(&b, "\n%s\n  expected: %s\n  observed: %s\n  %s\n",
			activeStyle(d.Field), optional(d.Expected), optional(d.Observed), faintStyle.Render(d.Description))
	}

	return b.String()
}

func (m ListModel) selected() *transaction.BankTransaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m ListModel) statusLabel() string {
	if m.statusFilterIdx == 0 {
		return "All"
	}

	return string(transaction.Statuses[m.statusFilterIdx-1])
}

func (m *ListModel) applyFilter() {
	m.filter.Status = nil
	if m.statusFilterIdx > 0 {
		status := transaction.Statuses[m.statusFilterIdx-1]
		m.filter.Status = &status
	}

	now := time.Now().UTC()
	switch m.dateFilterIdx {
	case 1:
		s := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		e := s.AddDate(0, 1, -1)
		m.filter.DateFrom = &s
		m.filter.DateTo = &e
	case 2:
		s := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		e := s.AddDate(0, 1, -1)
		m.filter.DateFrom = &s
		m.filter.DateTo = &e
	default:
		m.filter.DateFrom = nil
		m.filter.DateTo = nil
	}
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.txs))
	for _, tx := range m.txs {
		rows = append(rows, table.Row{
			FormatDate(tx.PaymentDate),
			tx.BankID,
			tx.BankTransactionID,
			tx.ContractNumber,
			FormatAmount(tx.Amount),
			string(tx.Status),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadListMsg struct {
	page *reconciliation.StatusPage
	err  error
}

func (m ListModel) loadTxsCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		page, err := m.orchestrator.QueryStatus(ctx, filter)

		return loadListMsg{page: page, err: err}
	}
}

type divergencesMsg struct {
	report *reconciliation.DivergenceReport
	err    error
}

func (m ListModel) divergencesCmd(tx *transaction.BankTransaction) tea.Cmd {
	id := tx.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		report, err := m.orchestrator.QueryDivergences(ctx, id)

		return divergencesMsg{report: report, err: err}
	}
}

type requeueMsg struct {
	err error
}

func (m ListModel) requeueCmd() tea.Cmd {
	tx := m.selected()
	if tx == nil {
		return nil
	}

	id := tx.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		return requeueMsg{err: m.orchestrator.Requeue(ctx, id)}
	}
}
