package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/consignado/internal/importer"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

const importTimeout = 2 * time.Minute

type importState int

const (
	importStateBank importState = iota
	importStateFilePick
	importStateImporting
	importStateResult
)

type ImportModel struct {
	CommonModel
	importService *importer.Service

	state      importState
	form       *huh.Form
	filePicker filepicker.Model
	bankID     string

	skippedList list.Model
	result      *importer.Result

	status string
	err    error
}

func NewImportModel(impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ImportModel{
		importService: impSvc,
		filePicker:    fp,
		form:          bankForm(),
	}
}

func bankForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("bank").
				Title("Bank").
				Description("Identifier of the bank that reported the file").
				Placeholder("BT").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("bank cannot be empty")
					}

					return nil
				}),
		),
	).WithWidth(45).WithShowHelp(false)
}

func (m ImportModel) Title() string { return "Import Bank File" }

func (m ImportModel) ShortHelp() string {
	if m.state == importStateResult && m.result != nil && len(m.result.Skipped) > 0 {
		return "Up/Down: browse skipped | Esc: back"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

	case importResultMsg:
		m.state = importStateResult
		if msg.err != nil {
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		m.result = msg.result
		m.status = fmt.Sprintf("Imported %d transactions from %s, skipped %d already known.",
			len(msg.result.Created), m.bankID, len(msg.result.Skipped))
		m.skippedList = skippedList(msg.result.Skipped)

		return m, nil
	}

	switch m.state {
	case importStateBank:
		return m.updateBank(msg)
	case importStateFilePick:
		return m.updateFilePick(msg)
	case importStateResult:
		if m.result != nil && len(m.result.Skipped) > 0 {
			var cmd tea.Cmd
			m.skippedList, cmd = m.skippedList.Update(msg)

			return m, cmd
		}
	}

	return m, nil
}

func (m ImportModel) updateBank(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.bankID = strings.TrimSpace(m.form.GetString("bank"))
	m.state = importStateFilePick

	return m, m.filePicker.Init()
}

func (m ImportModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = importStateImporting
		m.status = fmt.Sprintf("Importing from %s...", path)

		return m, m.importCmd(path)
	}

	return m, cmd
}

func (m ImportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case importStateFilePick, importStateResult:
		m.state = importStateBank
		m.form = bankForm()
		m.result = nil
		m.err = nil
		m.status = ""

		return m, m.form.Init()
	}

	return m, Back
}

func (m ImportModel) View() string {
	switch m.state {
	case importStateBank:
		return lipgloss.NewStyle().Padding(2).Render(m.form.View())
	case importStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select file to import (%s):\n\n%s", m.bankID, m.filePicker.View()),
		)
	case importStateImporting:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case importStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ImportModel) viewResult() string {
	style := lipgloss.NewStyle().Padding(2)
	if m.err != nil {
		return style.Render(errorStyle.Render(m.status) + "\n\n(Esc to go back)")
	}

	out := successStyle.Render(m.status)
	if len(m.result.Skipped) > 0 {
		out += "\n\n" + m.skippedList.View()
	}

	return style.Render(out + "\n\n(Esc to go back)")
}

// Messages

type importResultMsg struct {
	result *importer.Result
	err    error
}

func (m ImportModel) importCmd(path string) tea.Cmd {
	bankID := m.bankID

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return importResultMsg{err: err}
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		result, err := m.importService.Import(ctx, importer.FormatFebraban, bankID, f)

		return importResultMsg{result: result, err: err}
	}
}

// Skipped rows list

func skippedList(skipped []transaction.CreateParams) list.Model {
	items := make([]list.Item, len(skipped))
	for i, p := range skipped {
		items[i] = skippedItem{params: p}
	}

	l := list.New(items, skippedDelegate{}, 80, 12)
	l.Title = "Already imported"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

type skippedItem struct {
	params transaction.CreateParams
}

func (i skippedItem) FilterValue() string { return i.params.BankTransactionID }

type skippedDelegate struct{}

func (d skippedDelegate) Height() int                             { return 1 }
func (d skippedDelegate) Spacing() int                            { return 0 }
func (d skippedDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d skippedDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(skippedItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	p := item.params
	fmt.Fprintf(w, "%s%s  %-16s  %-16s  %s",
		cursor, FormatDate(p.PaymentDate), p.BankTransactionID, p.ContractNumber, FormatAmount(p.Amount))
}
