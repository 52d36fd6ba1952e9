package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Timeframe is a predefined or custom range of payment dates.
type Timeframe int

const (
	TimeframeAll Timeframe = iota
	TimeframeToday
	TimeframeLast7Days
	TimeframeThisMonth
	TimeframeLastMonth
	TimeframeCustom
)

type timeframePreset struct {
	label string
	// window returns the inclusive calendar range for a given day. Nil means unbounded.
	window func(today time.Time) (time.Time, time.Time)
}

var timeframePresets = map[Timeframe]timeframePreset{
	TimeframeAll: {label: "All Pending"},
	TimeframeToday: {label: "Paid Today", window: func(today time.Time) (time.Time, time.Time) {
		return today, today
	}},
	TimeframeLast7Days: {label: "Paid in the Last 7 Days", window: func(today time.Time) (time.Time, time.Time) {
		return today.AddDate(0, 0, -6), today
	}},
	TimeframeThisMonth: {label: "Paid This Month", window: func(today time.Time) (time.Time, time.Time) {
		first := today.AddDate(0, 0, 1-today.Day())
		return first, first.AddDate(0, 1, -1)
	}},
	TimeframeLastMonth: {label: "Paid Last Month", window: func(today time.Time) (time.Time, time.Time) {
		first := today.AddDate(0, 0, 1-today.Day()).AddDate(0, -1, 0)
		return first, first.AddDate(0, 1, -1)
	}},
	TimeframeCustom: {label: "Custom Payment Dates"},
}

func (t Timeframe) String() string {
	if p, ok := timeframePresets[t]; ok {
		return p.label
	}

	return "Unknown"
}

// utcToday is the current UTC calendar date, the zone payment dates are stored in.
func utcToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeframeSelectedMsg carries the chosen payment date range, both ends
// inclusive. Start and End are zero when All is true.
type TimeframeSelectedMsg struct {
	Start time.Time
	End   time.Time
	All   bool
}

// TimeframePicker selects the payment date range a screen operates on.
type TimeframePicker struct {
	cursor Timeframe
	custom bool

	inputs [2]textinput.Model
	focus  int

	err error
}

func NewTimeframePicker() TimeframePicker {
	m := TimeframePicker{cursor: TimeframeAll}

	for i, prompt := range []string{"First payment: ", "Last payment:  "} {
		in := textinput.New()
		in.Placeholder = "YYYY-MM-DD"
		in.CharLimit = len(time.DateOnly)
		in.Width = 12
		in.Prompt = prompt
		m.inputs[i] = in
	}

	return m
}

func (m TimeframePicker) Init() tea.Cmd {
	return nil
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)

	if !m.custom {
		if isKey {
			return m.updatePresets(key)
		}

		return m, nil
	}

	if isKey {
		switch key.String() {
		case "esc":
			m.custom = false
			m.err = nil

			return m, nil
		case "enter":
			return m.submitCustom()
		case "tab", "shift+tab":
			m.focus = 1 - m.focus
			return m, m.focusInput()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)

	return m, cmd
}

func (m TimeframePicker) updatePresets(key tea.KeyMsg) (TimeframePicker, tea.Cmd) {
	switch key.Type {
	case tea.KeyUp:
		if m.cursor > TimeframeAll {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < TimeframeCustom {
			m.cursor++
		}
	case tea.KeyEnter:
		preset := timeframePresets[m.cursor]

		switch {
		case m.cursor == TimeframeCustom:
			m.custom = true
			m.focus = 0

			return m, m.focusInput()
		case preset.window == nil:
			return m, selected(TimeframeSelectedMsg{All: true})
		default:
			start, end := preset.window(utcToday())
			return m, selected(TimeframeSelectedMsg{Start: start, End: end})
		}
	}

	return m, nil
}

func (m TimeframePicker) submitCustom() (TimeframePicker, tea.Cmd) {
	var bounds [2]time.Time

	for i, in := range m.inputs {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(in.Value()))
		if err != nil {
			m.err = fmt.Errorf("%s must be YYYY-MM-DD", strings.TrimSpace(strings.TrimSuffix(in.Prompt, ": ")))
			return m, nil
		}

		bounds[i] = d
	}

	if bounds[1].Before(bounds[0]) {
		m.err = fmt.Errorf("last payment date is before the first")
		return m, nil
	}

	m.err = nil

	return m, selected(TimeframeSelectedMsg{Start: bounds[0], End: bounds[1]})
}

func (m *TimeframePicker) focusInput() tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}

	return m.inputs[m.focus].Focus()
}

func selected(msg TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (m TimeframePicker) View() string {
	var b strings.Builder

	if m.custom {
		b.WriteString("Payment date range:\n\n")
		b.WriteString(m.inputs[0].View() + "\n" + m.inputs[1].View())
		b.WriteString("\n\n(Enter to confirm, Tab to switch, Esc to go back)")
	} else {
		b.WriteString("Payment dates:\n\n")

		for tf := TimeframeAll; tf <= TimeframeCustom; tf++ {
			if tf == m.cursor {
				fmt.Fprintf(&b, "> %s\n", activeStyle(tf.String()))
				continue
			}

			fmt.Fprintf(&b, "  %s\n", tf)
		}

		b.WriteString("\n(Enter to select, Esc to go back)")
	}

	if m.err != nil {
		b.WriteString("\n\n" + errorStyle.Render("Error: "+m.err.Error()))
	}

	return b.String()
}

// IsSelecting reports whether the picker shows the presets rather than the custom inputs.
func (m TimeframePicker) IsSelecting() bool {
	return !m.custom
}

// Reset returns the picker to the first preset with empty inputs.
func (m *TimeframePicker) Reset() {
	m.cursor = TimeframeAll
	m.custom = false
	m.err = nil

	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
}
