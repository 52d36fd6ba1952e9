package view

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeframePresets(t *testing.T) {
	type testCase struct {
		name      string
		tf        Timeframe
		today     time.Time
		wantStart time.Time
		wantEnd   time.Time
	}

	tests := []testCase{
		{name: "Today", tf: TimeframeToday, today: day(2024, 3, 15), wantStart: day(2024, 3, 15), wantEnd: day(2024, 3, 15)},
		{name: "Last7Days", tf: TimeframeLast7Days, today: day(2024, 3, 3), wantStart: day(2024, 2, 26), wantEnd: day(2024, 3, 3)},
		{name: "ThisMonth", tf: TimeframeThisMonth, today: day(2024, 2, 10), wantStart: day(2024, 2, 1), wantEnd: day(2024, 2, 29)},
		{name: "LastMonthAcrossYear", tf: TimeframeLastMonth, today: day(2024, 1, 31), wantStart: day(2023, 12, 1), wantEnd: day(2023, 12, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := timeframePresets[tt.tf].window(tt.today)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestTimeframePicker_Custom(t *testing.T) {
	m := NewTimeframePicker()

	for range int(TimeframeCustom) {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, m.IsSelecting())

	m.inputs[0].SetValue("2024-03-10")
	m.inputs[1].SetValue("2024-03-01")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.ErrorContains(t, m.err, "before the first")

	m.inputs[1].SetValue("2024-03-31")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, TimeframeSelectedMsg{Start: day(2024, 3, 10), End: day(2024, 3, 31)}, cmd())
}

func TestTimeframePicker_All(t *testing.T) {
	_, cmd := NewTimeframePicker().Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, TimeframeSelectedMsg{All: true}, cmd())
}
