package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ipobot/services/notify"
	"ipobot/services/tracker"
)

const ipoBotLogo = `
    ________  ____     ____  ____  ______
   /  _/ __ \/ __ \   / __ )/ __ \/_  __/
   / // /_/ / / / /  / __  / / / / / /
 _/ // ____/ /_/ /  / /_/ / /_/ / / /
/___/_/    \____/  /_____/\____/ /_/

   I P O   O P E N I N G   T R A C K E R
`

const (
	maxEvents      = 50
	refreshTimeout = 2 * time.Minute
)

var tabNames = []string{"Expected", "Opened", "Alerts"}

// Styles
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	dayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	statusOkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF0000"))
)

type model struct {
	registry      *tracker.Registry
	refresh       func(context.Context) error
	ready         bool
	width         int
	height        int
	activeTab     int
	snapshot      tracker.Snapshot
	events        []eventMsg
	state         tracker.State
	refreshing    bool
	expectedTable table.Model
	openedTable   table.Model
	lastRefresh   time.Time
	err           error
}

type tickMsg time.Time

// dataMsg carries a registry snapshot
type dataMsg tracker.Snapshot

// refreshDoneMsg reports the result of a manual refresh
type refreshDoneMsg struct {
	err error
}

func newTable(focused bool) table.Model {
	columns := []table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Company", Width: 36},
		{Title: "Date", Width: 12},
		{Title: "Expected", Width: 14},
		{Title: "Exchange", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(focused),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#7D56F4")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(registry *tracker.Registry, refresh func(context.Context) error) model {
	return model{
		registry:      registry,
		refresh:       refresh,
		state:         tracker.StateRegistering,
		expectedTable: newTable(true),
		openedTable:   newTable(false),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		loadData(m.registry),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadData(r *tracker.Registry) tea.Cmd {
	return func() tea.Msg {
		return dataMsg(r.Snapshot())
	}
}

func refreshCmd(refresh func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		return refreshDoneMsg{err: refresh(ctx)}
	}
}

func recordRows(records []tracker.Record) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		date := ""
		if !r.ScheduledDate.IsZero() {
			date = r.ScheduledDate.Format(tracker.DateLayout)
		}
		price := r.ExpectedPrice
		if price == "" {
			price = "N/A"
		} else {
			price = "$" + price
		}
		rows[i] = table.Row{
			r.Symbol,
			notify.Truncate(r.CompanyName, 34),
			date,
			price,
			notify.Truncate(r.Exchange, 14),
		}
	}
	return rows
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % len(tabNames)
			m.focusActive()
		case "shift+tab":
			m.activeTab = (m.activeTab + len(tabNames) - 1) % len(tabNames)
			m.focusActive()
		case "r":
			if m.refresh != nil && !m.refreshing {
				m.refreshing = true
				return m, refreshCmd(m.refresh)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tickMsg:
		return m, tea.Batch(loadData(m.registry), tickCmd())

	case dataMsg:
		m.snapshot = tracker.Snapshot(msg)
		m.lastRefresh = time.Now()
		m.expectedTable.SetRows(recordRows(m.snapshot.Expected))
		m.openedTable.SetRows(recordRows(m.snapshot.Opened))

	case eventMsg:
		m.events = append([]eventMsg{msg}, m.events...)
		if len(m.events) > maxEvents {
			m.events = m.events[:maxEvents]
		}
		return m, loadData(m.registry)

	case stateMsg:
		m.state = tracker.State(msg)

	case refreshDoneMsg:
		m.refreshing = false
		m.err = msg.err
		return m, loadData(m.registry)
	}

	// Update the active table
	switch m.activeTab {
	case 0:
		m.expectedTable, cmd = m.expectedTable.Update(msg)
	case 1:
		m.openedTable, cmd = m.openedTable.Update(msg)
	}

	return m, cmd
}

func (m *model) focusActive() {
	m.expectedTable.Blur()
	m.openedTable.Blur()
	switch m.activeTab {
	case 0:
		m.expectedTable.Focus()
	case 1:
		m.openedTable.Focus()
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  Loading IPO Bot..."
	}

	var b strings.Builder

	b.WriteString(logoStyle.Render(ipoBotLogo))

	dateLine := titleStyle.Render(fmt.Sprintf(" %s ", time.Now().Format("Monday, January 2, 2006 - 3:04 PM")))
	b.WriteString(dateLine + "\n")

	b.WriteString(m.renderTabs() + "\n")

	switch m.activeTab {
	case 0:
		b.WriteString(m.renderRecordsView("Expected IPOs", m.snapshot.Expected, m.expectedTable,
			"No IPOs waiting to open in this window."))
	case 1:
		b.WriteString(m.renderRecordsView("Opened IPOs", m.snapshot.Opened, m.openedTable,
			"No IPOs have opened yet."))
	case 2:
		b.WriteString(m.renderAlertsView())
	}

	b.WriteString(m.renderStatusBar())

	help := helpStyle.Render("Tab: Switch views • r: Refresh calendar • q: Quit")
	b.WriteString("\n" + help)

	return b.String()
}

func (m model) renderTabs() string {
	var rendered []string

	for i, tab := range tabNames {
		label := tab
		switch i {
		case 0:
			label = fmt.Sprintf("%s (%d)", tab, len(m.snapshot.Expected))
		case 1:
			label = fmt.Sprintf("%s (%d)", tab, len(m.snapshot.Opened))
		}

		style := lipgloss.NewStyle().Padding(0, 2)
		if i == m.activeTab {
			style = style.
				Background(lipgloss.Color("#7D56F4")).
				Foreground(lipgloss.Color("#FAFAFA")).
				Bold(true)
		} else {
			style = style.
				Foreground(lipgloss.Color("#626262"))
		}
		rendered = append(rendered, style.Render(label))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderRecordsView(title string, records []tracker.Record, t table.Model, empty string) string {
	var b strings.Builder

	window := ""
	if !m.snapshot.CurrentDay.IsZero() {
		window = fmt.Sprintf(" %s - %s", m.snapshot.CurrentDay.Format(tracker.DateLayout), m.snapshot.NextDay.Format(tracker.DateLayout))
	}
	b.WriteString(headerStyle.Render(title+window) + "\n\n")

	if len(records) == 0 {
		b.WriteString(boxStyle.Render(empty) + "\n")
	} else {
		b.WriteString(t.View() + "\n")
	}

	return b.String()
}

func (m model) renderAlertsView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Alerts") + "\n\n")

	if len(m.events) == 0 {
		b.WriteString(boxStyle.Render("No alerts yet. Alerts appear here when an expected IPO starts trading.") + "\n")
		return b.String()
	}

	for _, ev := range m.events {
		style := alertStyle
		if ev.kind == "day_complete" {
			style = dayStyle
		}
		b.WriteString(boxStyle.Render(fmt.Sprintf("%s\n\n%s",
			style.Render(ev.text),
			helpStyle.Render(ev.at.Format("2006-01-02 15:04:05")),
		)) + "\n")
	}

	return b.String()
}

func (m model) renderStatusBar() string {
	var status string
	switch {
	case m.err != nil:
		status = statusErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.refreshing || m.state == tracker.StateRegistering:
		status = statusWarnStyle.Render("Registering new IPOs...")
	default:
		status = statusOkStyle.Render("Listening")
	}
	status += helpStyle.Render(fmt.Sprintf(" • Last update: %s", m.lastRefresh.Format("15:04:05")))
	return "\n" + status
}
