package mapview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxVisibleRows = 15

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	mappedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	unmappedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
)

// Model is the TUI model showing the identity mapping
type Model struct {
	table      table.Model
	repository string
	server     string
	rows       []Row
}

// NewModel creates the model. server is the Redmine base URL used for links and may be empty.
func NewModel(repository, server string, rows []Row) Model {
	t := table.New(
		table.WithColumns(columns(rows)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(len(rows))),
	)

	m := Model{
		table:      t,
		repository: repository,
		server:     strings.TrimSuffix(server, "/"),
		rows:       rows,
	}
	m.table.SetRows(m.tableRows())
	m.updateSelectionStyle()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	m.updateSelectionStyle()
	return m, cmd
}

// View renders the model
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render(fmt.Sprintf("Redmine issues migrated to %s", m.repository)))
	s.WriteString("\n")

	unmapped := Unmapped(m.rows)
	s.WriteString(infoStyle.Render(fmt.Sprintf("%d mapped, %d not migrated", len(m.rows)-unmapped, unmapped)))
	s.WriteString("\n")

	s.WriteString(m.table.View())
	s.WriteString("\n")

	if len(m.rows) > maxVisibleRows {
		s.WriteString(infoStyle.Italic(true).Render(fmt.Sprintf("Showing %d of %d issues - use arrow keys to scroll", maxVisibleRows, len(m.rows))))
		s.WriteString("\n")
	}

	if selected, ok := m.selected(); ok {
		s.WriteString(m.renderSelected(selected))
		s.WriteString("\n")
	}

	s.WriteString(infoStyle.MarginTop(1).Render("Press 'q' to quit, arrow keys to navigate"))
	return s.String()
}

func (m Model) selected() (Row, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[cursor], true
}

func (m Model) renderSelected(row Row) string {
	var s strings.Builder
	if row.Mapped {
		s.WriteString(mappedStyle.Render("MIGRATED"))
		s.WriteString(fmt.Sprintf(" Redmine issue %d is GitHub issue #%d", row.RedmineID, row.GitHubNumber))
	} else {
		s.WriteString(unmappedStyle.Render("NOT MIGRATED"))
		s.WriteString(fmt.Sprintf(" Redmine issue %d has no GitHub issue", row.RedmineID))
	}
	if m.server != "" {
		s.WriteString(fmt.Sprintf("\n%s/issues/%d", m.server, row.RedmineID))
	}
	return s.String()
}

func (m Model) tableRows() []table.Row {
	rows := make([]table.Row, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, table.Row{strconv.Itoa(row.RedmineID), row.github()})
	}
	return rows
}

// updateSelectionStyle colors the selection by whether the selected issue was migrated
func (m *Model) updateSelectionStyle() {
	background := lipgloss.Color("22")
	if selected, ok := m.selected(); ok && !selected.Mapped {
		background = lipgloss.Color("130")
	}

	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(background).
		Bold(true)
	m.table.SetStyles(styles)
}

func columns(rows []Row) []table.Column {
	redmineWidth, githubWidth := len("Redmine"), len("GitHub")
	for _, row := range rows {
		redmineWidth = max(redmineWidth, len(strconv.Itoa(row.RedmineID)))
		githubWidth = max(githubWidth, len(row.github()))
	}
	return []table.Column{
		{Title: "Redmine", Width: redmineWidth + 2},
		{Title: "GitHub", Width: githubWidth + 2},
	}
}

// tableHeight fits the content, limited to maxVisibleRows plus the header
func tableHeight(rows int) int {
	return max(min(rows, maxVisibleRows), 1) + 1
}
