// Package stepview is an interactive terminal viewer for step-by-step query
// execution results. It renders a finished run; it never re-executes.
package stepview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/querylens-io/querylens/internal/engine"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	explainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Model is the Bubble Tea model for the step viewer.
type Model struct {
	query     string
	steps     []engine.StepRecord
	selected  int
	showInput bool
	width     int
	height    int
	table     table.Model
}

// New creates a viewer over a finished step run.
func New(query string, steps []engine.StepRecord) Model {
	m := Model{query: query, steps: steps}
	m.table = m.buildTable()
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.buildTable()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.showInput = false
				m.table = m.buildTable()
			}
		case "down", "j":
			if m.selected < len(m.steps)-1 {
				m.selected++
				m.showInput = false
				m.table = m.buildTable()
			}
		case "tab":
			m.showInput = !m.showInput
			m.table = m.buildTable()
		}
	}
	return m, nil
}

func (m Model) View() string {
	if len(m.steps) == 0 {
		return "No steps to show.\n\nPress q to quit."
	}

	left := m.stepList()
	right := m.stepDetail()

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(left),
		paneStyle.Render(right),
	)

	help := dimStyle.Render("↑/↓ or j/k: select step   tab: input/output   q: quit")
	return titleStyle.Render("QueryLens: "+m.query) + "\n" + body + "\n" + help + "\n"
}

// stepList renders the left pane: one line per step with its row delta.
func (m Model) stepList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Steps"))
	b.WriteString("\n")
	for i, s := range m.steps {
		label := string(s.StepType)
		if s.Side != "" {
			label += fmt.Sprintf(" (%s)", s.Side)
		}
		line := fmt.Sprintf("%2d. %-18s %d → %d", s.StepNumber, label, s.RowsBefore, s.RowsAfter)
		if s.OutputTable == nil {
			line = fmt.Sprintf("%2d. %-18s failed", s.StepNumber, label)
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stepDetail renders the right pane: explanation plus the selected step's
// input or output relation.
func (m Model) stepDetail() string {
	s := m.steps[m.selected]

	var b strings.Builder
	side := "Output"
	if m.showInput {
		side = "Input"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("Step %d: %s (%s)", s.StepNumber, s.StepType, side)))
	b.WriteString("\n")
	b.WriteString(explainStyle.Render(s.Explanation))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	return b.String()
}

// currentData picks the relation shown in the detail pane.
func (m Model) currentData() *engine.TableData {
	s := m.steps[m.selected]
	if m.showInput {
		if len(s.InputTables) > 0 {
			return &s.InputTables[0]
		}
		return nil
	}
	return s.OutputTable
}

const maxViewRows = 15

func (m Model) buildTable() table.Model {
	data := m.currentData()
	if data == nil || len(data.Columns) == 0 {
		return table.New(table.WithColumns([]table.Column{{Title: "(no data)", Width: 12}}))
	}

	highlighted := make(map[string]bool)
	if s := m.steps[m.selected]; !m.showInput {
		for _, c := range s.HighlightedCols {
			highlighted[strings.ToLower(c)] = true
		}
	}

	cols := make([]table.Column, len(data.Columns))
	for i, c := range data.Columns {
		title := c
		if highlighted[strings.ToLower(c)] {
			title = "*" + c
		}
		cols[i] = table.Column{Title: title, Width: columnWidth(c, data)}
	}

	rows := make([]table.Row, 0, len(data.Data))
	for i, row := range data.Data {
		if i >= maxViewRows {
			break
		}
		tr := make(table.Row, len(data.Columns))
		for j, c := range data.Columns {
			tr[j] = formatCell(row[c])
		}
		rows = append(rows, tr)
	}

	height := len(rows) + 1
	if height > maxViewRows+1 {
		height = maxViewRows + 1
	}

	return table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(height),
	)
}

func columnWidth(col string, data *engine.TableData) int {
	w := len(col) + 1
	for i, row := range data.Data {
		if i >= maxViewRows {
			break
		}
		if l := len(formatCell(row[col])); l > w {
			w = l
		}
	}
	if w > 24 {
		w = 24
	}
	return w
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
