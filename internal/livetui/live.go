// Package livetui renders a solve's iteration history as it streams in: a
// Bubbletea/Lipgloss dashboard with a header/stat/sparkline layout driven
// by iteration log entries.
package livetui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ddpsolve/internal/optimizer"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// IterationMsg carries one freshly logged iteration.
type IterationMsg optimizer.IterationLogEntry

// DoneMsg signals the solve finished, successfully or not.
type DoneMsg struct{ Err error }

// Model streams a solve's iteration log into a live sparkline-plus-stats
// view.
type Model struct {
	scenario     string
	updates      <-chan IterationMsg
	done         <-chan DoneMsg
	meritHistory []float64
	ise1History  []float64
	latest       optimizer.IterationLogEntry
	finished     bool
	err          error
	quitting     bool
}

// New builds a live view fed by updates (one per completed iteration) and
// done (closed once, when the solve returns).
func New(scenario string, updates <-chan IterationMsg, done <-chan DoneMsg) Model {
	return Model{scenario: scenario, updates: updates, done: done}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForIteration(m.updates), waitForDone(m.done))
}

func waitForIteration(ch <-chan IterationMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func waitForDone(ch <-chan DoneMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case IterationMsg:
		entry := optimizer.IterationLogEntry(msg)
		m.latest = entry
		m.meritHistory = append(m.meritHistory, entry.Merit)
		m.ise1History = append(m.ise1History, entry.ISE1)
		return m, waitForIteration(m.updates)
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.scenario)) + "\n")

	if m.finished {
		if m.err != nil {
			s.WriteString(doneStyle.Render("FAILED: "+m.err.Error()) + "\n\n")
		} else {
			s.WriteString(doneStyle.Render("FINISHED") + "\n\n")
		}
	} else {
		s.WriteString(valueStyle.Render("solving...") + "\n\n")
	}

	if len(m.meritHistory) > 1 {
		chart := asciigraph.Plot(m.meritHistory, asciigraph.Height(6), asciigraph.Width(50), asciigraph.Caption("merit M"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString(labelStyle.Render("iteration") + valueStyle.Render(fmt.Sprintf("%d", m.latest.Iteration)) + "\n")
	s.WriteString(labelStyle.Render("cost") + valueStyle.Render(fmt.Sprintf("%.6f", m.latest.Cost)) + "\n")
	s.WriteString(labelStyle.Render("merit") + valueStyle.Render(fmt.Sprintf("%.6f", m.latest.Merit)) + "\n")
	s.WriteString(labelStyle.Render("ISE1") + valueStyle.Render(fmt.Sprintf("%.3e", m.latest.ISE1)) + "\n")
	s.WriteString(labelStyle.Render("ISE2") + valueStyle.Render(fmt.Sprintf("%.3e", m.latest.ISE2)) + "\n")
	s.WriteString(labelStyle.Render("alpha*") + valueStyle.Render(fmt.Sprintf("%.4f", m.latest.Alpha)) + "\n")

	s.WriteString(helpStyle.Render("q: quit"))
	return s.String()
}
