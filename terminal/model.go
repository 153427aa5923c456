package terminal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"psychebot/catalog"
	"psychebot/psychtest"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type phase int

const (
	phasePickTest phase = iota
	phaseAskName
	phaseAskAge
	phaseLoadingQuestion
	phaseQuestion
	phaseCheckingAnswer
	phaseGeneratingReport
	phaseReport
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

// Model drives one interactive test run in the terminal. The engine's oracle
// calls happen inside tea.Cmds so the UI keeps rendering while they run.
type Model struct {
	engine  *psychtest.Engine
	catalog catalog.Catalog

	phase    phase
	cursor   int
	input    textinput.Model
	spin     spinner.Model
	session  *psychtest.Session
	userName string
	userAge  int

	botText string
	report  string
	errText string
}

type questionMsg struct{ text string }

type answerMsg struct {
	outcome psychtest.Outcome
	err     error
}

type reportMsg struct {
	report string
	err    error
}

func NewModel(engine *psychtest.Engine, cat catalog.Catalog) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	return Model{
		engine:  engine,
		catalog: cat,
		phase:   phasePickTest,
		input:   ti,
		spin:    sp,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(typed)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(typed)
		return m, cmd
	case questionMsg:
		m.phase = phaseQuestion
		m.botText = typed.text
		m.input.Reset()
		m.input.Focus()
		return m, textinput.Blink
	case answerMsg:
		return m.handleAnswer(typed)
	case reportMsg:
		if typed.err != nil {
			m.phase = phaseQuestion
			m.errText = "Report generation failed: " + typed.err.Error()
			return m, nil
		}
		m.phase = phaseReport
		m.report = typed.report
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	}

	switch m.phase {
	case phasePickTest:
		switch key.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.catalog.Tests)-1 {
				m.cursor++
			}
		case "enter":
			m.phase = phaseAskName
			m.input.Placeholder = "Your name"
			m.input.Reset()
			m.input.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case phaseAskName:
		if key.Type == tea.KeyEnter {
			name := strings.TrimSpace(m.input.Value())
			if name == "" {
				m.errText = "A name is required."
				return m, nil
			}
			m.userName = name
			m.errText = ""
			m.phase = phaseAskAge
			m.input.Placeholder = "Your age"
			m.input.Reset()
			return m, nil
		}

	case phaseAskAge:
		if key.Type == tea.KeyEnter {
			age, err := strconv.Atoi(strings.TrimSpace(m.input.Value()))
			if err != nil || age < 5 || age > 120 {
				m.errText = "Please enter your age as a number."
				return m, nil
			}
			m.userAge = age
			m.errText = ""
			m.session = m.engine.StartSession(m.catalog.Tests[m.cursor], m.userName, age, 0)
			m.phase = phaseLoadingQuestion
			m.input.Blur()
			return m, tea.Batch(m.spin.Tick, m.fetchQuestion())
		}

	case phaseQuestion:
		if key.Type == tea.KeyEnter {
			answer := strings.TrimSpace(m.input.Value())
			if answer == "" {
				return m, nil
			}
			m.errText = ""
			m.phase = phaseCheckingAnswer
			m.input.Blur()
			return m, tea.Batch(m.spin.Tick, m.submitAnswer(answer))
		}

	case phaseReport:
		if key.Type == tea.KeyEnter {
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m Model) handleAnswer(msg answerMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.phase = phaseQuestion
		m.errText = "Something went wrong: " + msg.err.Error()
		m.input.Focus()
		return m, textinput.Blink
	}

	if !msg.outcome.Advanced {
		m.phase = phaseQuestion
		m.botText = msg.outcome.RetryMessage
		m.input.Reset()
		m.input.Focus()
		return m, textinput.Blink
	}

	if msg.outcome.Finished {
		m.phase = phaseGeneratingReport
		return m, tea.Batch(m.spin.Tick, m.generateReport())
	}

	m.phase = phaseQuestion
	m.botText = msg.outcome.NextQuestion
	m.input.Reset()
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) fetchQuestion() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return questionMsg{text: m.engine.NextPrompt(context.Background(), session)}
	}
}

func (m Model) submitAnswer(answer string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		outcome, err := m.engine.SubmitAnswer(context.Background(), session, answer)
		return answerMsg{outcome: outcome, err: err}
	}
}

func (m Model) generateReport() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		report, err := m.engine.Summarize(context.Background(), session)
		return reportMsg{report: report, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Psyche — conversational psychology tests"))
	b.WriteString("\n\n")

	switch m.phase {
	case phasePickTest:
		b.WriteString("Pick a test (↑/↓ and enter):\n\n")
		for i, test := range m.catalog.Tests {
			line := fmt.Sprintf("  %s (%d questions, %s)", test.Name, len(test.Questions), test.EstimatedTime)
			if i == m.cursor {
				line = selectedStyle.Render("> " + strings.TrimSpace(line))
			}
			b.WriteString(line + "\n")
		}
	case phaseAskName:
		b.WriteString("What name should I use for you?\n\n")
		b.WriteString(m.input.View() + "\n")
	case phaseAskAge:
		b.WriteString(fmt.Sprintf("Nice to meet you, %s! How old are you?\n\n", m.userName))
		b.WriteString(m.input.View() + "\n")
	case phaseLoadingQuestion:
		b.WriteString(m.spin.View() + " Preparing your first question...\n")
	case phaseQuestion:
		b.WriteString(botStyle.Render(m.botText) + "\n\n")
		b.WriteString(m.input.View() + "\n")
	case phaseCheckingAnswer:
		b.WriteString(botStyle.Render(m.botText) + "\n\n")
		b.WriteString(m.spin.View() + " Thinking about your answer...\n")
	case phaseGeneratingReport:
		b.WriteString(m.spin.View() + " Putting your report together...\n")
	case phaseReport:
		b.WriteString(m.report + "\n\n")
		b.WriteString(faintStyle.Render("Press enter to exit."))
	}

	if m.errText != "" {
		b.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}
	b.WriteString("\n" + faintStyle.Render("esc to quit"))
	return b.String()
}
