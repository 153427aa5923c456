package terminal

import (
	"context"
	"strings"
	"testing"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"
	"psychebot/psychtest"

	tea "github.com/charmbracelet/bubbletea"
)

type silentOracle struct{}

func (silentOracle) Complete(context.Context, []modelapi.Message) (string, error) {
	return "VALID: YES\nOPTION: Alone\nANALYSIS: Focused.\nPATTERNS: Independent.", nil
}

func testModel() Model {
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	engine := psychtest.Connect(context.Background(), psychtest.EngineConnectProps{Logger: log, Oracle: silentOracle{}})
	cat := catalog.Catalog{Tests: []catalog.Test{
		{Name: "Work Style", EstimatedTime: "5 minutes", Questions: []catalog.Question{
			{Text: "Do you prefer working alone or in a team?", Options: []string{"Alone", "In a team"}},
		}},
		{Name: "Stress Response", EstimatedTime: "3 minutes", Questions: []catalog.Question{
			{Text: "How do you react under pressure?", Options: []string{"Freeze", "Act"}},
		}},
	}}
	return NewModel(engine, cat)
}

func TestPickTestNavigation(t *testing.T) {
	m := testModel()

	view := m.View()
	if !strings.Contains(view, "Work Style") || !strings.Contains(view, "Stress Response") {
		t.Fatalf("test list missing entries:\n%s", view)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = updated.(Model)
	if m.cursor != 1 {
		t.Errorf("expected cursor 1 after down, got %d", m.cursor)
	}
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	m = updated.(Model)
	if m.cursor != 0 {
		t.Errorf("expected cursor 0 after up, got %d", m.cursor)
	}
}

func TestEnterMovesToNameIntake(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.phase != phaseAskName {
		t.Fatalf("expected name intake, got phase %d", m.phase)
	}
	if !strings.Contains(m.View(), "What name") {
		t.Errorf("name prompt missing:\n%s", m.View())
	}
}

func TestEmptyNameRejected(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.phase != phaseAskName {
		t.Errorf("empty name must not advance, got phase %d", m.phase)
	}
	if m.errText == "" {
		t.Error("expected an error message for empty name")
	}
}

func TestQuestionMsgFocusesInput(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(questionMsg{text: "Question 1/1\nAlone or team?"})
	m = updated.(Model)
	if m.phase != phaseQuestion {
		t.Fatalf("expected question phase, got %d", m.phase)
	}
	if !strings.Contains(m.View(), "Alone or team?") {
		t.Errorf("question text missing:\n%s", m.View())
	}
}

func TestRetryOutcomeStaysOnQuestion(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(answerMsg{outcome: psychtest.Outcome{RetryMessage: "Could you pick one of the options?"}})
	m = updated.(Model)
	if m.phase != phaseQuestion {
		t.Fatalf("expected question phase on retry, got %d", m.phase)
	}
	if !strings.Contains(m.View(), "Could you pick one of the options?") {
		t.Errorf("retry message missing:\n%s", m.View())
	}
}

func TestReportMsgShowsReport(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(reportMsg{report: "# Your Report\nThoughtful and focused."})
	m = updated.(Model)
	if m.phase != phaseReport {
		t.Fatalf("expected report phase, got %d", m.phase)
	}
	if !strings.Contains(m.View(), "Thoughtful and focused.") {
		t.Errorf("report text missing:\n%s", m.View())
	}
}
