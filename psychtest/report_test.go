package psychtest

import (
	"context"
	"strings"
	"testing"
	"time"
)

func finishedSession() *Session {
	return &Session{
		ID:       "s1",
		Test:     twoQuestionTest(),
		UserName: "Dana",
		UserAge:  30,
		Finished: true,
		Answers: []AnswerRecord{
			{QuestionID: "q1", Question: "Do you prefer working alone or in a team?", SelectedOption: "Alone", RawResponse: "1", Analysis: "Selected option 1 directly.", QuestionNumber: 1, AnsweredAt: time.Now()},
			{QuestionID: "q2", Question: "How do you plan your day?", SelectedOption: "No plan", RawResponse: "3", Analysis: "Selected option 3 directly.", QuestionNumber: 2, AnsweredAt: time.Now()},
		},
	}
}

func TestSummarizeSendsAnswersToOracle(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"# Your Report\n\nYou are thoughtful."}}
	e := testEngine(oracle)

	report, err := e.Summarize(context.Background(), finishedSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report != "# Your Report\n\nYou are thoughtful." {
		t.Errorf("unexpected report %q", report)
	}
	prompt := oracle.prompts[0]
	for _, needle := range []string{"Work Style", "Dana", `"selected_option": "Alone"`} {
		if !strings.Contains(prompt, needle) {
			t.Errorf("summary prompt missing %q", needle)
		}
	}
}

func TestSummarizeRequiresAnswers(t *testing.T) {
	e := testEngine(&scriptedOracle{})
	s := finishedSession()
	s.Answers = nil
	if _, err := e.Summarize(context.Background(), s); err == nil {
		t.Fatal("expected error for empty session")
	}
}

func TestGenerateImagePromptFallsBack(t *testing.T) {
	oracle := &scriptedOracle{}
	e := testEngine(oracle)

	prompt := e.GenerateImagePrompt(context.Background(), "A long personality report about curiosity.")
	if !strings.HasPrefix(prompt, "3D animated character") {
		t.Errorf("expected fixed fallback prompt, got %q", prompt)
	}
}

func TestSummarizePackageCombinesReports(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"Integrated picture of Dana."}}
	e := testEngine(oracle)

	combined, err := e.SummarizePackage(context.Background(), "Dana", 30, "Starter Bundle", []string{"report one", "report two"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined != "Integrated picture of Dana." {
		t.Errorf("unexpected combined report %q", combined)
	}
	if !strings.Contains(oracle.prompts[0], "report two") {
		t.Error("package prompt missing second report")
	}
}

func TestSplitForTransport(t *testing.T) {
	short := "fits in one message"
	if got := SplitForTransport(short); len(got) != 1 || got[0] != short {
		t.Fatalf("short report must stay whole, got %v", got)
	}

	para := strings.Repeat("sentence ", 100)
	long := strings.TrimSpace(strings.Repeat(para+"\n\n", 10))
	chunks := SplitForTransport(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > telegramMessageLimit {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestHistorySummarizationTrimsTranscript(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{
		"- Dana prefers quiet work\n- Age 30",
		"VALID: YES\nOPTION: Alone\nANALYSIS: Focused.\nPATTERNS: Independent.",
		"Next question phrased.",
	}}
	e := testEngine(oracle)
	s := e.StartSession(twoQuestionTest(), "Dana", 30, 1)

	// Inflate the transcript past the trim threshold.
	for i := 0; i < 6; i++ {
		s.Transcript = append(s.Transcript, s.Transcript[0])
	}

	if _, err := e.SubmitAnswer(context.Background(), s, "by myself mostly"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HistorySummary == "" {
		t.Fatal("expected a history summary")
	}
	if !strings.Contains(s.HistorySummary, "Dana") {
		t.Errorf("summary lost user details: %q", s.HistorySummary)
	}
}
