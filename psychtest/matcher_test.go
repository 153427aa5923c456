package psychtest

import (
	"context"
	"strings"
	"testing"
)

func TestParseMatcherReply(t *testing.T) {
	options := []string{"Detailed schedule", "Loose priorities", "No plan"}

	cases := []struct {
		name         string
		reply        string
		wantValid    bool
		wantSelected string
	}{
		{
			name:         "clean valid verdict",
			reply:        "VALID: YES\nOPTION: No plan\nANALYSIS: Comfortable with ambiguity.\nPATTERNS: Flexible.",
			wantValid:    true,
			wantSelected: "No plan",
		},
		{
			name:         "case insensitive label match",
			reply:        "VALID: YES\nOPTION: no plan\nANALYSIS: Goes with the flow.\nPATTERNS: Adaptive.",
			wantValid:    true,
			wantSelected: "No plan",
		},
		{
			name:      "explicit invalid",
			reply:     "VALID: NO\nOPTION: NONE\nANALYSIS: Unrelated topic.\nPATTERNS: None.",
			wantValid: false,
		},
		{
			name:      "valid but option not a label",
			reply:     "VALID: YES\nOPTION: Somewhat planned\nANALYSIS: Mix of both.\nPATTERNS: Balanced.",
			wantValid: false,
		},
		{
			name:      "valid but option NONE",
			reply:     "VALID: YES\nOPTION: NONE\nANALYSIS: Contradictory.\nPATTERNS: Unclear.",
			wantValid: false,
		},
		{
			name:      "free prose without structure",
			reply:     "The user seems to prefer a loose approach to planning.",
			wantValid: false,
		},
		{
			name:      "empty reply",
			reply:     "",
			wantValid: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valid, selected, analysis := parseMatcherReply(tc.reply, options)
			if valid != tc.wantValid {
				t.Fatalf("valid = %v, want %v", valid, tc.wantValid)
			}
			if selected != tc.wantSelected {
				t.Errorf("selected = %q, want %q", selected, tc.wantSelected)
			}
			if analysis == "" {
				t.Error("analysis must never be empty")
			}
		})
	}
}

func TestParseMatcherReplyDefaultAnalysis(t *testing.T) {
	_, _, analysis := parseMatcherReply("garbage", []string{"a", "b"})
	if analysis != unclearAnalysis {
		t.Errorf("expected default analysis, got %q", analysis)
	}
}

func TestTruncateWords(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := truncateWords(long, 70)
	if n := len(strings.Fields(got)); n != 70 {
		t.Errorf("expected 70 words, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected ellipsis on truncated text")
	}
	short := "just a few words"
	if truncateWords(short, 70) != short {
		t.Error("short text must pass through unchanged")
	}
}

func TestKeywordPrecheckMatchesOptionText(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"Next question phrased."}}
	e := testEngine(oracle)
	s := e.StartSession(twoQuestionTest(), "Dana", 30, 1)

	before := oracle.calls
	out, err := e.SubmitAnswer(context.Background(), s, "  ALONE ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Advanced {
		t.Fatal("expected verbatim option text to be accepted")
	}
	if s.Answers[0].SelectedOption != "Alone" {
		t.Errorf("expected canonical label, got %q", s.Answers[0].SelectedOption)
	}
	// Only the next-question phrasing call should have happened.
	if oracle.calls != before+1 {
		t.Errorf("expected 1 oracle call, got %d", oracle.calls-before)
	}
}

func TestKeywordPrecheckMatchesOptionNumberPhrase(t *testing.T) {
	oracle := &scriptedOracle{replies: []string{"Next question phrased."}}
	e := testEngine(oracle)
	s := e.StartSession(twoQuestionTest(), "Dana", 30, 1)

	out, err := e.SubmitAnswer(context.Background(), s, "option 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Advanced || s.Answers[0].SelectedOption != "In a team" {
		t.Fatalf("expected 'option 2' to select In a team, got %+v", s.Answers)
	}
}
