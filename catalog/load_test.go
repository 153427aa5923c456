package catalog

import (
	"strings"
	"testing"
)

const validCatalog = `
tests:
  - test_name: "Work Style"
    estimated_time: "5 minutes"
    outcome: "A profile of how you approach work"
    usage: "Career planning"
    price_tokens: 100
    report_md: "# Report for {user_name}"
    questions:
      - id: q1
        question: "Do you prefer working alone or in a team?"
        options: ["Alone", "In a team"]
      - id: q2
        question: "How do you plan your day?"
        options: ["Detailed schedule", "Loose priorities", "No plan"]
packages:
  - id: starter
    name: "Starter Bundle"
    description: "Both tests at a discount"
    price_tokens: 150
    test_indexes: [1]
`

func TestParseValidCatalog(t *testing.T) {
	cat, err := Parse([]byte(validCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Tests) != 1 {
		t.Fatalf("expected 1 test, got %d", len(cat.Tests))
	}
	test := cat.Tests[0]
	if test.Name != "Work Style" {
		t.Errorf("unexpected test name %q", test.Name)
	}
	if len(test.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(test.Questions))
	}
	if got := test.Questions[1].Options; len(got) != 3 {
		t.Errorf("expected 3 options on q2, got %d", len(got))
	}
	if _, ok := cat.PackageByID("starter"); !ok {
		t.Error("expected starter package to resolve")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := strings.Replace(validCatalog, "estimated_time", "estimated_tim", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestValidateRejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"no tests", `tests: []`},
		{"unnamed test", `
tests:
  - questions:
      - question: "Q"
        options: ["a", "b"]`},
		{"single option", `
tests:
  - test_name: "T"
    questions:
      - question: "Q"
        options: ["only one"]`},
		{"duplicate names", `
tests:
  - test_name: "T"
    questions:
      - question: "Q"
        options: ["a", "b"]
  - test_name: "T"
    questions:
      - question: "Q"
        options: ["a", "b"]`},
		{"package out of range", `
tests:
  - test_name: "T"
    questions:
      - question: "Q"
        options: ["a", "b"]
packages:
  - id: p
    name: "P"
    test_indexes: [5]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.doc)); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestTestByName(t *testing.T) {
	cat, err := Parse([]byte(validCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cat.TestByName("Work Style"); !ok {
		t.Error("expected lookup to succeed")
	}
	if _, ok := cat.TestByName("Nope"); ok {
		t.Error("expected lookup to fail")
	}
}
