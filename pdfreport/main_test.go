package pdfreport

import (
	"bytes"
	"testing"
)

func TestRenderProducesPDF(t *testing.T) {
	report := `# Your Personality Profile 🌟

## Key Traits
You show **strong independence** in your answers.

- Prefers deep solitary work
- Plans loosely rather than rigidly

### Growth Areas
Consider seeking more collaborative settings.`

	out, err := Render("Work Style", "Dana", report)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty PDF output")
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", out[:8])
	}
}

func TestSanitizeStripsEmoji(t *testing.T) {
	got := sanitize("Key Traits 🌟✨")
	if got != "Key Traits" {
		t.Errorf("unexpected sanitized text %q", got)
	}
}
