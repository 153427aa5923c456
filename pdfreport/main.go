package pdfreport

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Render lays out a markdown-ish report as an A4 PDF. Only the subset the
// report generator emits is handled: #/##/### headings, "- " bullets and
// **bold** spans; everything else is body text.
func Render(testName, userName, report string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(49, 46, 129)
	pdf.MultiCell(0, 10, sanitize(testName), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 6, fmt.Sprintf("Prepared for %s on %s", sanitize(userName), time.Now().Format("January 2, 2006")), "", "L", false)
	pdf.Ln(4)

	pdf.SetTextColor(30, 30, 30)
	for _, line := range strings.Split(report, "\n") {
		writeLine(pdf, line)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdfreport: render: %w", err)
	}
	return buf.Bytes(), nil
}

func writeLine(pdf *fpdf.Fpdf, line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		pdf.Ln(3)
	case strings.HasPrefix(trimmed, "### "):
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, sanitize(strings.TrimPrefix(trimmed, "### ")), "", "L", false)
		pdf.Ln(1)
	case strings.HasPrefix(trimmed, "## "):
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, sanitize(strings.TrimPrefix(trimmed, "## ")), "", "L", false)
		pdf.Ln(1)
	case strings.HasPrefix(trimmed, "# "):
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 9, sanitize(strings.TrimPrefix(trimmed, "# ")), "", "L", false)
		pdf.Ln(2)
	case strings.HasPrefix(trimmed, "- "):
		writeSpans(pdf, "  • "+strings.TrimPrefix(trimmed, "- "))
	default:
		writeSpans(pdf, trimmed)
	}
}

// writeSpans renders one paragraph, toggling bold at ** markers.
func writeSpans(pdf *fpdf.Fpdf, text string) {
	parts := strings.Split(text, "**")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i%2 == 1 {
			pdf.SetFont("Helvetica", "B", 11)
		} else {
			pdf.SetFont("Helvetica", "", 11)
		}
		pdf.Write(6, sanitize(part))
	}
	pdf.Ln(7)
}

// sanitize drops characters outside the core font's coverage, mostly emoji
// the oracle likes to decorate section headers with.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if r < 0x20 || r > 0xFF {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
