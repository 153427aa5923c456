package psychtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"psychebot/catalog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const unclearAnalysis = "Could not clearly determine user's preference."

// matchAnswer decides whether rawText selects one of the question's options.
// Bare option numbers and verbatim option text are resolved without an oracle
// call; everything else goes through the oracle and its structured verdict.
func (e *Engine) matchAnswer(ctx context.Context, s *Session, q catalog.Question, rawText string) (valid bool, selected string, analysis string) {
	tracer := otel.Tracer("psychtest/matchAnswer")
	ctx, span := tracer.Start(ctx, "matchAnswer")
	defer span.End()

	trimmed := strings.TrimSpace(rawText)

	// Numeric fast path. A bare number is either an exact pick or an
	// immediate rejection; the oracle is never consulted for it.
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(q.Options) {
			span.SetAttributes(attribute.String("match.path", "numeric"))
			return true, q.Options[n-1], fmt.Sprintf("Selected option %d directly.", n)
		}
		span.SetAttributes(attribute.String("match.path", "numeric_out_of_range"))
		return false, "", unclearAnalysis
	}

	// Keyword pre-check: option text contained in the reply, "option N" or
	// "number N". A latency shortcut only; anything ambiguous goes to the
	// oracle.
	lowered := strings.ToLower(trimmed)
	for i, opt := range q.Options {
		optLower := strings.ToLower(strings.TrimSpace(opt))
		if strings.Contains(lowered, optLower) ||
			lowered == fmt.Sprintf("option %d", i+1) ||
			lowered == fmt.Sprintf("number %d", i+1) {
			span.SetAttributes(attribute.String("match.path", "keyword"))
			return true, q.Options[i], fmt.Sprintf("Selected option %d directly.", i+1)
		}
	}

	reply, err := e.completeWithContext(ctx, s, responseAnalysisPrompt(q.Text, q.Options, rawText))
	if err != nil {
		span.RecordError(err)
		e.logger.Logger(ctx).Error("[Engine] Oracle failed while matching answer", zap.Error(err))
		return false, "", oracleDownMessage
	}
	span.SetAttributes(attribute.String("match.path", "oracle"))

	return parseMatcherReply(reply, q.Options)
}

// parseMatcherReply extracts the structured verdict from the oracle's reply.
// Anything malformed reads as invalid; a matched option that does not equal
// one of the labels is downgraded to invalid rather than trusted.
func parseMatcherReply(reply string, options []string) (valid bool, selected string, analysis string) {
	analysis = unclearAnalysis

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "VALID:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "VALID:"))
			valid = strings.EqualFold(v, "YES")
		case strings.HasPrefix(line, "OPTION:"):
			selected = strings.TrimSpace(strings.TrimPrefix(line, "OPTION:"))
		case strings.HasPrefix(line, "ANALYSIS:"):
			if a := strings.TrimSpace(strings.TrimPrefix(line, "ANALYSIS:")); a != "" {
				analysis = a
			}
		}
	}

	if !valid {
		return false, "", analysis
	}

	// The selected option must equal one of the labels. Near-misses are
	// rejected so stored records always carry a canonical label.
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(opt)) {
			return true, opt, truncateWords(analysis, 70)
		}
	}
	return false, "", analysis
}

// truncateWords caps s at limit words, appending an ellipsis when cut.
func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ") + "..."
}
