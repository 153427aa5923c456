package psychtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"psychebot/modelapi"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// telegramMessageLimit is Telegram's hard cap on message length.
const telegramMessageLimit = 4096

// Summarize produces the final report for a finished session. The call goes
// straight to the oracle with the result persona rather than through the
// session transcript, so report length is never constrained by chat history.
func (e *Engine) Summarize(ctx context.Context, s *Session) (string, error) {
	tracer := otel.Tracer("psychtest/Summarize")
	ctx, span := tracer.Start(ctx, "Summarize")
	defer span.End()

	if len(s.Answers) == 0 {
		return "", fmt.Errorf("summarize: session %s has no accepted answers", s.ID)
	}

	formatted, err := json.MarshalIndent(s.Answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("summarize: format answers: %w", err)
	}

	report, err := e.oracle.Complete(ctx, []modelapi.Message{
		{Role: modelapi.SYSTEM, Content: modelapi.RESULT_CHATBOT_PERSONA},
		{Role: modelapi.USER, Content: analysisSummaryPrompt(s.Test.Name, s.UserName, s.UserAge, string(formatted), s.Test.ReportMD)},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("summarize: %w", err)
	}

	e.logger.Logger(ctx).Info("[Engine] Report generated",
		zap.String("session_id", s.ID),
		zap.String("test", s.Test.Name),
		zap.Int("report_chars", len(report)))
	return strings.TrimSpace(report), nil
}

// SummarizePackage combines the reports of every test in a package into one
// integrated write-up.
func (e *Engine) SummarizePackage(ctx context.Context, userName string, userAge int, packageName string, reports []string) (string, error) {
	tracer := otel.Tracer("psychtest/SummarizePackage")
	ctx, span := tracer.Start(ctx, "SummarizePackage")
	defer span.End()

	if len(reports) == 0 {
		return "", fmt.Errorf("summarize package: no reports for %q", packageName)
	}

	var b strings.Builder
	for i, r := range reports {
		fmt.Fprintf(&b, "--- Report %d ---\n%s\n\n", i+1, r)
	}

	combined, err := e.oracle.Complete(ctx, []modelapi.Message{
		{Role: modelapi.SYSTEM, Content: modelapi.RESULT_CHATBOT_PERSONA},
		{Role: modelapi.USER, Content: packageSummaryPrompt(userName, userAge, packageName, b.String())},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("summarize package: %w", err)
	}
	return strings.TrimSpace(combined), nil
}

// GenerateImagePrompt turns a report into a short prompt for the avatar
// image. A fixed descriptive prompt is returned when the oracle fails so the
// image step never blocks report delivery.
func (e *Engine) GenerateImagePrompt(ctx context.Context, report string) string {
	tracer := otel.Tracer("psychtest/GenerateImagePrompt")
	ctx, span := tracer.Start(ctx, "GenerateImagePrompt")
	defer span.End()

	prompt, err := e.oracle.Complete(ctx, []modelapi.Message{
		{Role: modelapi.SYSTEM, Content: modelapi.IMAGE_PROMPT_SYSTEM},
		{Role: modelapi.USER, Content: imagePrompt(truncateWords(report, 300))},
	})
	if err != nil {
		e.logger.Logger(ctx).Warn("[Engine] Image prompt generation failed, using fixed prompt", zap.Error(err))
		return "3D animated character, minimalist, blue and indigo background, representing personality: " + truncateWords(report, 40)
	}
	return strings.TrimSpace(prompt)
}

// SplitForTransport breaks a report into chunks that fit a single Telegram
// message, preferring paragraph then line boundaries.
func SplitForTransport(report string) []string {
	if len(report) <= telegramMessageLimit {
		return []string{report}
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(report, "\n\n") {
		if len(para) > telegramMessageLimit {
			// A single oversized paragraph falls back to line splits.
			for _, line := range strings.Split(para, "\n") {
				appendPiece(&chunks, &current, line, "\n")
			}
			continue
		}
		appendPiece(&chunks, &current, para, "\n\n")
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func appendPiece(chunks *[]string, current *strings.Builder, piece, sep string) {
	if current.Len()+len(sep)+len(piece) > telegramMessageLimit {
		if current.Len() > 0 {
			*chunks = append(*chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		// Hard-wrap anything that alone exceeds the limit.
		for len(piece) > telegramMessageLimit {
			*chunks = append(*chunks, piece[:telegramMessageLimit])
			piece = piece[telegramMessageLimit:]
		}
	}
	if current.Len() > 0 {
		current.WriteString(sep)
	}
	current.WriteString(piece)
}
