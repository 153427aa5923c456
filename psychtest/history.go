package psychtest

import (
	"context"
	"fmt"
	"strings"

	"psychebot/modelapi"

	"go.uber.org/zap"
)

const (
	historyTrimThreshold = 6
	historyRetention     = 2
)

// maybeSummarizeHistory folds older transcript turns into HistorySummary once
// the transcript grows past the threshold, keeping only the most recent turns
// verbatim. A summarization failure leaves the transcript untouched; the next
// call retries.
func (e *Engine) maybeSummarizeHistory(ctx context.Context, s *Session) {
	if len(s.Transcript) <= historyTrimThreshold {
		return
	}

	cut := len(s.Transcript) - historyRetention
	older := s.Transcript[:cut]

	var b strings.Builder
	if s.HistorySummary != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(s.HistorySummary)
		b.WriteString("\n\n")
	}
	for _, m := range older {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	summary, err := e.oracle.Complete(ctx, []modelapi.Message{
		{Role: modelapi.SYSTEM, Content: "You summarize conversations accurately and concisely."},
		{Role: modelapi.USER, Content: historySummaryPrompt(b.String())},
	})
	if err != nil {
		e.logger.Logger(ctx).Warn("[Engine] History summarization failed, keeping full transcript", zap.Error(err))
		return
	}

	s.HistorySummary = strings.TrimSpace(summary)
	s.Transcript = append([]modelapi.Message(nil), s.Transcript[cut:]...)
	e.logger.Logger(ctx).Info("[Engine] Transcript summarized",
		zap.String("session_id", s.ID),
		zap.Int("kept_messages", historyRetention))
}
