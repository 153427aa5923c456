package psychtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrSessionFinished is returned when an answer is submitted after the last
// question has been accepted.
var ErrSessionFinished = errors.New("session already finished")

const oracleDownMessage = "I'm having a technical issue on my end. Please send your answer again in a moment. 🙏"

// Session is the mutable state of one user working through one test. It is
// owned by a single conversation; nothing mutates it concurrently.
type Session struct {
	ID             string
	Test           catalog.Test
	UserName       string
	UserAge        int
	ChatID         int64
	Cursor         int
	Finished       bool
	Transcript     []modelapi.Message
	HistorySummary string
	LastAnswer     *LastAnswer
	AttemptCount   int
	Answers        []AnswerRecord
	StartedAt      time.Time
}

// LastAnswer is the snapshot used to acknowledge the previous answer when
// phrasing the next question.
type LastAnswer struct {
	Question       string
	RawResponse    string
	SelectedOption string
}

// AnswerRecord is one accepted answer. Records are append-only and never
// mutated after acceptance.
type AnswerRecord struct {
	QuestionID     string    `json:"question_id"`
	Question       string    `json:"question"`
	SelectedOption string    `json:"selected_option"`
	RawResponse    string    `json:"original_response"`
	Analysis       string    `json:"response_analysis"`
	QuestionNumber int       `json:"question_number"`
	AnsweredAt     time.Time `json:"timestamp"`
}

// Outcome is the result of submitting one answer.
type Outcome struct {
	Advanced     bool
	Finished     bool
	NextQuestion string
	RetryMessage string
}

type EngineConnectProps struct {
	Logger *logger.LogMiddleware
	Oracle modelapi.Oracle
}

// Engine drives test sessions: it phrases questions, matches answers and
// generates reports. All oracle traffic goes through the injected Oracle so
// tests can script it.
type Engine struct {
	logger *logger.LogMiddleware
	oracle modelapi.Oracle
}

func Connect(ctx context.Context, args EngineConnectProps) *Engine {
	tracer := otel.Tracer("psychtest/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &Engine{logger: args.Logger, oracle: args.Oracle}
}

// StartSession initializes a session at the first question with a transcript
// seeded by the platform introduction and the user's own introduction turn.
func (e *Engine) StartSession(test catalog.Test, userName string, userAge int, chatID int64) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Test:     test,
		UserName: userName,
		UserAge:  userAge,
		ChatID:   chatID,
		Transcript: []modelapi.Message{
			{Role: modelapi.ASSISTANT, Content: modelapi.INTRO_TEXT},
			{Role: modelapi.USER, Content: fmt.Sprintf("My name is %s and I am %d", userName, userAge)},
		},
		StartedAt: time.Now(),
	}
}

// NextPrompt returns the current question phrased conversationally, with the
// numbered option list appended. It returns "" once the session is finished.
// An oracle failure falls back to the plain question text so the session can
// always continue.
func (e *Engine) NextPrompt(ctx context.Context, s *Session) string {
	tracer := otel.Tracer("psychtest/NextPrompt")
	ctx, span := tracer.Start(ctx, "NextPrompt")
	defer span.End()

	if s.Finished || s.Cursor >= len(s.Test.Questions) {
		return ""
	}

	q := s.Test.Questions[s.Cursor]
	total := len(s.Test.Questions)
	qnum := s.Cursor + 1
	span.SetAttributes(attribute.Int("question.number", qnum))

	var prompt string
	if s.LastAnswer != nil {
		prompt = questionWithAckPrompt(s.UserName, s.LastAnswer.RawResponse, s.LastAnswer.SelectedOption, qnum, total, q.Text)
	} else {
		prompt = firstQuestionPrompt(qnum, total, q.Text)
	}
	prompt += "\n\nAvailable options:\n" + numberedOptions(q.Options)

	text, err := e.completeWithContext(ctx, s, prompt)
	if err != nil {
		e.logger.Logger(ctx).Warn("[Engine] Oracle failed while phrasing question, using plain fallback",
			zap.Error(err), zap.Int("question", qnum))
		text = q.Text + "\n\nAvailable options:\n" + numberedOptions(q.Options)
		s.Transcript = append(s.Transcript, modelapi.Message{Role: modelapi.ASSISTANT, Content: text})
	}

	return fmt.Sprintf("Question %d/%d\n%s", qnum, total, text)
}

// SubmitAnswer validates one answer for the current question. On acceptance
// the cursor advances and the next question text (or nothing, when finished)
// is returned; on rejection the attempt counter grows and a retry message is
// returned. The cursor never moves on rejection.
func (e *Engine) SubmitAnswer(ctx context.Context, s *Session, rawText string) (Outcome, error) {
	tracer := otel.Tracer("psychtest/SubmitAnswer")
	ctx, span := tracer.Start(ctx, "SubmitAnswer")
	defer span.End()

	if s.Finished || s.Cursor >= len(s.Test.Questions) {
		return Outcome{}, ErrSessionFinished
	}

	q := s.Test.Questions[s.Cursor]
	span.SetAttributes(
		attribute.Int("question.number", s.Cursor+1),
		attribute.Int("attempts.so_far", s.AttemptCount),
	)

	s.Transcript = append(s.Transcript, modelapi.Message{Role: modelapi.USER, Content: rawText})

	valid, selected, analysis := e.matchAnswer(ctx, s, q, rawText)
	if !valid {
		s.AttemptCount++
		retry := e.retryMessage(ctx, s, q, rawText)
		s.Transcript = append(s.Transcript, modelapi.Message{Role: modelapi.ASSISTANT, Content: retry})
		e.logger.Logger(ctx).Info("[Engine] Answer rejected",
			zap.String("session_id", s.ID),
			zap.Int("question", s.Cursor+1),
			zap.Int("attempt", s.AttemptCount))
		return Outcome{RetryMessage: retry}, nil
	}

	questionID := q.ID
	if questionID == "" {
		questionID = fmt.Sprintf("q_%d", s.Cursor+1)
	}
	s.Answers = append(s.Answers, AnswerRecord{
		QuestionID:     questionID,
		Question:       q.Text,
		SelectedOption: selected,
		RawResponse:    rawText,
		Analysis:       analysis,
		QuestionNumber: s.Cursor + 1,
		AnsweredAt:     time.Now(),
	})
	s.LastAnswer = &LastAnswer{Question: q.Text, RawResponse: rawText, SelectedOption: selected}
	s.AttemptCount = 0
	if analysis != "" {
		s.Transcript = append(s.Transcript, modelapi.Message{
			Role:    modelapi.SYSTEM,
			Content: "Psychological insight: " + analysis,
		})
	}

	s.Cursor++
	e.logger.Logger(ctx).Info("[Engine] Answer accepted",
		zap.String("session_id", s.ID),
		zap.String("selected_option", selected),
		zap.Int("next_question", s.Cursor+1))

	if s.Cursor >= len(s.Test.Questions) {
		s.Finished = true
		return Outcome{Advanced: true, Finished: true}, nil
	}

	return Outcome{Advanced: true, NextQuestion: e.NextPrompt(ctx, s)}, nil
}

// retryMessage asks the oracle for an attempt-aware nudge; the first attempt
// reads gentler than later ones. Oracle failure falls back to a fixed string
// so the turn stays retryable.
func (e *Engine) retryMessage(ctx context.Context, s *Session, q catalog.Question, rawText string) string {
	prompt := retryPrompt(s.UserName, q.Text, q.Options, rawText, s.AttemptCount)
	msg, err := e.completeWithContext(ctx, s, prompt)
	if err != nil {
		e.logger.Logger(ctx).Warn("[Engine] Oracle failed while generating retry message", zap.Error(err))
		return fmt.Sprintf("I couldn't quite match that to one of the options. Could you try again, maybe by replying with the option number (1-%d)?", len(q.Options))
	}
	return msg
}

// completeWithContext runs one oracle call with the session persona, history
// summary and transcript as context. On success the task prompt and reply
// are appended to the transcript. The call is single-attempt: failures are
// returned to the caller, never retried here.
func (e *Engine) completeWithContext(ctx context.Context, s *Session, taskPrompt string) (string, error) {
	e.maybeSummarizeHistory(ctx, s)

	system := modelapi.CHATBOT_PERSONA
	if s.UserName != "" {
		system += fmt.Sprintf("\n\nCurrently helping %s (age %d) complete the '%s' test.", s.UserName, s.UserAge, s.Test.Name)
		system += "\n\nIMPORTANT: This is an ongoing conversation. Maintain continuity based on the full history provided."
	}
	if s.HistorySummary != "" {
		system += "\n\nConversation summary (use this along with recent history for full context):\n" + s.HistorySummary
	}

	messages := make([]modelapi.Message, 0, len(s.Transcript)+2)
	messages = append(messages, modelapi.Message{Role: modelapi.SYSTEM, Content: system})
	for _, m := range s.Transcript {
		if m.Role == modelapi.USER || m.Role == modelapi.ASSISTANT {
			messages = append(messages, m)
		}
	}
	messages = append(messages, modelapi.Message{Role: modelapi.USER, Content: taskPrompt})

	reply, err := e.oracle.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)

	s.Transcript = append(s.Transcript,
		modelapi.Message{Role: modelapi.USER, Content: taskPrompt},
		modelapi.Message{Role: modelapi.ASSISTANT, Content: reply},
	)
	return reply, nil
}
