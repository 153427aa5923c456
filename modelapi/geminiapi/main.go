package geminiapi

import (
	"context"
	"fmt"
	"os"
	"psychebot/logger"
	"psychebot/modelapi"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
}

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type Gemini struct {
	logger *logger.LogMiddleware
	client *genai.Client
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	GEMINI_KEY := os.Getenv("GEMINI_SECRET_KEY")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  GEMINI_KEY,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client")
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client}
}

// Complete maps the conversation onto Gemini's content format. System turns
// are folded into the system instruction; assistant turns become "model"
// content. Transport-level flakiness is retried with backoff, but the caller
// still sees a single logical attempt.
func (g *Gemini) Complete(ctx context.Context, messages []modelapi.Message) (string, error) {
	tracer := otel.Tracer("geminiapi/Complete")
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()
	span.SetAttributes(attribute.Int("message_count", len(messages)))

	var systemPrompt string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case modelapi.SYSTEM:
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += m.Content
		case modelapi.ASSISTANT:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := g.generateContentWithRetry(ctx, contents, systemPrompt)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response received")
	}

	return resp.Text(), nil
}

func (g *Gemini) generateContentWithRetry(ctx context.Context, contents []*genai.Content, systemPrompt string) (*genai.GenerateContentResponse, error) {
	tracer := otel.Tracer("geminiapi/generateContentWithRetry")
	ctx, span := tracer.Start(ctx, "generateContentWithRetry")
	defer span.End()

	var resp *genai.GenerateContentResponse
	var err error

	thinkingBudget := int32(0)

	for attempt := 0; attempt < maxRetries; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))
		g.logger.Logger(ctx).Info("[GeminiAPI] LLM generation attempt", zap.Int("attempt", attempt+1))

		resp, err = g.client.Models.GenerateContent(ctx, GEMINI_MODEL_NAME, contents, &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		})

		if err != nil || resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			if err != nil {
				span.RecordError(err)
				g.logger.Logger(ctx).Warn("[GeminiAPI] Error generating LLM content, retrying...",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
			} else {
				g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response, retrying...",
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
				span.AddEvent("EmptyResponse")
			}

			if attempt < maxRetries-1 {
				delay := exponentialBackoff(attempt)
				span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		break
	}

	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Final error generating LLM content after retries:", zap.Error(err))
		return nil, err
	}

	span.AddEvent("LLM generation successful")
	return resp, nil
}
