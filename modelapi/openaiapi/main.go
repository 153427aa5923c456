package openaiapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"psychebot/logger"
	"psychebot/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type OpenAI struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	client    *openai.Client
	model     openai.ChatModel
}

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args OpenAIConnectProps) *OpenAI {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	OPENAI_SECRET_KEY := os.Getenv("OPENAI_SECRET_KEY")

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))
	client := openai.NewClient(
		option.WithAPIKey(OPENAI_SECRET_KEY),
	)

	model := openai.ChatModel(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAI{logger: args.Logger, semaphore: sem, client: &client, model: model}
}

// Complete sends the conversation as one chat completion request.
func (d *OpenAI) Complete(ctx context.Context, messages []modelapi.Message) (string, error) {
	tracer := otel.Tracer("openaiapi/Complete")
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()

	span.SetAttributes(attribute.Int("message_count", len(messages)))

	if err := d.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore")
	}
	defer d.semaphore.Release(1)

	input := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case modelapi.SYSTEM:
			input = append(input, openai.SystemMessage(m.Content))
		case modelapi.ASSISTANT:
			input = append(input, openai.AssistantMessage(m.Content))
		default:
			input = append(input, openai.UserMessage(m.Content))
		}
	}

	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    d.model,
		Messages: input,
	})
	if err != nil {
		span.RecordError(err)
		d.logger.Logger(ctx).Error("[OpenAI-API] Chat completion failed", zap.Error(err))
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response received")
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders the avatar image for a report prompt.
func (d *OpenAI) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	tracer := otel.Tracer("openaiapi/GenerateImage")
	ctx, span := tracer.Start(ctx, "GenerateImage")
	defer span.End()

	if err := d.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore")
	}
	defer d.semaphore.Release(1)

	d.logger.Logger(ctx).Info("[OpenAI-API] Generating image", zap.Int("prompt_chars", len(prompt)))

	resp, err := d.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		span.RecordError(err)
		d.logger.Logger(ctx).Error("[OpenAI-API] Image generation failed", zap.Error(err))
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no image received")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	return imageBytes, nil
}
