package groqapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"psychebot/httpmiddleware"
	"psychebot/logger"
	"psychebot/modelapi"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type ChatCompletionInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequestInput struct {
	Model     string                       `json:"model"`
	Messages  []ChatCompletionInputMessage `json:"messages"`
	MaxTokens int                          `json:"max_tokens"`
}

type GroqResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GroqConnectProps struct {
	Logger *logger.LogMiddleware
}

type Groq struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	model     string
}

func Connect(ctx context.Context, args GroqConnectProps) *Groq {
	tracer := otel.Tracer("groqapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	return &Groq{logger: args.Logger, semaphore: sem, model: model}
}

type MakeAPIRequestProps struct {
	Retries      int
	RequestInput ChatRequestInput
}

// Used for retry logic.
func GetExponentialDelaySeconds(retryNumber int) int {
	delayTime := int(5 * math.Pow(2, float64(retryNumber)))
	return delayTime
}

func (o *Groq) MakeAPIRequest(ctx context.Context, args MakeAPIRequestProps) (*GroqResponse, error) {
	tracer := otel.Tracer("groqapi/MakeAPIRequest")
	ctx, span := tracer.Start(ctx, "MakeAPIRequest")
	defer span.End()

	API_KEY := os.Getenv("GROQ_SECRET_KEY")
	URL := "https://api.groq.com/openai/v1/chat/completions"

	span.SetAttributes(
		attribute.String("api.url", URL),
		attribute.Int("request.max_tokens", args.RequestInput.MaxTokens),
		attribute.String("request.model", args.RequestInput.Model),
	)

	requestInput := args.RequestInput
	retries := args.Retries
	originalRetries := args.Retries

	jsonData, err := json.Marshal(requestInput)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("Could not generate request body: %s", err.Error())
	}

	span.SetAttributes(attribute.Int("retries", retries))

	for retries > 0 {
		sleepTime := GetExponentialDelaySeconds(originalRetries - retries)
		span.SetAttributes(attribute.Int("sleep_time", sleepTime))

		if err := o.semaphore.Acquire(ctx, 1); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("Failed to acquire semaphore.")
		}

		respBody, err := httpmiddleware.HttpRequest(httpmiddleware.HttpRequestStruct{
			Method: "POST",
			Url:    URL,
			Body:   bytes.NewBuffer(jsonData),
			Headers: map[string]string{
				"authorization": "Bearer " + API_KEY,
				"content-type":  "application/json",
			},
		})
		o.semaphore.Release(1)

		if err != nil {
			span.RecordError(err)
			o.logger.Logger(ctx).Error(
				"[Groq-API] Could not make request to Groq. Retrying after sleeping.",
				zap.Error(err),
				zap.Int("retries_left", retries),
				zap.Int("sleep_time", sleepTime),
			)
			retries -= 1
			if retries == 0 {
				break
			}
			time.Sleep(time.Duration(sleepTime) * time.Second)
		} else {
			var messageResponse GroqResponse
			err = json.Unmarshal(respBody, &messageResponse)
			if err != nil || len(messageResponse.Choices) == 0 {
				span.RecordError(err)
				retries -= 1
				o.logger.Logger(ctx).Error(
					"[Groq-API] Could not parse Groq Request. Retrying after sleeping.",
					zap.Int("retries_left", retries),
					zap.Int("sleep_time", sleepTime),
					zap.Error(err),
					zap.String("response_body", string(respBody)),
				)
				if retries == 0 {
					break
				}
				time.Sleep(time.Duration(sleepTime) * time.Second)
			} else {
				span.AddEvent("Request successful")
				return &messageResponse, nil
			}
		}
	}

	span.AddEvent("All retries exhausted")
	return nil, fmt.Errorf("Groq Requests Failed")
}

// Complete sends one chat exchange as a single-attempt request. Conversation
// turns arrive fully formed from the caller; no persona is injected here.
func (a *Groq) Complete(ctx context.Context, messages []modelapi.Message) (string, error) {
	tracer := otel.Tracer("groqapi/Complete")
	ctx, span := tracer.Start(ctx, "Complete")
	defer span.End()

	span.SetAttributes(attribute.Int("message_count", len(messages)))

	input := make([]ChatCompletionInputMessage, 0, len(messages))
	for _, m := range messages {
		input = append(input, ChatCompletionInputMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := a.MakeAPIRequest(ctx, MakeAPIRequestProps{
		Retries: 1,
		RequestInput: ChatRequestInput{
			Model:     a.model,
			MaxTokens: 2048,
			Messages:  input,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("no response received")
	}

	return resp.Choices[0].Message.Content, nil
}
