package modelapi

import "context"

const (
	ASSISTANT = "assistant"
	SYSTEM    = "system"
	USER      = "user"
)

// Message is one role-tagged turn of a chat exchange with a language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Oracle is a chat completion backend. Implementations send the ordered
// messages as one request and return the model's text reply. The core engine
// treats the oracle as nondeterministic and never retries a failed call on
// its own.
type Oracle interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ImageGenerator produces raster image bytes for a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}
