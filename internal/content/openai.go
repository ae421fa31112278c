package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	visionDefaultModel = "gpt-4o-mini"

	ocrPrompt = "Transcribe all text visible in this page image. " +
		"Return only the transcribed text in reading order, no commentary."
	captionPrompt = "Describe this image in one concise sentence suitable as a figure caption. " +
		"Return only the caption."
)

// VisionEngine implements OCR and captioning over a vision-capable chat
// model. One instance serves both interfaces; the scheduler guarantees it
// is only ever called from a single worker.
type VisionEngine struct {
	client     openai.Client
	model      string
	maxRetries int
}

// VisionEngineConfig configures a new VisionEngine.
type VisionEngineConfig struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible endpoints
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

// NewVisionEngine creates an engine backed by the configured endpoint.
func NewVisionEngine(cfg VisionEngineConfig) *VisionEngine {
	if cfg.Model == "" {
		cfg.Model = visionDefaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &VisionEngine{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}
}

// Recognize implements OCREngine.
func (e *VisionEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	return e.describe(ctx, image, ocrPrompt)
}

// Caption implements CaptionEngine.
func (e *VisionEngine) Caption(ctx context.Context, image []byte) (string, error) {
	return e.describe(ctx, image, captionPrompt)
}

func (e *VisionEngine) describe(ctx context.Context, image []byte, prompt string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	var text string
	err := retry.Do(
		func() error {
			resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(e.model),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(prompt),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL: dataURL,
						}),
					}),
				},
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("no choices in response")
			}
			text = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)),
		retry.Delay(time.Second),
	)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	return text, nil
}
