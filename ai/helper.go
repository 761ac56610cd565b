package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
)

// ErrDisabled is returned when no API key is configured. Callers fall back
// to the static category wording.
var ErrDisabled = errors.New("ai: no api key configured")

const requestTimeout = 30 * time.Second

// Helper wraps the OpenAI client for dispute-wording assistance. Entirely
// optional; the dispute pipeline never depends on it.
type Helper struct {
	client *openai.Client
	model  string
}

func NewHelper(apiKey string) *Helper {
	if apiKey == "" {
		return &Helper{}
	}
	return &Helper{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// Enabled reports whether a key was configured.
func (h *Helper) Enabled() bool {
	return h.client != nil
}

// GenerateDisputeReason asks the model for a professional one-paragraph
// dispute reason for a finding. Returns ErrDisabled when unconfigured so
// callers can use FallbackReason instead.
func (h *Helper) GenerateDisputeReason(ctx context.Context, category analyzer.Category, accountSummary string) (string, error) {
	if h.client == nil {
		return "", ErrDisabled
	}
	info, err := analyzer.Info(category)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := fmt.Sprintf("Generate a professional dispute reason for: %s (FCRA %s)\nAccount: %s", info.Name, info.FCRASection, accountSummary)
	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: h.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a credit repair specialist. Write professional dispute reasons in one short paragraph.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ai: empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FallbackReason is the static wording used when the helper is disabled or
// errors out.
func FallbackReason(category analyzer.Category) string {
	info, err := analyzer.Info(category)
	if err != nil {
		return "The information is inaccurate and/or incomplete. Please investigate and correct."
	}
	return fmt.Sprintf("%s. Please investigate and correct this information pursuant to FCRA %s.", info.Name, info.FCRASection)
}
