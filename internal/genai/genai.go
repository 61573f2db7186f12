// Package genai provides the client for the external conversational runtime,
// backed by the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/oumacare/ancare/internal/models"
)

// companionSystemPrompt frames every runtime call. The agent's full behavior
// lives in the runtime; the engine only supplies this baseline framing.
const companionSystemPrompt = `You are the Pregnancy Companion, a caring assistant supporting pregnant women through their antenatal care.
Use simple, warm language and avoid medical jargon.
Messages tagged [SYSTEM REMINDER] are engine-initiated visit reminders: deliver them to the patient directly, without asking for confirmation.
You are a support companion, not a replacement for medical care.`

// chatCompleter is the minimal interface over the chat completion service,
// for testability.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration for the runtime client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the runtime client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for replies.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service as the conversational
// runtime consumed by the session resume coordinator.
type Client struct {
	completions chatCompleter
	model       string
}

// NewClient initializes a runtime client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{completions: &cli.Chat.Completions, model: cfg.Model}, nil
}

// Send forwards a message to the runtime under the given user and session
// identifiers and returns the reply text.
func (c *Client) Send(ctx context.Context, message, userID, sessionID string) (string, error) {
	slog.Debug("runtime Send", "userID", userID, "sessionID", sessionID, "message_len", len(message))

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(companionSystemPrompt),
			openai.UserMessage(message),
		},
		User: openai.String(userID),
	}

	resp, err := c.completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.ErrNoRuntimeResponse
	}

	reply := resp.Choices[0].Message.Content
	slog.Debug("runtime reply received", "userID", userID, "sessionID", sessionID, "reply_len", len(reply))
	return reply, nil
}
