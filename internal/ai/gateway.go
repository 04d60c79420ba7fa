package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// FallbackReply is returned when the provider answers without usable text.
const FallbackReply = "Sorry, I could not generate a reply."

// Generation parameters tuned for short, chat-style replies.
const (
	DefaultModel    = "llama-3.1-8b-instant"
	DefaultBaseURL  = "https://api.groq.com/openai/v1"
	Temperature     = 0.7
	TopP            = 0.9
	MaxOutputTokens = 384
)

var (
	// ErrMisconfigured means provider credentials are missing.
	ErrMisconfigured = errors.New("ai: provider credentials missing")
	// ErrRateLimited means the provider rejected the call with a rate limit.
	ErrRateLimited = errors.New("ai: provider rate limit reached")
	// ErrGatewayFailure covers every other provider or network failure.
	ErrGatewayFailure = errors.New("ai: provider call failed")
)

// Replier produces an assistant reply for a conversation.
type Replier interface {
	Reply(ctx context.Context, system string, history []Turn, text string) (string, error)
}

// GatewayConfig holds the provider connection settings.
type GatewayConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Gateway calls an OpenAI-compatible chat completion endpoint.
type Gateway struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewGateway creates a gateway. A missing API key is not an error here;
// every Reply reports ErrMisconfigured instead.
func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	} else {
		clientConfig.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Gateway{
		client: openai.NewClientWithConfig(clientConfig),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

// Reply sends [system, history..., user text] to the provider and returns
// the first candidate's trimmed text. History turns with blank content are
// left out. It never returns an empty reply without an error, and it does
// not retry.
func (g *Gateway) Reply(ctx context.Context, system string, history []Turn, text string) (string, error) {
	if g.apiKey == "" {
		return "", ErrMisconfigured
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(system, history, text),
		Temperature: Temperature,
		TopP:        TopP,
		MaxTokens:   MaxOutputTokens,
		N:           1,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) > 0 {
		if reply := strings.TrimSpace(resp.Choices[0].Message.Content); reply != "" {
			return reply, nil
		}
	}
	return FallbackReply, nil
}

func buildMessages(system string, history []Turn, text string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, turn := range history {
		// Providers reject turns without content.
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
}

// classify maps a provider error onto the gateway's error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errors.Wrap(ErrRateLimited, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errors.Wrap(ErrRateLimited, reqErr.Error())
	}
	return errors.Wrapf(ErrGatewayFailure, "%v", err)
}
