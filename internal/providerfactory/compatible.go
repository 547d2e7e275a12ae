package providerfactory

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus-core/internal/agent"
	openai "github.com/sashabaranov/go-openai"
)

// compatibleProvider wraps any OpenAI-compatible chat-completions API
// (custom base URL, bearer auth) behind agent.LLMProvider. Grounded on
// providers.AzureOpenAIProvider's custom-endpoint handling and
// providers.OpenRouterProvider's SDK reuse — both already point the
// same go-openai client at a non-default base URL, so this is that
// same pattern made provider-name-agnostic for together/hyperbolic/
// the internal control-plane client, none of which need anything
// Azure- or OpenRouter-specific.
type compatibleProvider struct {
	name       string
	client     *openai.Client
	maxRetries int
	retryDelay time.Duration
}

func newCompatibleProvider(name, apiKey, baseURL string) *compatibleProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &compatibleProvider{
		name:       name,
		client:     openai.NewClientWithConfig(cfg),
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

func (p *compatibleProvider) Name() string { return p.name }

func (p *compatibleProvider) SupportsTools() bool { return true }

func (p *compatibleProvider) Models() []agent.Model {
	// Compatible endpoints don't expose a stable static catalog the way
	// OpenAI's own does; callers pass an explicit model ID per request.
	return nil
}

// Complete streams a completion the same way providers.OpenAIProvider
// does: spawn the SDK's streaming call in a goroutine, forward each
// delta as a CompletionChunk, close on EOF or ctx cancellation.
func (p *compatibleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	out := make(chan *agent.CompletionChunk, 16)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(out)
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				out <- &agent.CompletionChunk{Error: ctx.Err()}
				return
			default:
			}

			resp, err := stream.Recv()
			if err != nil {
				if err.Error() == "EOF" {
					out <- &agent.CompletionChunk{Done: true}
					return
				}
				out <- &agent.CompletionChunk{Error: err}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				out <- &agent.CompletionChunk{Text: delta.Content}
			}
		}
	}()

	return out, nil
}
