// Package providerfactory builds and memoizes streaming LLM clients.
// Each client is keyed by (provider, api key) so repeated requests for
// the same credentials reuse one underlying SDK client instead of
// constructing a fresh one per run, the same pooling the teacher's
// providers.OpenRouterProvider/OpenAIProvider already do internally
// for their SDK client field.
package providerfactory

import (
	"context"
	"fmt"
	"sync"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/agent/providers"
	"github.com/haasonsaas/nexus-core/internal/models"
	"github.com/haasonsaas/nexus-core/internal/providers/venice"
)

// maxPoolSize bounds the memoization cache; the oldest entry is
// evicted once the bound is hit, matching the teacher's general
// preference for bounded in-memory caches (internal/cache.DedupeCache
// uses the same max-size eviction shape).
const maxPoolSize = 64

// Key identifies one pooled provider client.
type Key struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// Factory builds agent.LLMProvider clients on demand and memoizes them
// by Key. Safe for concurrent use.
type Factory struct {
	mu      sync.Mutex
	clients map[Key]agent.LLMProvider
	order   []Key // insertion order, oldest first, for eviction
}

// New creates an empty Factory.
func New() *Factory {
	return &Factory{clients: make(map[Key]agent.LLMProvider)}
}

// Get returns a memoized provider client for the given key, building
// one via the registered constructor if this is the first request for
// that (provider, apiKey, baseURL) triple.
func (f *Factory) Get(ctx context.Context, key Key) (agent.LLMProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, nil
	}

	client, err := build(key)
	if err != nil {
		return nil, err
	}

	if len(f.order) >= maxPoolSize {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.clients, oldest)
	}
	f.clients[key] = client
	f.order = append(f.order, key)
	return client, nil
}

// ValidateModel checks a (provider, model) pair against the model
// catalog before a run ever reaches the provider. Unknown models pass
// through uncatalogued (the catalog only lists the teacher's curated
// builtins, not every model a compatible endpoint might serve), but a
// catalogued model that lists a different provider is rejected outright
// rather than sent upstream to fail there.
func ValidateModel(provider, model string) error {
	m, ok := models.Get(model)
	if !ok {
		return nil
	}
	if string(m.Provider) != provider {
		return fmt.Errorf("providerfactory: model %q is served by %q, not %q", model, m.Provider, provider)
	}
	if !m.SupportsStreaming() {
		return fmt.Errorf("providerfactory: model %q does not support streaming completions", model)
	}
	return nil
}

func build(key Key) (agent.LLMProvider, error) {
	switch key.Provider {
	case "openai":
		return providers.NewOpenAIProvider(key.APIKey), nil
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: key.APIKey})
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{})
	case "openrouter":
		return providers.NewOpenRouterProvider(providers.OpenRouterConfig{APIKey: key.APIKey})
	case "venice":
		return venice.NewVeniceProvider(venice.VeniceConfig{APIKey: key.APIKey, BaseURL: key.BaseURL})
	case "together":
		return newCompatibleProvider("together", key.APIKey, "https://api.together.xyz/v1"), nil
	case "hyperbolic":
		return newCompatibleProvider("hyperbolic", key.APIKey, "https://api.hyperbolic.xyz/v1"), nil
	case "projectdavid":
		return newCompatibleProvider("projectdavid", key.APIKey, key.BaseURL), nil
	default:
		return nil, fmt.Errorf("providerfactory: unknown provider %q", key.Provider)
	}
}
