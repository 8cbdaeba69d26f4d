package generator

import (
	"context"
	"net/http"
	"strings"
)

// OpenAICompatible talks to any /chat/completions API with bearer auth.
// Groq is the configured instance.
type OpenAICompatible struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAICompatible(name, baseURL, apiKey, model string, client *http.Client) *OpenAICompatible {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAICompatible{name: name, baseURL: baseURL, apiKey: apiKey, model: model, client: client}
}

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) Available() bool { return configured(o.baseURL, o.apiKey, o.model) }

func (o *OpenAICompatible) Generate(ctx context.Context, prompt string) (string, error) {
	return postChat(ctx, o.client, strings.TrimRight(o.baseURL, "/")+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + o.apiKey},
		newChatRequest(o.model, prompt))
}
