package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Vertex generates with Gemini on Vertex AI using application default credentials.
type Vertex struct {
	project  string
	location string
	model    string

	mu     sync.Mutex
	client *genai.Client
}

func NewVertex(project, location, model string) *Vertex {
	return &Vertex{project: project, location: location, model: model}
}

func (v *Vertex) Name() string { return "vertex" }

func (v *Vertex) Available() bool { return configured(v.project, v.location, v.model) }

func (v *Vertex) genaiClient(ctx context.Context) (*genai.Client, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.client != nil {
		return v.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  v.project,
		Location: v.location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	v.client = c
	return c, nil
}

func (v *Vertex) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := v.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, v.model, genai.Text(UserInstruction(prompt)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		MaxOutputTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Vertex AI: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	return result.String(), nil
}
