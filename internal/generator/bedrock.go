package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockConfig configures the Bedrock backend. Endpoint is only set in tests.
type BedrockConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	ModelID         string
	Endpoint        string
}

// Bedrock invokes an Anthropic model through AWS Bedrock.
type Bedrock struct {
	cfg BedrockConfig
}

func NewBedrock(cfg BedrockConfig) *Bedrock { return &Bedrock{cfg: cfg} }

func (b *Bedrock) Name() string { return "bedrock" }

// Available is false for the placeholder keys shipped in sample env files.
func (b *Bedrock) Available() bool {
	return configured(b.cfg.AccessKeyID, b.cfg.SecretAccessKey, b.cfg.Region, b.cfg.ModelID)
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []map[string]any `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *Bedrock) Generate(ctx context.Context, prompt string) (string, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(b.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(b.cfg.AccessKeyID, b.cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return "", fmt.Errorf("unable to load AWS config: %w", err)
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if b.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.cfg.Endpoint)
		}
	})

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           SystemInstruction,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []map[string]any{{"type": "text", "text": UserInstruction(prompt)}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke bedrock model: %w", err)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	for _, c := range parsed.Content {
		if strings.TrimSpace(c.Text) != "" {
			return c.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
