package generator

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// AzureConfig configures the Azure OpenAI backend.
type AzureConfig struct {
	Endpoint     string
	Key          string
	BackupKey    string
	DeploymentID string
	APIVersion   string
}

// AzureOpenAI calls a chat deployment on Azure OpenAI.
type AzureOpenAI struct {
	name   string
	cfg    AzureConfig
	client *http.Client
}

func NewAzureOpenAI(cfg AzureConfig, client *http.Client) *AzureOpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	return &AzureOpenAI{name: "azure", cfg: cfg, client: client}
}

func (a *AzureOpenAI) Name() string { return a.name }

func (a *AzureOpenAI) Available() bool {
	return configured(a.cfg.Endpoint, a.cfg.Key, a.cfg.DeploymentID)
}

// Backup returns the same deployment using the secondary key, or nil.
func (a *AzureOpenAI) Backup() Backend {
	if !configured(a.cfg.BackupKey) || a.cfg.BackupKey == a.cfg.Key {
		return nil
	}
	cfg := a.cfg
	cfg.Key, cfg.BackupKey = cfg.BackupKey, ""
	return &AzureOpenAI{name: a.name + "-backup", cfg: cfg, client: a.client}
}

func (a *AzureOpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") +
		"/openai/deployments/" + url.PathEscape(a.cfg.DeploymentID) +
		"/chat/completions?api-version=" + url.QueryEscape(a.cfg.APIVersion)
	return postChat(ctx, a.client, endpoint, map[string]string{"api-key": a.cfg.Key}, newChatRequest("", prompt))
}
