package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, check func(r *http.Request, req chatRequest), status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		check(r, req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
			})
			return
		}
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
}

func TestAzureOpenAIRequestShape(t *testing.T) {
	srv := chatServer(t, func(r *http.Request, req chatRequest) {
		assert.Equal(t, "/openai/deployments/gpt-35-turbo/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "primary", r.Header.Get("api-key"))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "S3 bucket for logs")
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		assert.Equal(t, 4000, req.MaxTokens)
	}, http.StatusOK, "export const bucket = 1;")
	defer srv.Close()

	az := NewAzureOpenAI(AzureConfig{Endpoint: srv.URL + "/", Key: "primary", DeploymentID: "gpt-35-turbo", APIVersion: "2024-02-01"}, srv.Client())
	require.True(t, az.Available())
	out, err := az.Generate(context.Background(), "S3 bucket for logs")
	require.NoError(t, err)
	assert.Equal(t, "export const bucket = 1;", out)
}

func TestAzureOpenAIBackupUsesSecondaryKey(t *testing.T) {
	srv := chatServer(t, func(r *http.Request, _ chatRequest) {
		assert.Equal(t, "secondary", r.Header.Get("api-key"))
	}, http.StatusOK, "ok")
	defer srv.Close()

	az := NewAzureOpenAI(AzureConfig{Endpoint: srv.URL, Key: "primary", BackupKey: "secondary", DeploymentID: "d", APIVersion: "v"}, srv.Client())
	backup := az.Backup()
	require.NotNil(t, backup)
	assert.Equal(t, "azure-backup", backup.Name())
	_, err := backup.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Nil(t, backup.(BackupProvider).Backup())

	assert.Nil(t, NewAzureOpenAI(AzureConfig{Key: "k"}, nil).Backup())
}

func TestOpenAICompatibleErrorStatus(t *testing.T) {
	srv := chatServer(t, func(r *http.Request, req chatRequest) {
		assert.Equal(t, "Bearer gsk", r.Header.Get("Authorization"))
		assert.Equal(t, "llama3-70b-8192", req.Model)
	}, http.StatusTooManyRequests, "")
	defer srv.Close()

	groq := NewOpenAICompatible("groq", srv.URL, "gsk", "llama3-70b-8192", srv.Client())
	_, err := groq.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestBedrockAvailabilityRejectsPlaceholders(t *testing.T) {
	assert.False(t, NewBedrock(BedrockConfig{AccessKeyID: "your_aws_access_key", SecretAccessKey: "your_aws_secret_key", Region: "us-west-2", ModelID: "m"}).Available())
	assert.False(t, NewBedrock(BedrockConfig{Region: "us-west-2", ModelID: "m"}).Available())
	assert.True(t, NewBedrock(BedrockConfig{AccessKeyID: "AKIA", SecretAccessKey: "s", Region: "us-west-2", ModelID: "m"}).Available())
}

func TestBedrockInvokeModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/model/"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/invoke"))
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		var body bedrockRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bedrock-2023-05-31", body.AnthropicVersion)
		assert.Equal(t, SystemInstruction, body.System)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"export const fromBedrock = 1;"}]}`))
	}))
	defer srv.Close()

	b := NewBedrock(BedrockConfig{
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		Region:          "us-west-2",
		ModelID:         "anthropic.claude-3-sonnet-20240229-v1:0",
		Endpoint:        srv.URL,
	})
	out, err := b.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "export const fromBedrock = 1;", out)
}

func TestVertexAvailability(t *testing.T) {
	assert.False(t, NewVertex("", "us-central1", "gemini-pro").Available())
	assert.True(t, NewVertex("proj", "us-central1", "gemini-pro").Available())
}
