package generator

import (
	"fmt"
	"net/http"
	"time"

	"github.com/instanti8/engine/pkg/config"
)

// FromConfig builds backends in the order named by GENERATION_BACKENDS.
func FromConfig(c *config.Config) ([]Backend, error) {
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	var out []Backend
	for _, name := range c.Backends() {
		switch name {
		case "azure":
			out = append(out, NewAzureOpenAI(AzureConfig{
				Endpoint:     c.AzureOpenAIEndpoint,
				Key:          c.AzureOpenAIKey,
				BackupKey:    c.AzureOpenAIKeyBackup,
				DeploymentID: c.AzureOpenAIDeploymentID,
				APIVersion:   c.AzureOpenAIAPIVersion,
			}, httpClient))
		case "vertex":
			out = append(out, NewVertex(c.GoogleCloudProject, c.GoogleCloudLocation, c.VertexModel))
		case "bedrock":
			out = append(out, NewBedrock(BedrockConfig{
				AccessKeyID:     c.AWSAccessKeyID,
				SecretAccessKey: c.AWSSecretAccessKey,
				Region:          c.AWSRegion,
				ModelID:         c.BedrockModelID,
			}))
		case "groq":
			out = append(out, NewOpenAICompatible("groq", c.GroqBaseURL, c.GroqAPIKey, c.GroqModel, httpClient))
		default:
			return nil, fmt.Errorf("unknown generation backend %q", name)
		}
	}
	return out, nil
}
