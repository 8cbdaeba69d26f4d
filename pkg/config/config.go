package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret  string `mapstructure:"JWT_SECRET"`
	WorkingDir string `mapstructure:"WORKING_DIR"`

	// Credential store
	CredentialBackend        string `mapstructure:"CREDENTIAL_BACKEND" validate:"required,oneof=file database"`
	CredentialsDir           string `mapstructure:"CREDENTIALS_DIR" validate:"required"`
	CredentialsEncryptionKey string `mapstructure:"CREDENTIALS_ENCRYPTION_KEY" validate:"required_if=CredentialBackend database"`

	// Code generation backends, tried in this order
	GenerationBackends      string `mapstructure:"GENERATION_BACKENDS" validate:"required"`
	AzureOpenAIEndpoint     string `mapstructure:"AZURE_OPENAI_ENDPOINT" validate:"omitempty,url"`
	AzureOpenAIKey          string `mapstructure:"AZURE_OPENAI_KEY"`
	AzureOpenAIKeyBackup    string `mapstructure:"AZURE_OPENAI_KEY_BACKUP"`
	AzureOpenAIDeploymentID string `mapstructure:"AZURE_OPENAI_DEPLOYMENT_ID"`
	AzureOpenAIAPIVersion   string `mapstructure:"AZURE_OPENAI_API_VERSION"`
	GoogleCloudProject      string `mapstructure:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudLocation     string `mapstructure:"GOOGLE_CLOUD_LOCATION"`
	VertexModel             string `mapstructure:"VERTEX_MODEL"`
	AWSAccessKeyID          string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey      string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion               string `mapstructure:"AWS_REGION"`
	BedrockModelID          string `mapstructure:"BEDROCK_MODEL_ID"`
	GroqAPIKey              string `mapstructure:"GROQ_API_KEY"`
	GroqBaseURL             string `mapstructure:"GROQ_BASE_URL" validate:"omitempty,url"`
	GroqModel               string `mapstructure:"GROQ_MODEL"`

	// Automation engine
	PulumiAccessToken      string        `mapstructure:"PULUMI_ACCESS_TOKEN"`
	PulumiBackendURL       string        `mapstructure:"PULUMI_BACKEND_URL"`
	PulumiConfigPassphrase string        `mapstructure:"PULUMI_CONFIG_PASSPHRASE"`
	PulumiStack            string        `mapstructure:"PULUMI_STACK" validate:"required"`
	NPMCommand             string        `mapstructure:"NPM_COMMAND" validate:"required"`
	ValidationTimeout      time.Duration `mapstructure:"VALIDATION_TIMEOUT" validate:"required"`
	DeployTimeout          time.Duration `mapstructure:"DEPLOY_TIMEOUT" validate:"required"`

	NATSURL        string `mapstructure:"NATS_URL"`
	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_DRIVER",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"WORKING_DIR",
	"CREDENTIAL_BACKEND",
	"CREDENTIALS_DIR",
	"CREDENTIALS_ENCRYPTION_KEY",
	"GENERATION_BACKENDS",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_KEY",
	"AZURE_OPENAI_KEY_BACKUP",
	"AZURE_OPENAI_DEPLOYMENT_ID",
	"AZURE_OPENAI_API_VERSION",
	"GOOGLE_CLOUD_PROJECT",
	"GOOGLE_CLOUD_LOCATION",
	"VERTEX_MODEL",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_REGION",
	"BEDROCK_MODEL_ID",
	"GROQ_API_KEY",
	"GROQ_BASE_URL",
	"GROQ_MODEL",
	"PULUMI_ACCESS_TOKEN",
	"PULUMI_BACKEND_URL",
	"PULUMI_CONFIG_PASSPHRASE",
	"PULUMI_STACK",
	"NPM_COMMAND",
	"VALIDATION_TIMEOUT",
	"DEPLOY_TIMEOUT",
	"NATS_URL",
	"METRICS_ENABLED",
	"CORS_ORIGINS",
}

var durationKeys = []string{"SHUTDOWN_TIMEOUT", "VALIDATION_TIMEOUT", "DEPLOY_TIMEOUT"}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("CREDENTIAL_BACKEND", "file")
	v.SetDefault("CREDENTIALS_DIR", defaultCredentialsDir())
	v.SetDefault("GENERATION_BACKENDS", "azure,vertex,bedrock,groq")
	v.SetDefault("AZURE_OPENAI_DEPLOYMENT_ID", "gpt-35-turbo")
	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
	v.SetDefault("GOOGLE_CLOUD_LOCATION", "us-central1")
	v.SetDefault("VERTEX_MODEL", "gemini-pro")
	v.SetDefault("AWS_REGION", "us-west-2")
	v.SetDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GROQ_MODEL", "llama3-70b-8192")
	v.SetDefault("PULUMI_STACK", "auto-generated")
	v.SetDefault("NPM_COMMAND", "npm install --no-audit --no-fund")
	v.SetDefault("VALIDATION_TIMEOUT", "5m")
	v.SetDefault("DEPLOY_TIMEOUT", "30m")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "*")

	// Optional config file
	_ = v.ReadInConfig()

	// Bind env without prefix for convenience
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	for _, key := range durationKeys {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		switch key {
		case "SHUTDOWN_TIMEOUT":
			c.ShutdownTimeout = d
		case "VALIDATION_TIMEOUT":
			c.ValidationTimeout = d
		case "DEPLOY_TIMEOUT":
			c.DeployTimeout = d
		}
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// Backends returns the ordered, normalized list of generation backend names.
func (c *Config) Backends() []string {
	var out []string
	for _, name := range strings.Split(c.GenerationBackends, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func defaultCredentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".instantiate", "credentials")
	}
	return filepath.Join(home, ".instantiate", "credentials")
}
