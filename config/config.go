package config

import (
	"os"
	"strings"
)

const (
	defaultGatewayURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	defaultModel      = "google/gemini-2.5-flash"
)

// Store backends selectable through STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// Config is read once at process start from the environment.
type Config struct {
	Port    string
	GinMode string

	GatewayURL    string
	GatewayAPIKey string
	Model         string

	// ClientKey is the bearer token callers of /chat must present. Empty disables the check.
	ClientKey string

	StoreBackend     string
	PostgresURI      string
	DynamoDBEndpoint string
	AWSRegion        string

	// ChatURL is where cmd/chat sends its requests.
	ChatURL string
}

func Load() Config {
	return Config{
		Port:             getEnv("PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		GatewayURL:       getEnv("AI_GATEWAY_URL", defaultGatewayURL),
		GatewayAPIKey:    GetGatewayAPIKey(),
		Model:            getEnv("AI_MODEL", defaultModel),
		ClientKey:        os.Getenv("CHAT_CLIENT_KEY"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		PostgresURI:      os.Getenv("POSTGRES_URI"),
		DynamoDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		ChatURL:          getEnv("CHAT_URL", "http://localhost:8080/chat"),
	}
}

// GetGatewayAPIKey falls back to LOVABLE_API_KEY for deployments that still set the old name.
func GetGatewayAPIKey() string {
	if key := os.Getenv("AI_GATEWAY_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("LOVABLE_API_KEY")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
