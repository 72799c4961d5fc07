package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Assistant AssistantConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WebSocketLogPath   string
	CorsAllowedOrigins string
	NatsURL            string // empty disables exchange events
	RedisURL           string // empty disables cross-instance fan-out
	JwtSecret          string // empty leaves the API open
}

type DatabaseConfig struct {
	Connection string // empty keeps the exchange archive in memory
}

type AssistantConfig struct {
	Provider       string // "http" or "ollama"
	Endpoint       string
	RequestTimeout time.Duration // 0 means no timeout
	LLMBaseURL     string // empty uses the provider default
	LLMAPIKey      string
	LLMModel       string
	MaxTokens      int
	RateLimit      float64 // requests per second, 0 disables
	RateBurst      int
	SessionTTL     time.Duration
}

type TracingConfig struct {
	Enabled      bool
	OtlpEndpoint string
	ServiceName  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/assistant.log"),
			WebSocketLogPath:   getEnv("WS_LOG_FILE_PATH", "logs/websocket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Assistant: AssistantConfig{
			Provider:       getEnv("ASSISTANT_PROVIDER", "http"),
			Endpoint:       getEnv("ASSISTANT_ENDPOINT", "http://localhost:8000/api/assistant"),
			RequestTimeout: getEnvAsDuration("ASSISTANT_REQUEST_TIMEOUT", 0),
			LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:      getEnv("LLM_API_KEY", ""),
			LLMModel:       getEnv("LLM_MODEL", "llama3"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 0),
			RateLimit:      getEnvAsFloat("ASSISTANT_RATE_LIMIT", 0),
			RateBurst:      getEnvAsInt("ASSISTANT_RATE_BURST", 5),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OtlpEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "metabolite-assistant"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
