package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Watch WatchConfig
	OCR   OCRConfig
	LLM   LLMConfig
	Store StoreConfig
}

// WatchConfig holds watch-folder configuration
type WatchConfig struct {
	Dir         string
	SettleDelay time.Duration
	SeenTTL     time.Duration
	Workers     int
	QueueSize   int
}

// OCRConfig holds Azure Document Intelligence configuration
type OCRConfig struct {
	Endpoint     string
	Key          string
	APIVersion   string
	PollInterval time.Duration
	Timeout      time.Duration
}

// LLMConfig holds Gemini configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// StoreConfig holds result-store configuration
type StoreConfig struct {
	OutputDir string
	CSVName   string
	DBPath    string
	LogFile   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	outDir := getEnv("OUTPUT_DIR", "agent_outputs")
	return &Config{
		Watch: WatchConfig{
			Dir:         getEnv("WATCH_DIR", "img"),
			SettleDelay: getEnvAsDuration("SETTLE_DELAY", 500*time.Millisecond),
			SeenTTL:     getEnvAsDuration("SEEN_TTL", 5*time.Second),
			Workers:     getEnvAsInt("WORKERS", 4),
			QueueSize:   getEnvAsInt("QUEUE_SIZE", 256),
		},
		OCR: OCRConfig{
			Endpoint:     getEnv("AZURE_DI_ENDPOINT", ""),
			Key:          getEnv("AZURE_DI_KEY", ""),
			APIVersion:   getEnv("AZURE_DI_API_VERSION", "2024-11-30"),
			PollInterval: getEnvAsDuration("AZURE_DI_POLL_INTERVAL", 2*time.Second),
			Timeout:      getEnvAsDuration("AZURE_DI_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
		},
		Store: StoreConfig{
			OutputDir: outDir,
			CSVName:   getEnv("CSV_NAME", "receipts_summary.csv"),
			DBPath:    getEnv("DB_PATH", ""),
			LogFile:   getEnv("LOG_FILE", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. Missing collaborator
// credentials are a hard startup failure, never a degraded client.
func (c *Config) Validate() error {
	if c.OCR.Endpoint == "" {
		return NewAppError("CONFIG_ERROR", "AZURE_DI_ENDPOINT is required", ErrInvalidInput)
	}
	if c.OCR.Key == "" {
		return NewAppError("CONFIG_ERROR", "AZURE_DI_KEY is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Watch.Dir == "" {
		return NewAppError("CONFIG_ERROR", "WATCH_DIR is required", ErrInvalidInput)
	}
	return nil
}
