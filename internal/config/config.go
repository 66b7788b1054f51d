package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Kinopub
	KinopubClientID     string
	KinopubClientSecret string

	// Recommender (OpenAI-compatible endpoint)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Reconciliation
	SuggestionCount int           // Suggestions to request per batch (default: 10)
	RequestDelay    time.Duration // Pause between remote calls (default: 300ms)

	// Server
	ServerPort string

	// Paths
	TokenFile    string // $CONFIG_DIR/token.json
	ExcludedFile string // $CONFIG_DIR/excluded.txt
	DatabaseFile string // $CONFIG_DIR/recomarr.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("SUGGESTION_COUNT", 10)
	viper.SetDefault("REQUEST_DELAY_MS", 300)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "recomarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		KinopubClientID:     viper.GetString("KINOPUB_CLIENT_ID"),
		KinopubClientSecret: viper.GetString("KINOPUB_CLIENT_SECRET"),

		OpenAIAPIKey:  viper.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL: viper.GetString("OPENAI_BASE_URL"),
		OpenAIModel:   viper.GetString("OPENAI_MODEL"),

		SuggestionCount: viper.GetInt("SUGGESTION_COUNT"),
		RequestDelay:    time.Duration(viper.GetInt("REQUEST_DELAY_MS")) * time.Millisecond,

		ServerPort: viper.GetString("SERVER_PORT"),

		TokenFile:    filepath.Join(configDir, "token.json"),
		ExcludedFile: filepath.Join(configDir, "excluded.txt"),
		DatabaseFile: filepath.Join(configDir, "recomarr.db"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.KinopubClientID == "" {
		return nil, fmt.Errorf("KINOPUB_CLIENT_ID is required")
	}
	if config.KinopubClientSecret == "" {
		return nil, fmt.Errorf("KINOPUB_CLIENT_SECRET is required")
	}
	if config.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return config, nil
}
