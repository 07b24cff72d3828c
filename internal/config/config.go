package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NearAI   NearAIConfig   `mapstructure:"nearai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Vendor   VendorConfig   `mapstructure:"vendor"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	UploadDir    string        `mapstructure:"upload_dir"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// NearAIConfig holds the AI extraction backend configuration
type NearAIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds extraction pipeline configuration
type PipelineConfig struct {
	TemplateDir string `mapstructure:"template_dir"`
}

// VendorConfig holds vendor identity resolution configuration
type VendorConfig struct {
	FuzzyThreshold int `mapstructure:"fuzzy_threshold"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.upload_dir", "uploads")
	viper.SetDefault("server.max_upload_mb", 25)

	// Database defaults
	viper.SetDefault("database.path", "data/invoices.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// NEAR AI defaults
	viper.SetDefault("nearai.base_url", "https://api.near.ai/v1")
	viper.SetDefault("nearai.model", "fireworks::accounts/fireworks/models/llama-v3p1-70b-instruct")
	viper.SetDefault("nearai.timeout", 60*time.Second)

	// Pipeline defaults
	viper.SetDefault("pipeline.template_dir", "templates")

	// Vendor defaults
	viper.SetDefault("vendor.fuzzy_threshold", 85)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("nearai.api_key", "NEARAI_API_KEY")
	viper.BindEnv("nearai.base_url", "NEARAI_BASE_URL")
	viper.BindEnv("nearai.model", "NEARAI_MODEL")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NearAI.APIKey == "" {
		return fmt.Errorf("nearai.api_key is required")
	}
	if c.NearAI.BaseURL == "" {
		return fmt.Errorf("nearai.base_url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Vendor.FuzzyThreshold < 0 || c.Vendor.FuzzyThreshold > 100 {
		return fmt.Errorf("vendor.fuzzy_threshold must be between 0 and 100")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port number")
	}
	return nil
}
