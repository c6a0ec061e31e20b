package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	AI       AIConfig       `yaml:"ai"`
	Import   ImportConfig   `yaml:"import"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	OpenAI     ProviderConfig `yaml:"openai"`
	DeepSeek   ProviderConfig `yaml:"deepseek"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
	Gemini     ProviderConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai", "deepseek", "openrouter", "gemini"
	// Tried in order when the caller does not name a provider
	ProviderPriority []string `yaml:"provider_priority"`

	Temperature    float32 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// ProviderConfig for one LLM provider profile
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model,omitempty"`    // Empty = profile default
}

// Provider returns the config block for a provider name
func (c AIConfig) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case "openai":
		return c.OpenAI, true
	case "deepseek":
		return c.DeepSeek, true
	case "openrouter":
		return c.OpenRouter, true
	case "gemini":
		return c.Gemini, true
	}
	return ProviderConfig{}, false
}

type ImportConfig struct {
	MinTextLength int `yaml:"min_text_length"` // Characters required before calling the LLM
	MaxSessions   int `yaml:"max_sessions"`    // In-memory sessions kept before eviction
	MaxBatchFiles int `yaml:"max_batch_files"`
	MaxPages      int `yaml:"max_pages"` // PDF pages read per document, 0 = all
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// DSN returns the connection string, or "" when the database is not configured
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" || c.User == "" || c.Name == "" {
		return ""
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

type StorageConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	Bucket       string `yaml:"bucket"`
	UseSSL       bool   `yaml:"use_ssl"`
	PresignHours int    `yaml:"presign_hours"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is a configured account with optional personal LLM keys
type User struct {
	ID                string            `yaml:"id"`
	Username          string            `yaml:"username"`
	PasswordHash      string            `yaml:"password_hash"` // bcrypt
	Name              string            `yaml:"name"`
	Role              string            `yaml:"role"`
	APIKeys           map[string]string `yaml:"api_keys"` // provider -> key
	PreferredProvider string            `yaml:"preferred_provider"`
	PreferredModel    string            `yaml:"preferred_model"`
}

// DefaultTemperature is used when ai.temperature is absent from the file
const DefaultTemperature float32 = 0.1

// Load reads the YAML file, applies defaults and environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// seeded before parsing so an explicit 0 survives
	cfg := Config{AI: AIConfig{Temperature: DefaultTemperature}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "openai"
	}
	if len(cfg.AI.ProviderPriority) == 0 {
		cfg.AI.ProviderPriority = []string{"openai", "deepseek", "openrouter", "gemini"}
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Import.MinTextLength == 0 {
		cfg.Import.MinTextLength = 50
	}
	if cfg.Import.MaxSessions == 0 {
		cfg.Import.MaxSessions = 500
	}
	if cfg.Import.MaxBatchFiles == 0 {
		cfg.Import.MaxBatchFiles = 50
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "property-imports"
	}
	if cfg.Storage.PresignHours == 0 {
		cfg.Storage.PresignHours = 24
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
}

// Override with environment variables if present
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	setString(&cfg.Server.Host, "HOST")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setString(&cfg.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.AI.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.AI.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.AI.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.AI.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	setString(&cfg.AI.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.AI.Gemini.Model, "GEMINI_MODEL")
	setString(&cfg.AI.DefaultProvider, "AI_PROVIDER")

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "DB_HOST")
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")

	setString(&cfg.Storage.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Storage.Bucket, "MINIO_BUCKET")
	if ssl := os.Getenv("MINIO_USE_SSL"); ssl != "" {
		cfg.Storage.UseSSL = ssl == "true"
	}

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

// FindUserByID finds a user by id
func (c *Config) FindUserByID(id string) *User {
	for i := range c.Users {
		if c.Users[i].ID == id {
			return &c.Users[i]
		}
	}
	return nil
}
