package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Backend names accepted by [UploadConfig.Backend].
const (
	BackendHTTP = "http"
	BackendAWS  = "aws"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Owner    OwnerConfig    `toml:"owner"`
	Library  LibraryConfig  `toml:"library"`
	Upload   UploadConfig   `toml:"upload"`
	Remote   RemoteConfig   `toml:"remote"`
	AWS      AWSConfig      `toml:"aws"`
	Location LocationConfig `toml:"location"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// OwnerConfig pins the owner identity. When ID is empty one is generated once and persisted in the database.
type OwnerConfig struct {
	ID string `toml:"id"`
}

// LibraryConfig describes where local media items are discovered.
type LibraryConfig struct {
	Root       string   `toml:"root"`
	Extensions []string `toml:"extensions"`
	HashJobs   int      `toml:"hash_jobs"`
}

// UploadConfig contains the orchestrator's concurrency and retry budget.
type UploadConfig struct {
	Backend      string   `toml:"backend"`
	Concurrency  int      `toml:"concurrency"`
	MaxAttempts  int      `toml:"max_attempts"`
	BaseDelay    Duration `toml:"base_delay"`
	PollInterval Duration `toml:"poll_interval"`
	RateLimit    float64  `toml:"rate_limit"`
}

// RemoteConfig contains the HTTP endpoints of the remote store.
type RemoteConfig struct {
	UploadURL string      `toml:"upload_url"`
	CheckURL  string      `toml:"check_url"`
	Timeout   Duration    `toml:"timeout"`
	OAuth     OAuthConfig `toml:"oauth"`
}

// OAuthConfig enables the client-credentials flow for the remote API when ClientID is set.
type OAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	TokenURL     string   `toml:"token_url"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether OAuth credentials were configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != "" && o.TokenURL != ""
}

// AWSConfig contains settings for the direct S3/DynamoDB backend.
type AWSConfig struct {
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	Table           string `toml:"table"`
	Prefix          string `toml:"prefix"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// LocationConfig is optional origin metadata attached to each upload.
type LocationConfig struct {
	Enabled   bool    `toml:"enabled"`
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	City      string  `toml:"city"`
	Region    string  `toml:"region"`
	Country   string  `toml:"country"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains status server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise make the orchestrator misbehave.
func (c *Config) Validate() error {
	if c.Upload.Concurrency < 1 {
		return fmt.Errorf("%w: upload.concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.Upload.MaxAttempts < 1 {
		return fmt.Errorf("%w: upload.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Upload.BaseDelay.Duration < 0 || c.Upload.PollInterval.Duration < 0 {
		return fmt.Errorf("%w: upload delays cannot be negative", ErrInvalidConfig)
	}
	switch c.Upload.Backend {
	case BackendHTTP:
		if c.Remote.UploadURL == "" || c.Remote.CheckURL == "" {
			return fmt.Errorf("%w: remote.upload_url and remote.check_url are required for the http backend", ErrInvalidConfig)
		}
	case BackendAWS:
		if c.AWS.Bucket == "" || c.AWS.Table == "" {
			return fmt.Errorf("%w: aws.bucket and aws.table are required for the aws backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown upload.backend %q", ErrInvalidConfig, c.Upload.Backend)
	}
	return nil
}

// RemoteTimeout returns the per-request timeout for the remote API, defaulting to one minute.
func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.Timeout.Duration <= 0 {
		return time.Minute
	}
	return c.Remote.Timeout.Duration
}
