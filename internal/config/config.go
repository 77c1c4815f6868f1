package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAuthURI  = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenURI = "https://oauth2.googleapis.com/token"
)

// OAuth is the web-application OAuth client block from the secrets file,
// in the same shape as a downloaded Google client configuration.
type OAuth struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	ProjectID    string `yaml:"project_id"`
	AuthURI      string `yaml:"auth_uri"`
	TokenURI     string `yaml:"token_uri"`
	RedirectURI  string `yaml:"redirect_uri"`
}

type secrets struct {
	SpreadsheetID  string `yaml:"spreadsheet_id"`
	ServiceAccount string `yaml:"service_account"`
	OAuth          OAuth  `yaml:"oauth"`
}

type Config struct {
	Addr           string
	LogLevel       string
	LogFormat      string
	SpreadsheetID  string
	ServiceAccount string
	OAuth          OAuth
	SessionSecret  string
	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
}

// Load reads the secrets file named by GRADEBOOK_SECRETS (default
// "secrets.yaml") and applies environment overrides for the runtime
// settings. A missing spreadsheet id or OAuth client id is fatal.
func Load() (Config, error) {
	cfg := Config{
		Addr:           getenv("GRADEBOOK_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "console"),
		SessionSecret:  getenv("SESSION_SECRET", ""),
		SessionBackend: getenv("SESSION_BACKEND", "memory"),
		SessionTTL:     getenvDuration("SESSION_TTL", 12*time.Hour),
		RedisAddr:      getenv("REDIS_ADDR", "127.0.0.1:6379"),
	}

	file := getenv("GRADEBOOK_SECRETS", "secrets.yaml")

	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read secrets file %s (%w)", file, err)
	}

	var s secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Config{}, fmt.Errorf("invalid secrets file %s (%w)", file, err)
	}

	if strings.TrimSpace(s.SpreadsheetID) == "" {
		return Config{}, fmt.Errorf("spreadsheet id is not configured in %s", file)
	}

	if strings.TrimSpace(s.OAuth.ClientID) == "" {
		return Config{}, fmt.Errorf("OAuth client id is not configured in %s", file)
	}

	if s.OAuth.AuthURI == "" {
		s.OAuth.AuthURI = defaultAuthURI
	}

	if s.OAuth.TokenURI == "" {
		s.OAuth.TokenURI = defaultTokenURI
	}

	cfg.SpreadsheetID = s.SpreadsheetID
	cfg.ServiceAccount = s.ServiceAccount
	cfg.OAuth = s.OAuth

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is not set")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
