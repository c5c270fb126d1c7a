package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Collaborator API.
	APIBaseURL        string `mapstructure:"API_BASE_URL"`
	APICredential     string `mapstructure:"API_CREDENTIAL"`
	APITimeoutSeconds int    `mapstructure:"API_TIMEOUT_SECONDS"`

	// Browser.
	ProfileDir string `mapstructure:"PROFILE_DIR"`
	ChromePath string `mapstructure:"CHROME_PATH"`
	SigninURL  string `mapstructure:"SIGNIN_URL"`

	// Scheduling and retries.
	ScrapeIntervalMinutes int `mapstructure:"SCRAPE_INTERVAL_MINUTES"`
	RunTimeoutMinutes     int `mapstructure:"RUN_TIMEOUT_MINUTES"`
	MaxRetries            int `mapstructure:"MAX_RETRIES"`
	InitialBackoffMS      int `mapstructure:"INITIAL_BACKOFF_MS"`
	MaxResults            int `mapstructure:"MAX_RESULTS"`

	// Timings.
	NavigationTimeoutSeconds int `mapstructure:"NAVIGATION_TIMEOUT_SECONDS"`
	LoginTimeoutMinutes      int `mapstructure:"LOGIN_TIMEOUT_MINUTES"`
	NewPageTimeoutSeconds    int `mapstructure:"NEW_PAGE_TIMEOUT_SECONDS"`
	ClientURLTimeoutSeconds  int `mapstructure:"CLIENT_URL_TIMEOUT_SECONDS"`
	PostClickSettleMS        int `mapstructure:"POST_CLICK_SETTLE_MS"`
	WorkspacePauseMS         int `mapstructure:"WORKSPACE_PAUSE_MS"`

	// Optional stores. Empty disables them.
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	DedupDays   int    `mapstructure:"DEDUP_DAYS"`
}

var defaults = map[string]any{
	"SERVER_PORT":                "8080",
	"LOG_LEVEL":                  "info",
	"API_BASE_URL":               "http://localhost:3000/api",
	"API_CREDENTIAL":             "",
	"API_TIMEOUT_SECONDS":        15,
	"PROFILE_DIR":                ".browser-profile",
	"CHROME_PATH":                "",
	"SIGNIN_URL":                 "https://slack.com/signin",
	"SCRAPE_INTERVAL_MINUTES":    60,
	"RUN_TIMEOUT_MINUTES":        45,
	"MAX_RETRIES":                2,
	"INITIAL_BACKOFF_MS":         2000,
	"MAX_RESULTS":                10,
	"NAVIGATION_TIMEOUT_SECONDS": 60,
	"LOGIN_TIMEOUT_MINUTES":      60,
	"NEW_PAGE_TIMEOUT_SECONDS":   10,
	"CLIENT_URL_TIMEOUT_SECONDS": 30,
	"POST_CLICK_SETTLE_MS":       1000,
	"WORKSPACE_PAUSE_MS":         2000,
	"POSTGRES_URL":               "",
	"REDIS_ADDR":                 "",
	"DEDUP_DAYS":                 30,
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Attempt to read the .env file, but don't fail if it's not present.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ScrapeInterval is the scheduler period.
func (c *Config) ScrapeInterval() time.Duration {
	return time.Duration(c.ScrapeIntervalMinutes) * time.Minute
}

// RunTimeout bounds one scheduled scrape pass. Zero disables the bound.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

// InitialBackoff is the first retry delay.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// APITimeout bounds each collaborator API call.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// DedupTTL is how long a submitted keyword match is remembered.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupDays) * 24 * time.Hour
}

// NavigationTimeout bounds page navigation.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutSeconds) * time.Second
}

// LoginTimeout bounds the wait for a human to finish signing in.
func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutMinutes) * time.Minute
}

// NewPageTimeout bounds the wait for a workspace tab to open.
func (c *Config) NewPageTimeout() time.Duration {
	return time.Duration(c.NewPageTimeoutSeconds) * time.Second
}

// ClientURLTimeout bounds the wait for the web client URL.
func (c *Config) ClientURLTimeout() time.Duration {
	return time.Duration(c.ClientURLTimeoutSeconds) * time.Second
}

// PostClickSettle is the pause after UI clicks.
func (c *Config) PostClickSettle() time.Duration {
	return time.Duration(c.PostClickSettleMS) * time.Millisecond
}

// WorkspacePause is the pause between workspaces during capture.
func (c *Config) WorkspacePause() time.Duration {
	return time.Duration(c.WorkspacePauseMS) * time.Millisecond
}
