// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Portal   PortalConfig   `mapstructure:"portal" yaml:"portal"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PortalConfig identifies the toll portal account and entry points.
type PortalConfig struct {
	UserID   string `mapstructure:"user_id" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
	// AccountSelector pre-selects the account context on the lookup page
	// for logins that carry more than one account. Empty means default.
	AccountSelector string `mapstructure:"account_selector" yaml:"account_selector"`
	LoginURL        string `mapstructure:"login_url" yaml:"login_url"`
	LookupURL       string `mapstructure:"lookup_url" yaml:"lookup_url"`
}

// CaptureConfig tunes the batch capture pipeline.
type CaptureConfig struct {
	ScreenshotsDir string        `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
	Days           int           `mapstructure:"days" yaml:"days"`
	RetentionDays  int           `mapstructure:"retention_days" yaml:"retention_days"`
	Cooldown       time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	NoDataPhrase   string        `mapstructure:"no_data_phrase" yaml:"no_data_phrase"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Install  bool     `mapstructure:"install" yaml:"install"`
	Args     []string `mapstructure:"args" yaml:"args"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ScheduleConfig drives the daily automatic capture run.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Hour     int    `mapstructure:"hour" yaml:"hour"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "hipass-capture")
	v.SetDefault("logger.log_file", "hipass-capture.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Portal --
	v.SetDefault("portal.login_url", "https://www.hipass.co.kr/comm/lginpg.do")
	v.SetDefault("portal.lookup_url", "https://www.hipass.co.kr/usepculr/InitUsePculrTabSearch.do")

	// -- Capture --
	v.SetDefault("capture.screenshots_dir", "screenshots")
	v.SetDefault("capture.days", 7)
	v.SetDefault("capture.retention_days", 30)
	v.SetDefault("capture.cooldown", "2s")
	v.SetDefault("capture.no_data_phrase", "조회된 데이터가 없습니다")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.install", true)

	// -- Server --
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.shutdown_timeout", "15s")

	// -- Schedule --
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.hour", 6)
	v.SetDefault("schedule.timezone", "Asia/Seoul")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data. The bare aliases match
	// the names deployments already export.
	v.BindEnv("portal.user_id", "HIPASS_PORTAL_USER_ID", "HIPASS_ID")
	v.BindEnv("portal.password", "HIPASS_PORTAL_PASSWORD", "HIPASS_PW")
	v.BindEnv("portal.account_selector", "HIPASS_PORTAL_ACCOUNT_SELECTOR", "ECD_NO")
	v.BindEnv("capture.screenshots_dir", "HIPASS_CAPTURE_SCREENSHOTS_DIR", "SCREENSHOTS_DIR")
	v.BindEnv("capture.retention_days", "HIPASS_CAPTURE_RETENTION_DAYS", "RETENTION_DAYS")
	v.BindEnv("schedule.hour", "HIPASS_SCHEDULE_HOUR", "SCHEDULE_HOUR")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the raw environment if Unmarshal didn't pick them up.
	if cfg.Portal.UserID == "" {
		cfg.Portal.UserID = os.Getenv("HIPASS_ID")
	}
	if cfg.Portal.Password == "" {
		cfg.Portal.Password = os.Getenv("HIPASS_PW")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Capture.Days <= 0 {
		return fmt.Errorf("capture.days must be a positive integer")
	}
	if c.Capture.Cooldown < 0 {
		return fmt.Errorf("capture.cooldown must not be negative")
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("schedule.hour must be between 0 and 23")
	}
	if c.Portal.LoginURL == "" || c.Portal.LookupURL == "" {
		return fmt.Errorf("portal.login_url and portal.lookup_url are required")
	}
	return nil
}

// RequireCredentials checks the portal credentials are present. Called by the
// commands that actually open a session, so prune and version work without
// an account.
func (c *Config) RequireCredentials() error {
	if c.Portal.UserID == "" || c.Portal.Password == "" {
		return fmt.Errorf("portal credentials are required; set HIPASS_ID and HIPASS_PW")
	}
	return nil
}
