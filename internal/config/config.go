package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from configs/config.yaml.
type Config struct {
	Server struct {
		Address        string `yaml:"address"`
		APIKey         string `yaml:"api_key"`
		IdentityHeader string `yaml:"identity_header"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Timezone string `yaml:"timezone"`

	Laundry struct {
		CooldownSeconds      int    `yaml:"cooldown_seconds"`
		MaxDaysAhead         int    `yaml:"max_days_ahead"`
		WasherMinutesPerWeek int    `yaml:"washer_minutes_per_week"`
		DryerMinutesPerWeek  int    `yaml:"dryer_minutes_per_week"`
		MachinesFile         string `yaml:"machines_file"`
	} `yaml:"laundry"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportDir     string `yaml:"export_dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		AdminChatID int64  `yaml:"admin_chat_id"`
	} `yaml:"telegram"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		LeadMinutes          int  `yaml:"lead_minutes"`
		CheckIntervalSeconds int  `yaml:"check_interval_seconds"`
	} `yaml:"reminders"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
	} `yaml:"monitoring"`

	// Admins are room numbers promoted to MASTER_ADMIN on start.
	Admins []string `yaml:"admins"`
}

// Load reads the config file, expands ${ENV_VAR} placeholders and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GUCKELSBERG_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw yaml into a Config with defaults applied.
func Parse(data []byte) (*Config, error) {
	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.IdentityHeader == "" {
		c.Server.IdentityHeader = "X-Room-Number"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/guckelsberg.db"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.Laundry.CooldownSeconds == 0 {
		c.Laundry.CooldownSeconds = 15
	}
	if c.Laundry.MaxDaysAhead == 0 {
		c.Laundry.MaxDaysAhead = 7
	}
	if c.Laundry.WasherMinutesPerWeek == 0 {
		c.Laundry.WasherMinutesPerWeek = 540
	}
	if c.Laundry.DryerMinutesPerWeek == 0 {
		c.Laundry.DryerMinutesPerWeek = 1080
	}
	if c.Laundry.MachinesFile == "" {
		c.Laundry.MachinesFile = "configs/machines.yaml"
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "backups"
	}
	if c.Audit.ExportDir == "" {
		c.Audit.ExportDir = "exports"
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Rooftop"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: unknown location '%s'", c.Timezone)
	}
	if c.Laundry.CooldownSeconds < 0 {
		return fmt.Errorf("laundry.cooldown_seconds cannot be negative")
	}
	if c.Laundry.MaxDaysAhead < 0 {
		return fmt.Errorf("laundry.max_days_ahead cannot be negative")
	}
	if c.Laundry.WasherMinutesPerWeek < 0 || c.Laundry.DryerMinutesPerWeek < 0 {
		return fmt.Errorf("laundry: weekly minutes cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values cannot be negative")
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return fmt.Errorf("sheets: credentials_file and spreadsheet_id are required when enabled")
	}
	for i, room := range c.Admins {
		if room == "" {
			return fmt.Errorf("admins[%d]: room number is required", i)
		}
	}
	return nil
}

// Location returns the resident timezone used for "today" and slot times.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Cooldown returns the minimum gap between two booking actions of one resident.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Laundry.CooldownSeconds) * time.Second
}

// CacheTTL returns the read cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) ReminderLead() time.Duration {
	if c.Reminders.LeadMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.CheckIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalSeconds) * time.Second
}
