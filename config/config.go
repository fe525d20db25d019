package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken      string    `yaml:"telegram_token"`
	ChatID             int64     `yaml:"chat_id"`
	ScanTime           string    `yaml:"scan_time"`
	Timezone           string    `yaml:"timezone"`
	MaxPostsPerProfile int       `yaml:"max_posts_per_profile"`
	DaysBack           int       `yaml:"days_back"`
	ScanWorkers        int       `yaml:"scan_workers"`
	FetchTimeoutSecs   int       `yaml:"fetch_timeout_secs"`
	HTTPAddr           string    `yaml:"http_addr"`
	CalendarName       string    `yaml:"calendar_name"`
	DBPath             string    `yaml:"db_path"`
	LogLevel           string    `yaml:"log_level"`
	Instagram          Instagram `yaml:"instagram"`
	OCR                OCR       `yaml:"ocr"`
}

// Instagram holds feed access settings.
type Instagram struct {
	SessionID string `yaml:"session_id"`
}

// OCR holds text recovery settings. An API key selects the hosted engine,
// otherwise a local tesseract install is used when present.
type OCR struct {
	APIKey        string `yaml:"api_key"`
	Endpoint      string `yaml:"endpoint"`
	TesseractPath string `yaml:"tesseract_path"`
}

// scanTimeRegex validates HH:MM format with proper ranges.
var scanTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("SHOWFINDER_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.ScanTime == "" {
		cfg.ScanTime = "08:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.MaxPostsPerProfile == 0 {
		cfg.MaxPostsPerProfile = 20
	}
	if cfg.DaysBack == 0 {
		cfg.DaysBack = 7
	}
	if cfg.ScanWorkers == 0 {
		cfg.ScanWorkers = 4
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 30
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = "Shows"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./showfinder.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if dbPath := os.Getenv("SHOWFINDER_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if sessionID := os.Getenv("INSTAGRAM_SESSION_ID"); sessionID != "" {
		cfg.Instagram.SessionID = sessionID
	}
	if apiKey := os.Getenv("OCR_API_KEY"); apiKey != "" {
		cfg.OCR.APIKey = apiKey
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if !scanTimeRegex.MatchString(cfg.ScanTime) {
		return fmt.Errorf("scan_time must be in HH:MM format (00:00-23:59), got %q", cfg.ScanTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
