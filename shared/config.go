package shared

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the server-wide configuration. Values from the YAML file can be
// overridden per-deployment through environment variables in main().
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Upstream struct {
		BaseURL        string        `yaml:"base_url"`
		Model          string        `yaml:"model"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"upstream"`

	Session struct {
		DrainGracePeriod time.Duration `yaml:"drain_grace_period"`
		EventBuffer      int           `yaml:"event_buffer"`
	} `yaml:"session"`

	Agents struct {
		File string `yaml:"file"`
	} `yaml:"agents"`

	Credentials struct {
		File string `yaml:"file"`
	} `yaml:"credentials"`

	Telephony struct {
		AccountSID string `yaml:"account_sid"`
		AuthToken  string `yaml:"auth_token"`
		BaseURL    string `yaml:"base_url"`
	} `yaml:"telephony"`

	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

func DefaultConfig() *Config {
	cfg := new(Config)
	cfg.ListenAddr = ":8080"
	cfg.Upstream.BaseURL = "wss://api.openai.com/v1"
	cfg.Upstream.Model = "gpt-realtime"
	cfg.Upstream.ConnectTimeout = 10 * time.Second
	cfg.Session.DrainGracePeriod = 5 * time.Second
	cfg.Session.EventBuffer = 64
	return cfg
}

// LoadConfig reads the YAML config file at path. A missing file yields the
// defaults, so a bare binary still starts.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Session.EventBuffer <= 0 {
		cfg.Session.EventBuffer = 64
	}
	if cfg.Session.DrainGracePeriod <= 0 {
		cfg.Session.DrainGracePeriod = 5 * time.Second
	}
	return cfg, nil
}
