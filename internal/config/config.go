package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Auth struct {
		// Base URL of the identity provider, e.g. https://xyz.example.co/auth/v1
		BaseURL     string `yaml:"base_url" json:"base_url"`
		APIKey      string `yaml:"api_key" json:"api_key"`
		RedirectURL string `yaml:"redirect_url" json:"redirect_url"`

		// How long before token expiry the refresh fires.
		RefreshMarginSeconds int `yaml:"refresh_margin_seconds" json:"refresh_margin_seconds"`
	} `yaml:"auth" json:"auth"`

	Notify struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		Endpoint string `yaml:"endpoint" json:"endpoint"`

		RatePerSec     float64 `yaml:"rate_per_sec" json:"rate_per_sec"`
		Burst          int     `yaml:"burst" json:"burst"`
		TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	} `yaml:"notify" json:"notify"`

	Enrich struct {
		Enabled    bool    `yaml:"enabled" json:"enabled"`
		RatePerSec float64 `yaml:"rate_per_sec" json:"rate_per_sec"`
		Burst      int     `yaml:"burst" json:"burst"`
	} `yaml:"enrich" json:"enrich"`

	Mailscan struct {
		Enabled     bool   `yaml:"enabled" json:"enabled"`
		IMAPHost    string `yaml:"imap_host" json:"imap_host"`
		IMAPPort    int    `yaml:"imap_port" json:"imap_port"`
		Username    string `yaml:"username" json:"username"`
		Mailbox     string `yaml:"mailbox" json:"mailbox"`
		PollSeconds int    `yaml:"poll_seconds" json:"poll_seconds"`
		MaxMessages int    `yaml:"max_messages" json:"max_messages"`
	} `yaml:"mailscan" json:"mailscan"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Default returns the built-in config used when no user config exists yet.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38472
	cfg.App.DataDir = "."
	cfg.Auth.RefreshMarginSeconds = 60
	cfg.Notify.RatePerSec = 1.0
	cfg.Notify.Burst = 2
	cfg.Notify.TimeoutSeconds = 15
	cfg.Enrich.Enabled = true
	cfg.Enrich.RatePerSec = 1.0
	cfg.Enrich.Burst = 2
	cfg.Mailscan.IMAPPort = 993
	cfg.Mailscan.Mailbox = "INBOX"
	cfg.Mailscan.PollSeconds = 300
	cfg.Mailscan.MaxMessages = 50
	return cfg
}
