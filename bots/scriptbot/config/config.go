// Package config loads the scriptbot configuration: the shared core sections
// plus database, script storage, quota, conversation and health settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/scriptbot/core/config"
	coredatabase "github.com/m3rciful/scriptbot/core/database"
)

// ScriptsConfig controls where script files are kept.
type ScriptsConfig struct {
	Dir            string `yaml:"dir" envconfig:"SCRIPTS_DIR"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" envconfig:"SCRIPTS_MAX_UPLOAD_BYTES"`
}

// QuotaConfig holds the bot limits of new users and of the seeded admin.
type QuotaConfig struct {
	DefaultMaxBots int `yaml:"default_max_bots" envconfig:"QUOTA_DEFAULT_MAX_BOTS"`
	AdminMaxBots   int `yaml:"admin_max_bots" envconfig:"QUOTA_ADMIN_MAX_BOTS"`
}

// ConversationConfig tunes the chat flows.
type ConversationConfig struct {
	FinishCommand          string `yaml:"finish_command" envconfig:"CONVERSATION_FINISH_COMMAND"`
	StorageTimeoutSeconds  int    `yaml:"storage_timeout_seconds" envconfig:"CONVERSATION_STORAGE_TIMEOUT_SECONDS"`
	DownloadTimeoutSeconds int    `yaml:"download_timeout_seconds" envconfig:"CONVERSATION_DOWNLOAD_TIMEOUT_SECONDS"`
}

// StorageTimeout returns the per-call storage deadline.
func (c ConversationConfig) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutSeconds) * time.Second
}

// DownloadTimeout returns the file download deadline.
func (c ConversationConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// HealthConfig enables the HTTP health server when Listen is set.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config is the full scriptbot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database     coredatabase.Config `yaml:"database"`
	Scripts      ScriptsConfig       `yaml:"scripts"`
	Quota        QuotaConfig         `yaml:"quota"`
	Conversation ConversationConfig  `yaml:"conversation"`
	Health       HealthConfig        `yaml:"health"`
}

// CoreConfig returns the shared core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Sections returns every env-overridable section.
func (c *Config) Sections() []any {
	return append(c.Config.Sections(), &c.Database, &c.Scripts, &c.Quota, &c.Conversation, &c.Health)
}

// Load reads path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.ApplyEnv(cfg.Sections()...); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	cfg.Scripts.Dir = strings.TrimSpace(cfg.Scripts.Dir)
	if cfg.Scripts.Dir == "" {
		cfg.Scripts.Dir = "bots"
	}
	if cfg.Scripts.MaxUploadBytes < 0 {
		return fmt.Errorf("scripts.max_upload_bytes must be >= 0")
	}
	if cfg.Scripts.MaxUploadBytes == 0 {
		// Telegram bots cannot download files above 20 MB.
		cfg.Scripts.MaxUploadBytes = 20 << 20
	}

	if cfg.Quota.DefaultMaxBots < 0 || cfg.Quota.AdminMaxBots < 0 {
		return fmt.Errorf("quota limits must be >= 0")
	}
	if cfg.Quota.DefaultMaxBots == 0 {
		cfg.Quota.DefaultMaxBots = 3
	}
	if cfg.Quota.AdminMaxBots == 0 {
		cfg.Quota.AdminMaxBots = 10
	}

	finish := strings.ToLower(strings.TrimSpace(cfg.Conversation.FinishCommand))
	if finish == "" {
		finish = "/done"
	}
	if !strings.HasPrefix(finish, "/") {
		finish = "/" + finish
	}
	if strings.ContainsAny(finish[1:], " /@") || len(finish) < 2 {
		return fmt.Errorf("invalid conversation.finish_command %q", cfg.Conversation.FinishCommand)
	}
	switch finish {
	case "/start", "/cancel", "/mybots", "/libraries", "/quota":
		return fmt.Errorf("conversation.finish_command %q collides with a bot command", finish)
	}
	cfg.Conversation.FinishCommand = finish

	if cfg.Conversation.StorageTimeoutSeconds < 0 || cfg.Conversation.DownloadTimeoutSeconds < 0 {
		return fmt.Errorf("conversation timeouts must be >= 0")
	}
	if cfg.Conversation.StorageTimeoutSeconds == 0 {
		cfg.Conversation.StorageTimeoutSeconds = 5
	}
	if cfg.Conversation.DownloadTimeoutSeconds == 0 {
		cfg.Conversation.DownloadTimeoutSeconds = 30
	}

	cfg.Health.Listen = strings.TrimSpace(cfg.Health.Listen)
	return nil
}
