package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"activity-keeper/internal/components/chrono"
	"activity-keeper/lib/configutil"
	"activity-keeper/lib/journal"
	"activity-keeper/services/keeper"
)

type SiteConfig struct {
	BaseUrl       string `json:"base_url" env:"SITE_BASE_URL"`
	ActivityPath  string `json:"activity_path" env:"SITE_ACTIVITY_PATH"`
	LoginPath     string `json:"login_path"`
	LogoutPath    string `json:"logout_path"`
	TokenField    string `json:"token_field"`
	PasswordField string `json:"password_field"`
	Password      string `json:"password" env:"SITE_PASSWORD"`
	// Timeout is a duration string like "15s".
	Timeout string `json:"timeout"`
}

type EmailConfig struct {
	Server   string   `json:"server" env:"SMTP_HOST"`
	Port     int      `json:"port" env:"SMTP_PORT"`
	Username string   `json:"username" env:"SMTP_USER"`
	Password string   `json:"password" env:"SMTP_PASS"`
	From     string   `json:"from" env:"SMTP_FROM"`
	To       []string `json:"to" env:"SMTP_TO"`
	// Disabled logs notifications instead of sending them.
	Disabled bool `json:"disabled" env:"SMTP_DISABLED"`
}

type StatusConfig struct {
	// Port of the /status server, 0 disables it.
	Port int `json:"port" env:"PORT"`
}

type Config struct {
	Timezone   string           `json:"timezone" env:"KEEPER_TIMEZONE"`
	JobTimeout string           `json:"job_timeout"`
	Site       SiteConfig       `json:"site"`
	Email      EmailConfig      `json:"email"`
	Schedules  keeper.Schedules `json:"schedules"`
	Journal    journal.Config   `json:"journal"`
	Status     StatusConfig     `json:"status"`
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", name)
	}
	return d, nil
}

func (c Config) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if _, err := parseDuration("job_timeout", c.JobTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("site.timeout", c.Site.Timeout); err != nil {
		return err
	}
	if err := c.Schedules.Validate(); err != nil {
		return err
	}
	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port: %d out of range", c.Status.Port)
	}
	return nil
}

// LoadConfig reads .env, then the json5 config file (optional), then lets
// environment variables override it.
func LoadConfig(ctx context.Context, path string) (Config, error) {
	err := configutil.LoadDotenv()
	if err != nil {
		return Config{}, err
	}

	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "no config file found, using environment only", "path", path)
	} else if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	err = configutil.ApplyEnv(ctx, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if cfg.Timezone == "" {
		cfg.Timezone = chrono.DefaultTimezone
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
