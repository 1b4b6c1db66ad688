// Package config defines the server configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config is populated from an optional TOML file and then overridden by
// PREDICT_* environment variables.
type Config struct {
	Addr      string `toml:"addr"`
	LogLevel  string `toml:"log_level"`
	StaticDir string `toml:"static_dir"`

	InviteCodes     []string `toml:"invite_codes"`
	StartingBalance int64    `toml:"starting_balance"`
	SessionTTL      duration `toml:"session_ttl"`
	MarketTTL       duration `toml:"market_ttl"`
	ChatHistory     int      `toml:"chat_history"`
	ChatStateWindow int      `toml:"chat_state_window"`
	JournalDSN      string   `toml:"journal_dsn"`

	// SweepSchedule is a cron schedule for the session janitor. Empty disables it.
	SweepSchedule string   `toml:"sweep_schedule"`
	CORSOrigins   []string `toml:"cors_origins"`

	WS WSConfig `toml:"ws"`
}

// WSConfig holds per-connection WebSocket limits.
type WSConfig struct {
	SendBuffer     int   `toml:"send_buffer"`
	MaxMessageSize int64 `toml:"max_message_size"`
}

// duration lets TOML strings such as "24h" decode into a time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		InviteCodes:     []string{"ALPHA2026", "BETA2026", "GAMMA2026"},
		StartingBalance: 1000,
		SessionTTL:      duration{24 * time.Hour},
		MarketTTL:       duration{7 * 24 * time.Hour},
		ChatHistory:     100,
		ChatStateWindow: 50,
		JournalDSN:      ":memory:",
		SweepSchedule:   "@every 10m",
		WS: WSConfig{
			SendBuffer:     256,
			MaxMessageSize: 4096,
		},
	}
}

// Validate reports every problem found in c.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level: %s", err))
	}
	if len(c.InviteCodes) == 0 {
		problems = append(problems, "at least one invite code is required")
	}
	for _, code := range c.InviteCodes {
		if strings.TrimSpace(code) == "" {
			problems = append(problems, "invite codes must not be blank")
			break
		}
	}
	if c.StartingBalance <= 0 {
		problems = append(problems, "starting_balance must be positive")
	}
	if c.SessionTTL.Duration <= 0 {
		problems = append(problems, "session_ttl must be positive")
	}
	if c.MarketTTL.Duration <= 0 {
		problems = append(problems, "market_ttl must be positive")
	}
	if c.ChatHistory <= 0 {
		problems = append(problems, "chat_history must be positive")
	}
	if c.ChatStateWindow <= 0 || c.ChatStateWindow > c.ChatHistory {
		problems = append(problems, "chat_state_window must be between 1 and chat_history")
	}
	if c.JournalDSN == "" {
		problems = append(problems, "journal_dsn is required")
	}
	if c.WS.SendBuffer <= 0 {
		problems = append(problems, "ws.send_buffer must be positive")
	}
	if c.WS.MaxMessageSize <= 0 {
		problems = append(problems, "ws.max_message_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
