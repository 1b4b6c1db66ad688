package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults and applies environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setPort(&cfg.Addr, "PORT")
	setStr(&cfg.Addr, "PREDICT_ADDR")
	setStr(&cfg.LogLevel, "PREDICT_LOG_LEVEL")
	setStr(&cfg.StaticDir, "PREDICT_STATIC_DIR")

	setStringSlice(&cfg.InviteCodes, "PREDICT_INVITE_CODES")
	setInt64(&cfg.StartingBalance, "PREDICT_STARTING_BALANCE")
	setDuration(&cfg.SessionTTL, "PREDICT_SESSION_TTL")
	setDuration(&cfg.MarketTTL, "PREDICT_MARKET_TTL")
	setInt(&cfg.ChatHistory, "PREDICT_CHAT_HISTORY")
	setInt(&cfg.ChatStateWindow, "PREDICT_CHAT_STATE_WINDOW")
	setStr(&cfg.JournalDSN, "PREDICT_JOURNAL_DSN")

	setStr(&cfg.SweepSchedule, "PREDICT_SWEEP_SCHEDULE")
	setStringSlice(&cfg.CORSOrigins, "PREDICT_CORS_ORIGINS")

	setInt(&cfg.WS.SendBuffer, "PREDICT_WS_SEND_BUFFER")
	setInt64(&cfg.WS.MaxMessageSize, "PREDICT_WS_MAX_MESSAGE_SIZE")
}

// Each helper leaves the target alone unless the variable is set, non-empty
// and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setPort keeps a bare PORT working the way hosting platforms set it.
func setPort(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			*dst = ":" + v
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
