package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
)

type Config struct {
	TelegramToken string
	AdminTGIDs    map[int64]bool

	StoreBackend             string
	SpreadsheetID            string
	GoogleServiceAccountJSON string
	XLSXPath                 string

	OsuClientID     string
	OsuClientSecret string
	OsuAPIURL       string
	OsuTokenURL     string
	OsuMode         string
	APICooldown     time.Duration

	CheckpointDir string
	LockPath      string
	Schedule      string

	HTTPAddr string

	LogLevel string
	LogDev   bool
}

func FromEnv() (Config, error) {
	var c Config
	c.TelegramToken = env("TELEGRAM_BOT_TOKEN", "")
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.StoreBackend = strings.ToLower(env("STORE_BACKEND", BackendSheets))
	c.SpreadsheetID = env("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	c.GoogleServiceAccountJSON = env("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	c.XLSXPath = env("XLSX_PATH", "data/leaderboards.xlsx")

	c.OsuClientID = env("OSU_CLIENT_ID", "")
	c.OsuClientSecret = env("OSU_CLIENT_SECRET", "")
	c.OsuAPIURL = strings.TrimRight(env("OSU_API_URL", "https://osu.ppy.sh/api/v2"), "/")
	c.OsuTokenURL = env("OSU_TOKEN_URL", "https://osu.ppy.sh/oauth/token")
	c.OsuMode = env("OSU_MODE", "osu")

	cooldown, err := time.ParseDuration(env("OSU_API_COOLDOWN", "1s"))
	if err != nil {
		return c, fmt.Errorf("OSU_API_COOLDOWN: %w", err)
	}
	if cooldown < 0 {
		return c, fmt.Errorf("OSU_API_COOLDOWN must not be negative")
	}
	c.APICooldown = cooldown

	c.CheckpointDir = env("CHECKPOINT_DIR", "data/checkpoints")
	c.LockPath = env("LOCK_PATH", "data/jobs.lock")
	c.Schedule = env("SCHEDULE", "@every 6h")

	c.HTTPAddr = env("HTTP_ADDR", ":8080")

	c.LogLevel = env("LOG_LEVEL", "info")
	c.LogDev = strings.EqualFold(env("LOG_DEV", ""), "true")

	if err := c.validateStore(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validateStore() error {
	switch c.StoreBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	case BackendXLSX:
		if c.XLSXPath == "" {
			return fmt.Errorf("XLSX_PATH is empty")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}
	return nil
}

// RequireOsu checks the credentials needed by jobs that call the osu! API.
func (c Config) RequireOsu() error {
	if c.OsuClientID == "" {
		return fmt.Errorf("OSU_CLIENT_ID is empty")
	}
	if c.OsuClientSecret == "" {
		return fmt.Errorf("OSU_CLIENT_SECRET is empty")
	}
	return nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
