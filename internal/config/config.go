package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	// EnableDevLogin mounts POST /auth/dev-token; defaults on in offline mode.
	EnableDevLogin bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	LogLevel string
	LogFile  string

	SubmitRatePerMin int
	RequestTimeout   time.Duration
}

// CORSOrigins returns the origin list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// FromEnv reads the environment and, when CONFIG_FILE is set, a config file
// whose keys use the same names in lower case. Environment wins over file.
func FromEnv() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SITE_ID", "local")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("AUTH_HMAC_SECRET", "supersecret-dev-key")
	v.SetDefault("CORS_ORIGINS_ONLINE", "https://tutor.mindengage.ai")
	v.SetDefault("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("SUBMIT_RATE_PER_MIN", 30)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOffline && mode != ModeOnline {
		return Config{}, fmt.Errorf("MODE must be %q or %q, got %q", ModeOffline, ModeOnline, mode)
	}
	v.SetDefault("ENABLE_DEV_LOGIN", mode == ModeOffline)

	cfg := Config{
		Mode:               mode,
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		SiteID:             v.GetString("SITE_ID"),
		DBDriver:           v.GetString("DB_DRIVER"),
		DBDSN:              v.GetString("DB_DSN"),
		AuthHMACSecret:     v.GetString("AUTH_HMAC_SECRET"),
		EnableDevLogin:     v.GetBool("ENABLE_DEV_LOGIN"),
		CORSOriginsOnline:  csv(v.GetString("CORS_ORIGINS_ONLINE")),
		CORSOriginsOffline: csv(v.GetString("CORS_ORIGINS_OFFLINE")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		SubmitRatePerMin:   v.GetInt("SUBMIT_RATE_PER_MIN"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
	}
	if cfg.Mode == ModeOnline && cfg.AuthHMACSecret == "supersecret-dev-key" {
		return Config{}, errors.New("AUTH_HMAC_SECRET must be set in online mode")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return cfg, nil
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
